package model

// Role values carried by an authenticated principal.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller of a core operation.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the principal may act across owners.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess reports whether the principal may read resources owned by ownerID.
func (p Principal) CanAccess(ownerID string) bool {
	return p.ID == ownerID || p.IsAdmin()
}
