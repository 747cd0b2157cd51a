package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

const principalKey = "principal"

// Claims are the JWT claims that identify a caller.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for principal that expires after ttl.
func IssueToken(secret string, principal model.Principal, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: jwt secret", common.ErrMissingConfig)
	}
	now := time.Now()
	claims := Claims{
		Role: principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HS256 token and returns the principal it names.
func ParseToken(secret []byte, tokenString string) (model.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Principal{}, err
	}
	if claims.Subject == "" {
		return model.Principal{}, errors.New("token has no subject")
	}
	role := claims.Role
	if role == "" {
		role = model.RoleUser
	}
	return model.Principal{ID: claims.Subject, Role: role}, nil
}

// authenticate resolves the bearer token into a principal for the handlers.
func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	principal, err := ParseToken(s.secret, strings.TrimSpace(token))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func principalFrom(c *fiber.Ctx) model.Principal {
	p, _ := c.Locals(principalKey).(model.Principal)
	return p
}
