package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

var _ RuleSetSource = (*Provider)(nil)

const defaultCacheKey = "default"

// Provider resolves rule sets for detection runs and is the write path for rule
// edits, so cached snapshots are invalidated whenever a rule set changes.
type Provider struct {
	store service.RuleSetStore
	cache *cache.Cache
	now   func() time.Time
}

// NewProvider creates a provider caching snapshots for ttl.
func NewProvider(store service.RuleSetStore, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{
		store: store,
		cache: cache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

// EnsureDefault seeds the built-in rule set when no default exists.
func (p *Provider) EnsureDefault(ctx context.Context) (*model.DetectionRuleSet, error) {
	rs, err := p.store.GetDefaultRuleSet(ctx)
	if err == nil {
		return rs, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load default rule set: %w", err)
	}

	def := DefaultRuleSet()
	def.ID = uuid.NewString()
	def.CreatedAt = p.now()
	def.UpdatedAt = def.CreatedAt
	if err := p.store.CreateRuleSet(ctx, &def); err != nil {
		return nil, fmt.Errorf("failed to seed default rule set: %w", err)
	}
	slog.Info("Seeded default detection rule set", "id", def.ID, "rules", len(def.CategoryRules))
	return &def, nil
}

// Snapshot returns a deep copy of the rule set id, or of the default when id is
// empty. Custom rule sets are visible only to their owner and admins.
func (p *Provider) Snapshot(ctx context.Context, principal model.Principal, id string) (model.DetectionRuleSet, error) {
	rs, err := p.load(ctx, id)
	if err != nil {
		return model.DetectionRuleSet{}, err
	}
	if rs.OwnerID != "" && !principal.CanAccess(rs.OwnerID) {
		return model.DetectionRuleSet{}, fmt.Errorf("rule set %s: %w", id, common.ErrForbidden)
	}
	return rs.Clone(), nil
}

func (p *Provider) load(ctx context.Context, id string) (*model.DetectionRuleSet, error) {
	key := id
	if key == "" {
		key = defaultCacheKey
	}
	if cached, ok := p.cache.Get(key); ok {
		if rs, ok := cached.(*model.DetectionRuleSet); ok {
			return rs, nil
		}
	}

	var (
		rs  *model.DetectionRuleSet
		err error
	)
	if id == "" {
		rs, err = p.EnsureDefault(ctx)
	} else {
		rs, err = p.store.GetRuleSet(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	stored := rs.Clone()
	p.cache.Set(key, &stored, cache.DefaultExpiration)
	return &stored, nil
}

// Create validates and stores a new rule set owned by the principal.
func (p *Provider) Create(ctx context.Context, principal model.Principal, rs model.DetectionRuleSet) (*model.DetectionRuleSet, error) {
	if err := ValidateRuleSet(rs); err != nil {
		return nil, err
	}
	rs.ID = uuid.NewString()
	rs.OwnerID = principal.ID
	rs.IsDefault = false
	rs.Version = 1
	rs.CreatedAt = p.now()
	rs.UpdatedAt = rs.CreatedAt
	if err := p.store.CreateRuleSet(ctx, &rs); err != nil {
		return nil, fmt.Errorf("failed to create rule set: %w", err)
	}
	return &rs, nil
}

// Update replaces the rules and settings of an existing rule set, bumping its
// version. Only the owner, or an admin for the default set, may edit.
func (p *Provider) Update(ctx context.Context, principal model.Principal, rs model.DetectionRuleSet) (*model.DetectionRuleSet, error) {
	if err := ValidateRuleSet(rs); err != nil {
		return nil, err
	}
	current, err := p.store.GetRuleSet(ctx, rs.ID)
	if err != nil {
		return nil, err
	}
	if !canEdit(principal, current) {
		return nil, fmt.Errorf("rule set %s: %w", rs.ID, common.ErrForbidden)
	}

	current.Name = rs.Name
	current.CategoryRules = rs.Clone().CategoryRules
	current.Settings = rs.Settings
	current.Version++
	current.UpdatedAt = p.now()
	if err := p.store.UpdateRuleSet(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to update rule set: %w", err)
	}

	p.invalidate(current)
	return current, nil
}

// Delete removes a custom rule set. The default rule set cannot be deleted.
func (p *Provider) Delete(ctx context.Context, principal model.Principal, id string) error {
	current, err := p.store.GetRuleSet(ctx, id)
	if err != nil {
		return err
	}
	if current.IsDefault {
		return common.ValidationError("the default rule set cannot be deleted")
	}
	if !canEdit(principal, current) {
		return fmt.Errorf("rule set %s: %w", id, common.ErrForbidden)
	}
	if err := p.store.DeleteRuleSet(ctx, id); err != nil {
		return err
	}
	p.invalidate(current)
	return nil
}

// List returns the default rule set followed by the principal's own rule sets.
func (p *Provider) List(ctx context.Context, principal model.Principal) ([]model.DetectionRuleSet, error) {
	def, err := p.EnsureDefault(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := p.store.ListRuleSets(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	return append([]model.DetectionRuleSet{*def}, owned...), nil
}

func (p *Provider) invalidate(rs *model.DetectionRuleSet) {
	p.cache.Delete(rs.ID)
	if rs.IsDefault {
		p.cache.Delete(defaultCacheKey)
	}
}

func canEdit(principal model.Principal, rs *model.DetectionRuleSet) bool {
	if rs.IsDefault || rs.OwnerID == "" {
		return principal.IsAdmin()
	}
	return principal.CanAccess(rs.OwnerID)
}
