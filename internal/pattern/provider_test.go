package pattern

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

type memRuleSetStore struct {
	sets  map[string]model.DetectionRuleSet
	reads int
	mu    sync.Mutex
}

func newMemRuleSetStore() *memRuleSetStore {
	return &memRuleSetStore{sets: make(map[string]model.DetectionRuleSet)}
}

func (m *memRuleSetStore) CreateRuleSet(_ context.Context, rs *model.DetectionRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[rs.ID] = rs.Clone()
	return nil
}

func (m *memRuleSetStore) UpdateRuleSet(_ context.Context, rs *model.DetectionRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sets[rs.ID]
	if !ok {
		return common.ErrNotFound
	}
	if current.Version != rs.Version-1 {
		return fmt.Errorf("stale version: %w", common.ErrValidation)
	}
	m.sets[rs.ID] = rs.Clone()
	return nil
}

func (m *memRuleSetStore) GetRuleSet(_ context.Context, id string) (*model.DetectionRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	rs, ok := m.sets[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := rs.Clone()
	return &out, nil
}

func (m *memRuleSetStore) GetDefaultRuleSet(_ context.Context) (*model.DetectionRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, rs := range m.sets {
		if rs.IsDefault {
			out := rs.Clone()
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memRuleSetStore) ListRuleSets(_ context.Context, ownerID string) ([]model.DetectionRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DetectionRuleSet
	for _, rs := range m.sets {
		if rs.OwnerID == ownerID && !rs.IsDefault {
			out = append(out, rs.Clone())
		}
	}
	return out, nil
}

func (m *memRuleSetStore) DeleteRuleSet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, id)
	return nil
}

var (
	alice = model.Principal{ID: "alice", Role: model.RoleUser}
	bob   = model.Principal{ID: "bob", Role: model.RoleUser}
	admin = model.Principal{ID: "root", Role: model.RoleAdmin}
)

func customRuleSet() model.DetectionRuleSet {
	return model.DetectionRuleSet{
		Name:     "Alice's rules",
		Settings: model.DefaultSettings(),
		CategoryRules: []model.CategoryRule{
			{Name: "Allotment", Category: "rent", Patterns: []string{"allotment society"}},
		},
	}
}

func TestProvider_EnsureDefault(t *testing.T) {
	ctx := context.Background()
	provider := NewProvider(newMemRuleSetStore(), time.Minute)

	first, err := provider.EnsureDefault(ctx)
	require.NoError(t, err)
	second, err := provider.EnsureDefault(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsDefault)
}

func TestProvider_Snapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("default snapshot is a deep copy", func(t *testing.T) {
		provider := NewProvider(newMemRuleSetStore(), time.Minute)

		snap, err := provider.Snapshot(ctx, alice, "")
		require.NoError(t, err)
		snap.CategoryRules[0].Patterns[0] = "mutated"

		again, err := provider.Snapshot(ctx, alice, "")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.CategoryRules[0].Patterns[0])
	})

	t.Run("cached after first load", func(t *testing.T) {
		store := newMemRuleSetStore()
		provider := NewProvider(store, time.Minute)
		created, err := provider.Create(ctx, alice, customRuleSet())
		require.NoError(t, err)

		_, err = provider.Snapshot(ctx, alice, created.ID)
		require.NoError(t, err)
		reads := store.reads
		_, err = provider.Snapshot(ctx, alice, created.ID)
		require.NoError(t, err)
		assert.Equal(t, reads, store.reads)
	})

	t.Run("edits do not reach an earlier snapshot", func(t *testing.T) {
		provider := NewProvider(newMemRuleSetStore(), time.Minute)
		created, err := provider.Create(ctx, alice, customRuleSet())
		require.NoError(t, err)

		before, err := provider.Snapshot(ctx, alice, created.ID)
		require.NoError(t, err)

		edited := customRuleSet()
		edited.ID = created.ID
		edited.CategoryRules[0].Patterns = []string{"garden plot"}
		updated, err := provider.Update(ctx, alice, edited)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		after, err := provider.Snapshot(ctx, alice, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"allotment society"}, before.CategoryRules[0].Patterns)
		assert.Equal(t, []string{"garden plot"}, after.CategoryRules[0].Patterns)
		assert.Equal(t, 2, after.Version)
	})

	t.Run("other owners are forbidden", func(t *testing.T) {
		provider := NewProvider(newMemRuleSetStore(), time.Minute)
		created, err := provider.Create(ctx, alice, customRuleSet())
		require.NoError(t, err)

		_, err = provider.Snapshot(ctx, bob, created.ID)
		assert.ErrorIs(t, err, common.ErrForbidden)

		_, err = provider.Snapshot(ctx, admin, created.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown rule set", func(t *testing.T) {
		provider := NewProvider(newMemRuleSetStore(), time.Minute)
		_, err := provider.Snapshot(ctx, alice, "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestProvider_EditPermissions(t *testing.T) {
	ctx := context.Background()
	provider := NewProvider(newMemRuleSetStore(), time.Minute)
	def, err := provider.EnsureDefault(ctx)
	require.NoError(t, err)

	edited := def.Clone()
	edited.Name = "Changed"

	_, err = provider.Update(ctx, alice, edited)
	assert.ErrorIs(t, err, common.ErrForbidden)

	updated, err := provider.Update(ctx, admin, edited)
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.Name)

	snap, err := provider.Snapshot(ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, "Changed", snap.Name)

	err = provider.Delete(ctx, admin, def.ID)
	assert.ErrorIs(t, err, common.ErrValidation)

	created, err := provider.Create(ctx, alice, customRuleSet())
	require.NoError(t, err)
	assert.ErrorIs(t, provider.Delete(ctx, bob, created.ID), common.ErrForbidden)
	require.NoError(t, provider.Delete(ctx, alice, created.ID))

	sets, err := provider.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.True(t, sets[0].IsDefault)
}

func TestProvider_CreateValidates(t *testing.T) {
	provider := NewProvider(newMemRuleSetStore(), time.Minute)
	rs := customRuleSet()
	rs.CategoryRules = nil

	_, err := provider.Create(context.Background(), alice, rs)
	assert.ErrorIs(t, err, common.ErrValidation)
}
