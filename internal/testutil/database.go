// Package testutil provides shared helpers for tests: migrated in-memory
// storage and generated statement PDFs.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
	"github.com/Veraticus/the-paperwork-must-flow/internal/storage"
)

// TestDB is a migrated in-memory database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedDefaultRuleSet stores the built-in rule set as the default and returns it.
func (db *TestDB) SeedDefaultRuleSet() model.DetectionRuleSet {
	db.t.Helper()

	rs := pattern.DefaultRuleSet()
	rs.ID = "default"
	if err := db.Storage.CreateRuleSet(context.Background(), &rs); err != nil {
		db.t.Fatalf("failed to seed default rule set: %v", err)
	}
	return rs
}

// MustCreateRecord stores a record or fails the test.
func (db *TestDB) MustCreateRecord(record *model.DomainRecord) {
	db.t.Helper()
	if err := db.Storage.CreateRecord(context.Background(), record); err != nil {
		db.t.Fatalf("failed to create record %s: %v", record.ID, err)
	}
}
