package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Import sessions, extracted transactions and suggestions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS import_sessions (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					content_hash TEXT NOT NULL,
					rule_set_id TEXT,
					blob_key TEXT,
					status TEXT NOT NULL,
					processing_stage TEXT NOT NULL,
					bank_name TEXT,
					error_message TEXT,
					total_transactions INTEGER NOT NULL DEFAULT 0,
					recurring_detected INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					completed_at DATETIME,
					UNIQUE (owner_id, content_hash)
				)`,
				`CREATE INDEX idx_import_sessions_owner ON import_sessions(owner_id, created_at)`,
				`CREATE INDEX idx_import_sessions_status ON import_sessions(status)`,

				`CREATE TABLE IF NOT EXISTS session_transactions (
					session_id TEXT NOT NULL,
					idx INTEGER NOT NULL,
					date DATETIME NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					original_text TEXT,
					record_created BOOLEAN NOT NULL DEFAULT 0,
					PRIMARY KEY (session_id, idx),
					FOREIGN KEY (session_id) REFERENCES import_sessions(id)
				)`,

				`CREATE TABLE IF NOT EXISTS import_suggestions (
					session_id TEXT NOT NULL,
					idx INTEGER NOT NULL,
					payee TEXT NOT NULL,
					category TEXT NOT NULL,
					provider TEXT,
					amount TEXT NOT NULL,
					frequency TEXT NOT NULL,
					confidence REAL NOT NULL,
					low_confidence BOOLEAN NOT NULL DEFAULT 0,
					occurrences INTEGER NOT NULL,
					transaction_indexes TEXT NOT NULL,
					entry_title TEXT NOT NULL,
					entry_provider TEXT,
					entry_type TEXT NOT NULL,
					suggested_domain TEXT,
					domain_confidence REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL,
					record_id TEXT,
					PRIMARY KEY (session_id, idx),
					FOREIGN KEY (session_id) REFERENCES import_sessions(id),
					CHECK (confidence >= 0 AND confidence <= 1)
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Detection rule sets",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS rule_sets (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					owner_id TEXT,
					is_default BOOLEAN NOT NULL DEFAULT 0,
					version INTEGER NOT NULL DEFAULT 1,
					category_rules TEXT NOT NULL,
					min_confidence_threshold REAL NOT NULL,
					fuzzy_match_threshold REAL NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				// Exactly one default rule set may exist.
				`CREATE UNIQUE INDEX idx_rule_sets_default ON rule_sets(is_default) WHERE is_default = 1`,
				`CREATE INDEX idx_rule_sets_owner ON rule_sets(owner_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Domain records and statement blobs",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS domain_records (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					domain TEXT NOT NULL,
					record_type TEXT NOT NULL,
					title TEXT NOT NULL,
					provider TEXT,
					amount TEXT NOT NULL DEFAULT '0',
					frequency TEXT,
					fields TEXT,
					import_source TEXT,
					import_session_id TEXT,
					suggested_domain TEXT,
					suggestion_confidence REAL,
					renewal_end_date DATETIME,
					renewal_active BOOLEAN NOT NULL DEFAULT 0,
					urgency_level TEXT,
					regulatory_type TEXT,
					reminder_days TEXT,
					next_reminder_due DATETIME,
					last_processed_date DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_domain_records_owner ON domain_records(owner_id, domain)`,
				`CREATE INDEX idx_domain_records_session ON domain_records(import_session_id)`,
				`CREATE INDEX idx_domain_records_renewal ON domain_records(renewal_active, renewal_end_date)`,

				`CREATE TABLE IF NOT EXISTS blobs (
					key TEXT PRIMARY KEY,
					data BLOB NOT NULL,
					created_at DATETIME NOT NULL
				)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
