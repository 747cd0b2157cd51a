package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

// BlobStore keeps uploaded statements in the blobs table.
type BlobStore struct {
	storage *SQLiteStorage
}

var _ service.BlobStore = (*BlobStore)(nil)

// Blobs returns a blob store sharing the storage's database.
func (s *SQLiteStorage) Blobs() *BlobStore {
	return &BlobStore{storage: s}
}

// Put stores data under key, replacing any previous value.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	_, err := b.storage.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blobs (key, data, created_at) VALUES (?, ?, ?)`,
		key, data, b.storage.now())
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// Get returns the data stored under key.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.storage.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if _, err := b.storage.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
