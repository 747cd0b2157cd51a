package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{prefix: "", key: "statements/alice/1.pdf", want: "statements/alice/1.pdf"},
		{prefix: "paperwork", key: "statements/alice/1.pdf", want: "paperwork/statements/alice/1.pdf"},
		{prefix: "paperwork", key: "/statements/1.pdf", want: "paperwork/statements/1.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectName(tt.prefix, tt.key))
	}
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError("k", storage.ErrObjectNotExist), common.ErrNotFound)

	other := errors.New("permission denied")
	err := mapError("k", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestNewGCSStore_RequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), GCSConfig{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestNewGCSStore_CredentialsFile(t *testing.T) {
	dir := t.TempDir()

	_, err := NewGCSStore(context.Background(), GCSConfig{
		Bucket:          "statements",
		CredentialsFile: filepath.Join(dir, "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key file")

	garbage := filepath.Join(dir, "key.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o600))
	_, err = NewGCSStore(context.Background(), GCSConfig{Bucket: "statements", CredentialsFile: garbage})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
