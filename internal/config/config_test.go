package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, BlobBackendSQLite, cfg.Blob.Backend)
	assert.Equal(t, NotifyBackendLog, cfg.Notify.Backend)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, 0.4, cfg.Detection.Pattern.Weights.Occurrence)
	assert.Len(t, cfg.Detection.Pattern.Buckets, 4)
	assert.Equal(t, 5*time.Minute, cfg.Detection.RuleCacheTTL)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxUploadBytes)
	assert.Equal(t, 24*time.Hour, cfg.Renewal.DedupeWindow)
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"))
}

func TestLoad_File(t *testing.T) {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
database:
  path: ":memory:"
import:
  workers: 4
  run_timeout: 30s
detection:
  min_occurrences: 3
  weights:
    occurrence: 0.2
    regularity: 0.4
    rule_match: 0.4
  buckets:
    - frequency: weekly
      min_days: 6
      max_days: 8
    - frequency: monthly
      min_days: 27
      max_days: 33
notify:
  backend: mailgun
  mailgun:
    domain: mg.example.com
    sender: reminders@example.com
    recipients:
      alice: alice@example.com
`)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 30*time.Second, cfg.Import.RunTimeout)
	assert.Equal(t, 64, cfg.Import.QueueSize)
	assert.Equal(t, 3, cfg.Detection.Pattern.MinOccurrences)
	assert.Equal(t, 0.2, cfg.Detection.Pattern.Weights.Occurrence)
	require.Len(t, cfg.Detection.Pattern.Buckets, 2)
	assert.Equal(t, model.FrequencyMonthly, cfg.Detection.Pattern.Buckets[1].Frequency)
	assert.Equal(t, 27, cfg.Detection.Pattern.Buckets[1].MinDays)
	assert.Equal(t, NotifyBackendMailgun, cfg.Notify.Backend)
	assert.Equal(t, "alice@example.com", cfg.Notify.Mailgun.Recipients["alice"])
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PAPERWORK_API_ADDR", ":9999")
	t.Setenv("PAPERWORK_IMPORT_WORKERS", "7")
	t.Setenv("PAPERWORK_NOTIFY_MAILGUN_API_KEY", "key-123")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, 7, cfg.Import.Workers)
	assert.Equal(t, "key-123", cfg.Notify.Mailgun.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		wantErr error
		set     map[string]any
		name    string
	}{
		{name: "unknown blob backend", set: map[string]any{"blob.backend": "s3"}, wantErr: common.ErrInvalidConfig},
		{name: "gcs without bucket", set: map[string]any{"blob.backend": "gcs"}, wantErr: common.ErrMissingConfig},
		{name: "unknown notify backend", set: map[string]any{"notify.backend": "sms"}, wantErr: common.ErrInvalidConfig},
		{name: "negative weight", set: map[string]any{"detection.weights.regularity": -1.0}, wantErr: common.ErrInvalidConfig},
		{name: "zero upload limit", set: map[string]any{"import.max_upload_bytes": 0}, wantErr: common.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequireJWTSecret(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.RequireJWTSecret(), common.ErrMissingConfig)

	cfg.API.JWTSecret = strings.Repeat("s", 32)
	assert.NoError(t, cfg.RequireJWTSecret())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAPERWORK_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("PAPERWORK_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("PAPERWORK_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("PAPERWORK_TEST_DOTENV"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PAPERWORK_TEST_DIR", "/srv/paperwork")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: ":memory:", want: ":memory:"},
		{in: "~", want: home},
		{in: "~/paperwork.db", want: filepath.Join(home, "paperwork.db")},
		{in: "$PAPERWORK_TEST_DIR/db.sqlite", want: "/srv/paperwork/db.sqlite"},
		{in: "/abs/path.db", want: "/abs/path.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), tt.in)
	}
}
