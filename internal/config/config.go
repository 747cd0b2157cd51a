package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-paperwork-must-flow/internal/blob"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/notify"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
	"github.com/Veraticus/the-paperwork-must-flow/internal/renewal"
)

// EnvPrefix is the prefix of environment variables that override configuration.
const EnvPrefix = "PAPERWORK"

// Blob and notification backends.
const (
	BlobBackendSQLite    = "sqlite"
	BlobBackendGCS       = "gcs"
	NotifyBackendLog     = "log"
	NotifyBackendMailgun = "mailgun"
)

// Config is the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	API       APIConfig       `mapstructure:"api"`
	Detection DetectionConfig `mapstructure:"detection"`
	Renewal   renewal.Config  `mapstructure:"renewal"`
	Import    importer.Config `mapstructure:"import"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BlobConfig selects where uploaded statements are kept.
type BlobConfig struct {
	Backend string         `mapstructure:"backend"`
	GCS     blob.GCSConfig `mapstructure:"gcs"`
}

// NotifyConfig selects how reminders are delivered.
type NotifyConfig struct {
	Mailgun notify.MailgunConfig `mapstructure:"mailgun"`
	Backend string               `mapstructure:"backend"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr        string  `mapstructure:"addr"`
	JWTSecret   string  `mapstructure:"jwt_secret"`
	TLSCertDir  string  `mapstructure:"tls_cert_dir"`
	UploadRate  float64 `mapstructure:"upload_rate"`
	UploadBurst int     `mapstructure:"upload_burst"`
}

// DetectionConfig tunes recurring payment detection.
type DetectionConfig struct {
	Pattern      pattern.Config `mapstructure:",squash"`
	RuleCacheTTL time.Duration  `mapstructure:"rule_cache_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "~/.local/share/paperwork/paperwork.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Blob:     BlobConfig{Backend: BlobBackendSQLite},
		Notify:   NotifyConfig{Backend: NotifyBackendLog},
		API: APIConfig{
			Addr:        ":8080",
			UploadRate:  1,
			UploadBurst: 5,
		},
		Detection: DetectionConfig{
			Pattern:      pattern.DefaultConfig(),
			RuleCacheTTL: 5 * time.Minute,
		},
		Renewal: renewal.DefaultConfig(),
		Import:  importer.DefaultConfig(),
	}
}

// SetDefaults registers every scalar default with v so that environment
// variables can override keys that no config file sets.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("blob.backend", d.Blob.Backend)
	v.SetDefault("blob.gcs.bucket", "")
	v.SetDefault("blob.gcs.prefix", "")
	v.SetDefault("blob.gcs.credentials_file", "")
	v.SetDefault("notify.backend", d.Notify.Backend)
	v.SetDefault("notify.mailgun.domain", "")
	v.SetDefault("notify.mailgun.api_key", "")
	v.SetDefault("notify.mailgun.sender", "")
	v.SetDefault("notify.mailgun.eu", false)
	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("api.tls_cert_dir", "")
	v.SetDefault("api.upload_rate", d.API.UploadRate)
	v.SetDefault("api.upload_burst", d.API.UploadBurst)
	v.SetDefault("detection.min_occurrences", d.Detection.Pattern.MinOccurrences)
	v.SetDefault("detection.weights.occurrence", d.Detection.Pattern.Weights.Occurrence)
	v.SetDefault("detection.weights.regularity", d.Detection.Pattern.Weights.Regularity)
	v.SetDefault("detection.weights.rule_match", d.Detection.Pattern.Weights.RuleMatch)
	v.SetDefault("detection.rule_cache_ttl", d.Detection.RuleCacheTTL)
	v.SetDefault("renewal.dedupe_window", d.Renewal.DedupeWindow)
	v.SetDefault("import.workers", d.Import.Workers)
	v.SetDefault("import.queue_size", d.Import.QueueSize)
	v.SetDefault("import.run_timeout", d.Import.RunTimeout)
	v.SetDefault("import.resume_interval", d.Import.ResumeInterval)
	v.SetDefault("import.max_upload_bytes", d.Import.MaxUploadBytes)
}

// BindEnv makes PAPERWORK_SECTION_KEY variables override section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads environment variables from the given .env files, or ./.env
// when none are given. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(ExpandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		slog.Debug("Loaded environment file", "path", p)
	}
	return nil
}

// Load decodes v over the defaults and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Blob.GCS.CredentialsFile = ExpandPath(cfg.Blob.GCS.CredentialsFile)
	cfg.API.TLSCertDir = ExpandPath(cfg.API.TLSCertDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selections and numeric ranges.
func (c Config) Validate() error {
	switch c.Blob.Backend {
	case BlobBackendSQLite:
	case BlobBackendGCS:
		if c.Blob.GCS.Bucket == "" {
			return fmt.Errorf("%w: blob.gcs.bucket is required for the gcs backend", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown blob backend %q", common.ErrInvalidConfig, c.Blob.Backend)
	}

	switch c.Notify.Backend {
	case NotifyBackendLog, NotifyBackendMailgun:
	default:
		return fmt.Errorf("%w: unknown notify backend %q", common.ErrInvalidConfig, c.Notify.Backend)
	}

	w := c.Detection.Pattern.Weights
	if w.Occurrence < 0 || w.Regularity < 0 || w.RuleMatch < 0 || w.Occurrence+w.Regularity+w.RuleMatch == 0 {
		return fmt.Errorf("%w: detection weights must be non-negative and not all zero", common.ErrInvalidConfig)
	}
	for _, b := range c.Detection.Pattern.Buckets {
		if b.MinDays <= 0 || b.MaxDays < b.MinDays || !b.Frequency.IsValid() {
			return fmt.Errorf("%w: invalid frequency bucket %+v", common.ErrInvalidConfig, b)
		}
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: import.max_upload_bytes must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// RequireJWTSecret reports an error when the API has no signing secret.
func (c Config) RequireJWTSecret() error {
	if len(c.API.JWTSecret) < 32 {
		return fmt.Errorf("%w: api.jwt_secret must be at least 32 bytes", common.ErrMissingConfig)
	}
	return nil
}
