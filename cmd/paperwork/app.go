package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/blob"
	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/config"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/notify"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
	"github.com/Veraticus/the-paperwork-must-flow/internal/renewal"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
	"github.com/Veraticus/the-paperwork-must-flow/internal/storage"
)

// app holds the services a command works with.
type app struct {
	store    *storage.SQLiteStorage
	rules    *pattern.Provider
	imports  *importer.Service
	renewals *renewal.Engine
	domains  *classification.Engine
	closers  []func() error
}

// openApp opens the database and wires the services from cfg.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{store: store, closers: []func() error{store.Close}}

	if err := store.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	blobs, err := a.openBlobs(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	notifier, err := newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.rules = pattern.NewProvider(store, cfg.Detection.RuleCacheTTL)
	if _, err := a.rules.EnsureDefault(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load default rule set: %w", err)
	}
	a.domains = classification.NewDefaultEngine()
	a.imports = importer.NewWithConfig(importer.Deps{
		Store:    store,
		Blobs:    blobs,
		Rules:    a.rules,
		Detector: pattern.NewDetector(cfg.Detection.Pattern),
		Domains:  a.domains,
	}, cfg.Import)
	a.renewals = renewal.NewWithConfig(store, notifier, cfg.Renewal)
	return a, nil
}

func (a *app) openBlobs(ctx context.Context, cfg config.Config) (service.BlobStore, error) {
	if cfg.Blob.Backend != config.BlobBackendGCS {
		return a.store.Blobs(), nil
	}
	gcs, err := blob.NewGCSStore(ctx, cfg.Blob.GCS)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gcs.Close)
	slog.Info("Storing statements in GCS", "bucket", cfg.Blob.GCS.Bucket)
	return gcs, nil
}

func newNotifier(cfg config.Config) (notify.Notifier, error) {
	if cfg.Notify.Backend == config.NotifyBackendMailgun {
		return notify.NewMailgunNotifier(cfg.Notify.Mailgun)
	}
	return notify.NewLogNotifier(slog.Default()), nil
}

// Close stops the import workers and releases storage in reverse order.
func (a *app) Close() {
	if a.imports != nil {
		a.imports.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
}

// addOwnerFlags registers the flags that select who a command acts as.
func addOwnerFlags(cmd *cobra.Command) {
	cmd.Flags().String("owner", defaultOwner(), "owner id to act as")
	cmd.Flags().Bool("admin", false, "act with the admin role")
}

func principalFlag(cmd *cobra.Command) model.Principal {
	owner, _ := cmd.Flags().GetString("owner")
	admin, _ := cmd.Flags().GetBool("admin")
	role := model.RoleUser
	if admin {
		role = model.RoleAdmin
	}
	return model.Principal{ID: owner, Role: role}
}

func defaultOwner() string {
	if owner := os.Getenv("PAPERWORK_OWNER"); owner != "" {
		return owner
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "local"
}
