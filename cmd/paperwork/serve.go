package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/api"
	"github.com/Veraticus/the-paperwork-must-flow/internal/certs"
	"github.com/Veraticus/the-paperwork-must-flow/internal/config"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, import workers and reminder sweeps",
		Long: `Serve the import and renewal API. Sessions left processing by a previous
run are queued again on start, and a reminder sweep runs on every
--sweep-interval.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (overrides api.addr)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate kept in api.tls_cert_dir")
	cmd.Flags().Duration("sweep-interval", time.Hour, "time between reminder sweeps (0 disables)")
	cmd.Flags().Duration("shutdown-timeout", 15*time.Second, "time allowed for in-flight requests on shutdown")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.API.Addr
	}
	sweepInterval, _ := cmd.Flags().GetDuration("sweep-interval")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.imports.Start(ctx)
	resumed, err := a.imports.ResumePending(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume pending imports: %w", err)
	}
	if resumed > 0 {
		slog.Info("Resumed unfinished imports", "count", resumed)
	}

	server := api.New(api.Deps{
		Imports:  a.imports,
		Renewals: a.renewals,
		Domains:  a.domains,
	}, api.Config{
		JWTSecret:      cfg.API.JWTSecret,
		UploadRate:     cfg.API.UploadRate,
		UploadBurst:    cfg.API.UploadBurst,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
	})

	if sweepInterval > 0 {
		go runSweeps(ctx, a, sweepInterval)
	}

	useTLS, _ := cmd.Flags().GetBool("tls")
	listen := func() error { return server.Listen(addr) }
	if useTLS {
		dir := cfg.API.TLSCertDir
		if dir == "" {
			dir = config.ExpandPath("~/.config/paperwork/certs")
		}
		cert, err := certs.NewFileManager(dir).GetOrCreateCertificate()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		listen = func() error { return server.ListenTLS(addr, cert) }
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

func runSweeps(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.renewals.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Reminder sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
