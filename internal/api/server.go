// Package api exposes import sessions, detection rules and renewals over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/renewal"
)

// ImportService is the import session surface served by the API.
type ImportService interface {
	UploadStatement(ctx context.Context, principal model.Principal, data []byte, filename string, opts importer.UploadOptions) (*model.ImportSession, error)
	GetSession(ctx context.Context, principal model.Principal, sessionID string) (*model.ImportSession, error)
	GetStatus(ctx context.Context, principal model.Principal, sessionID string) (*importer.StatusView, error)
	ListSessions(ctx context.Context, principal model.Principal, opts importer.ListOptions) (*importer.SessionPage, error)
	ConfirmSuggestions(ctx context.Context, principal model.Principal, sessionID string, req importer.ConfirmRequest) (*importer.ConfirmResult, error)
	DeleteSession(ctx context.Context, principal model.Principal, sessionID string) error
	TestDetectionRules(ctx context.Context, principal model.Principal, ruleSetID string, samples []model.Transaction) ([]model.RecurringPaymentSuggestion, error)
}

// RenewalService is the renewal surface served by the API.
type RenewalService interface {
	Sweep(ctx context.Context) (*renewal.SweepResult, error)
	Upcoming(ctx context.Context, principal model.Principal, daysAhead int) ([]model.Reminder, error)
	Overdue(ctx context.Context, principal model.Principal) ([]model.Reminder, error)
	Snooze(ctx context.Context, principal model.Principal, recordID string, days int) (*model.DomainRecord, error)
	Timeline(ctx context.Context, principal model.Principal, months int) ([]renewal.TimelineBucket, error)
}

// DomainSuggester proposes a domain for a payment description.
type DomainSuggester interface {
	Suggest(in classification.Input) classification.Suggestion
}

// Config configures the HTTP server.
type Config struct {
	JWTSecret      string
	UploadRate     float64
	UploadBurst    int
	MaxUploadBytes int64
}

// Deps are the services behind the API.
type Deps struct {
	Imports  ImportService
	Renewals RenewalService
	Domains  DomainSuggester
}

// Server is the HTTP API.
type Server struct {
	app      *fiber.App
	imports  ImportService
	renewals RenewalService
	domains  DomainSuggester
	limiters *cache.Cache
	secret   []byte
	cfg      Config
	mu       sync.Mutex
}

// New creates the server and registers its routes.
func New(deps Deps, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = importer.DefaultConfig().MaxUploadBytes
	}
	if cfg.UploadRate <= 0 {
		cfg.UploadRate = 1
	}
	if cfg.UploadBurst <= 0 {
		cfg.UploadBurst = 5
	}

	s := &Server{
		imports:  deps.Imports,
		renewals: deps.Renewals,
		domains:  deps.Domains,
		limiters: newLimiterCache(cfg),
		secret:   []byte(cfg.JWTSecret),
		cfg:      cfg,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "paperwork",
		BodyLimit:             int(cfg.MaxUploadBytes) + 64<<10,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(requestLogger)
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api", s.authenticate)

	api.Post("/imports", s.handleUpload)
	api.Get("/imports", s.handleListSessions)
	api.Get("/imports/:id", s.handleGetSession)
	api.Get("/imports/:id/status", s.handleGetStatus)
	api.Post("/imports/:id/confirm", s.handleConfirm)
	api.Delete("/imports/:id", s.handleDeleteSession)

	api.Post("/rulesets/:id/test", s.handleTestRules)
	api.Post("/domains/suggest", s.handleSuggestDomain)

	api.Get("/renewals/upcoming", s.handleUpcoming)
	api.Get("/renewals/overdue", s.handleOverdue)
	api.Get("/renewals/timeline", s.handleTimeline)
	api.Post("/renewals/sweep", s.handleSweep)
	api.Post("/renewals/:id/snooze", s.handleSnooze)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	slog.Info("API listening", "addr", addr)
	return s.app.Listen(addr)
}

// ListenTLS serves HTTPS on addr with cert until Shutdown is called.
func (s *Server) ListenTLS(addr string, cert tls.Certificate) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	slog.Info("API listening with TLS", "addr", addr)
	return s.app.Listener(tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}))
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// limiterIdleTTL is how long an unused upload limiter is kept.
const limiterIdleTTL = 30 * time.Minute

// newLimiterCache keeps a limiter at least until its bucket would have refilled,
// so dropping an idle one never grants extra uploads.
func newLimiterCache(cfg Config) *cache.Cache {
	ttl := limiterIdleTTL
	if refill := time.Duration(float64(cfg.UploadBurst) / cfg.UploadRate * float64(time.Second)); refill > ttl {
		ttl = refill
	}
	return cache.New(ttl, ttl/2)
}

// allowUpload applies the per-principal upload rate limit. Each use extends the
// limiter's lifetime.
func (s *Server) allowUpload(principalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lim *rate.Limiter
	if cached, ok := s.limiters.Get(principalID); ok {
		lim = cached.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Limit(s.cfg.UploadRate), s.cfg.UploadBurst)
	}
	s.limiters.Set(principalID, lim, cache.DefaultExpiration)
	return lim.Allow()
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start))
	return err
}
