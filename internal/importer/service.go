package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/extract"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
	"github.com/Veraticus/the-paperwork-must-flow/internal/statement"
)

// Config holds tuning options for the import service.
type Config struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	ResumeInterval time.Duration `mapstructure:"resume_interval"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        2,
		QueueSize:      64,
		RunTimeout:     2 * time.Minute,
		ResumeInterval: 30 * time.Second,
		MaxUploadBytes: 10 << 20,
	}
}

// Deps are the collaborators of the import service. Parser, Extractor, Detector and
// Domains default to the production implementations when nil.
type Deps struct {
	Store     Store
	Blobs     service.BlobStore
	Rules     pattern.RuleSetSource
	Parser    StatementParser
	Extractor TransactionExtractor
	Detector  pattern.RecurringDetector
	Domains   DomainSuggester
}

// UploadOptions selects how an upload is processed.
type UploadOptions struct {
	RuleSetID string
}

// Service owns import sessions from upload to confirmation.
type Service struct {
	store     Store
	blobs     service.BlobStore
	rules     pattern.RuleSetSource
	parser    StatementParser
	extractor TransactionExtractor
	detector  pattern.RecurringDetector
	domains   DomainSuggester
	queue     *Queue
	now       func() time.Time
	locks     sync.Map
	cfg       Config

	stopResume context.CancelFunc
	resumeDone chan struct{}
}

// New creates an import service with the default configuration.
func New(deps Deps) *Service {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an import service with custom configuration.
func NewWithConfig(deps Deps, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaults.MaxUploadBytes
	}

	s := &Service{
		store:     deps.Store,
		blobs:     deps.Blobs,
		rules:     deps.Rules,
		parser:    deps.Parser,
		extractor: deps.Extractor,
		detector:  deps.Detector,
		domains:   deps.Domains,
		now:       time.Now,
		cfg:       cfg,
	}
	if s.parser == nil {
		s.parser = statement.NewParser()
	}
	if s.extractor == nil {
		s.extractor = extract.New()
	}
	if s.detector == nil {
		s.detector = pattern.NewDetector(pattern.DefaultConfig())
	}
	if s.domains == nil {
		s.domains = classification.NewDefaultEngine()
	}
	s.queue = NewQueue(s, QueueConfig{
		Workers:    cfg.Workers,
		Size:       cfg.QueueSize,
		RunTimeout: cfg.RunTimeout,
	})
	return s
}

// Start launches the background workers and, when ResumeInterval is set, a loop
// that schedules sessions deferred by a full queue.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.ResumeInterval <= 0 || s.stopResume != nil {
		return
	}

	ctx, s.stopResume = context.WithCancel(ctx)
	s.resumeDone = make(chan struct{})
	go func() {
		defer close(s.resumeDone)
		ticker := time.NewTicker(s.cfg.ResumeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ResumePending(ctx); err != nil && ctx.Err() == nil {
					slog.Warn("Failed to resume deferred import sessions", "error", err)
				}
			}
		}
	}()
}

// Stop drains queued sessions and stops the workers.
func (s *Service) Stop() {
	if s.stopResume != nil {
		s.stopResume()
		<-s.resumeDone
	}
	s.queue.Stop()
}

// UploadStatement records a new statement upload and schedules it for processing.
// When the owner already uploaded identical content, the existing session is
// returned together with a *common.DuplicateUploadError.
func (s *Service) UploadStatement(ctx context.Context, principal model.Principal, data []byte, filename string, opts UploadOptions) (*model.ImportSession, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, common.ValidationError("statement file is empty")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, common.ValidationError("statement file exceeds %d bytes", s.cfg.MaxUploadBytes)
	}
	if filename == "" {
		filename = "statement.pdf"
	}

	hash := contentHash(data)
	if existing, err := s.store.FindSessionByHash(ctx, principal.ID, hash); err == nil {
		return existing, &common.DuplicateUploadError{ExistingSessionID: existing.ID}
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate upload: %w", err)
	}

	if opts.RuleSetID != "" {
		if _, err := s.rules.Snapshot(ctx, principal, opts.RuleSetID); err != nil {
			return nil, fmt.Errorf("rule set %s: %w", opts.RuleSetID, err)
		}
	}

	id := uuid.New().String()
	blobKey := "statements/" + principal.ID + "/" + id + ".pdf"
	if err := s.blobs.Put(ctx, blobKey, data); err != nil {
		return nil, fmt.Errorf("failed to store statement: %w", err)
	}

	session := &model.ImportSession{
		ID:              id,
		OwnerID:         principal.ID,
		Filename:        filename,
		ContentHash:     hash,
		RuleSetID:       opts.RuleSetID,
		BlobKey:         blobKey,
		Status:          model.SessionProcessing,
		ProcessingStage: model.StageBankIdentification,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		s.discardBlob(ctx, blobKey)
		if errors.Is(err, common.ErrDuplicateEntry) {
			// A concurrent upload of the same file won the insert.
			if existing, findErr := s.store.FindSessionByHash(ctx, principal.ID, hash); findErr == nil {
				return existing, &common.DuplicateUploadError{ExistingSessionID: existing.ID}
			}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("Statement uploaded",
		"session_id", session.ID,
		"owner_id", principal.ID,
		"filename", filename,
		"bytes", len(data))

	err := s.queue.Enqueue(ctx, session.ID)
	if errors.Is(err, ErrQueueFull) {
		slog.Warn("Import queue full, session deferred", "session_id", session.ID)
		return session, nil
	}
	if err != nil {
		failCtx := context.WithoutCancel(ctx)
		if failErr := s.store.FailSession(failCtx, session.ID, "could not schedule processing"); failErr != nil {
			slog.Error("Failed to mark unscheduled session", "session_id", session.ID, "error", failErr)
		}
		return nil, fmt.Errorf("failed to schedule session: %w", err)
	}
	return session, nil
}

// ResumePending schedules processing sessions that are not queued or running,
// such as those left by a previous run or deferred by a full queue. It stops
// early when the queue fills and returns how many sessions it scheduled.
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	sessions, _, err := s.store.ListSessions(ctx, service.SessionFilter{Status: model.SessionProcessing})
	if err != nil {
		return 0, fmt.Errorf("failed to list processing sessions: %w", err)
	}
	resumed := 0
	for _, session := range sessions {
		if s.queue.Scheduled(session.ID) {
			continue
		}
		err := s.queue.Enqueue(ctx, session.ID)
		if errors.Is(err, ErrQueueFull) {
			slog.Debug("Import queue full, leaving sessions for later", "remaining", len(sessions)-resumed)
			break
		}
		if err != nil {
			return resumed, fmt.Errorf("failed to resume session %s: %w", session.ID, err)
		}
		resumed++
	}
	if resumed > 0 {
		slog.Info("Resumed pending import sessions", "count", resumed)
	}
	return resumed, nil
}

func (s *Service) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("Failed to delete statement blob", "key", key, "error", err)
	}
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
