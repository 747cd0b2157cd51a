package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

// Paging limits for ListSessions.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListOptions selects a page of sessions.
type ListOptions struct {
	Status model.SessionStatus
	Page   int
	Limit  int
}

// Pagination describes the page returned by ListSessions.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// SessionPage is one page of session summaries.
type SessionPage struct {
	Sessions   []model.ImportSession `json:"sessions"`
	Pagination Pagination            `json:"pagination"`
}

// StatusView is the progress of a session.
type StatusView struct {
	Status          model.SessionStatus     `json:"status"`
	ProcessingStage model.ProcessingStage   `json:"processing_stage"`
	ErrorMessage    string                  `json:"error_message,omitempty"`
	BankName        string                  `json:"bank_name,omitempty"`
	Statistics      model.SessionStatistics `json:"statistics"`
}

// GetSession returns a session with its transactions and suggestions.
func (s *Service) GetSession(ctx context.Context, principal model.Principal, sessionID string) (*model.ImportSession, error) {
	return s.loadSession(ctx, principal, sessionID, false)
}

// GetStatus returns the processing progress of a session.
func (s *Service) GetStatus(ctx context.Context, principal model.Principal, sessionID string) (*StatusView, error) {
	session, err := s.loadSession(ctx, principal, sessionID, false)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Status:          session.Status,
		ProcessingStage: session.ProcessingStage,
		ErrorMessage:    session.ErrorMessage,
		BankName:        session.BankName,
		Statistics:      session.Statistics,
	}, nil
}

// ListSessions returns the principal's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, principal model.Principal, opts ListOptions) (*SessionPage, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, common.ValidationError("unknown status %q", opts.Status)
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultPageLimit
	case opts.Limit > MaxPageLimit:
		opts.Limit = MaxPageLimit
	}

	sessions, total, err := s.store.ListSessions(ctx, service.SessionFilter{
		OwnerID: principal.ID,
		Status:  opts.Status,
		Limit:   opts.Limit,
		Offset:  (opts.Page - 1) * opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ImportSession{}
	}

	return &SessionPage{
		Sessions: sessions,
		Pagination: Pagination{
			Page:  opts.Page,
			Limit: opts.Limit,
			Total: total,
			Pages: (total + opts.Limit - 1) / opts.Limit,
		},
	}, nil
}

// DeleteSession removes a session and its uploaded file. Sessions whose
// suggestions produced records cannot be deleted. Deleting a session that is
// still processing stops its run.
func (s *Service) DeleteSession(ctx context.Context, principal model.Principal, sessionID string) error {
	session, err := s.loadSession(ctx, principal, sessionID, true)
	if err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.store.CountReferencing(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d records reference session %s", common.ErrHasAssociatedEntries, count, sessionID)
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.queue.Cancel(sessionID)
	if session.BlobKey != "" {
		s.discardBlob(ctx, session.BlobKey)
	}
	s.locks.Delete(sessionID)

	slog.Info("Deleted import session", "session_id", sessionID, "owner_id", session.OwnerID)
	return nil
}

// loadSession enforces ownership. Admins may read any session but only owners may change one.
func (s *Service) loadSession(ctx context.Context, principal model.Principal, sessionID string, write bool) (*model.ImportSession, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID == principal.ID {
		return session, nil
	}
	if !write && principal.IsAdmin() {
		return session, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, common.ErrForbidden)
}
