// Package storage provides the SQLite persistence layer for import sessions,
// rule sets, domain records and statement blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidSession    = errors.New("invalid import session")
	ErrInvalidSuggestion = errors.New("invalid suggestion")
	ErrInvalidRecord     = errors.New("invalid domain record")
	ErrInvalidRuleSet    = errors.New("invalid rule set")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateSession(session *model.ImportSession) error {
	if session == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if session.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSession)
	}
	if session.OwnerID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidSession)
	}
	if session.ContentHash == "" {
		return fmt.Errorf("%w: missing content hash", ErrInvalidSession)
	}
	if !session.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSession, session.Status)
	}
	return nil
}

func validateSuggestions(suggestions []model.RecurringPaymentSuggestion) error {
	for i, s := range suggestions {
		if s.Index != i {
			return fmt.Errorf("%w: index %d stored at position %d", ErrInvalidSuggestion, s.Index, i)
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			return fmt.Errorf("%w: confidence %v out of range", ErrInvalidSuggestion, s.Confidence)
		}
		if !s.Frequency.IsValid() {
			return fmt.Errorf("%w: frequency %q", ErrInvalidSuggestion, s.Frequency)
		}
		switch s.Status {
		case model.SuggestionPending, model.SuggestionAccepted, model.SuggestionRejected:
		default:
			return fmt.Errorf("%w: status %q", ErrInvalidSuggestion, s.Status)
		}
	}
	return nil
}

func validateRecord(record *model.DomainRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if record.OwnerID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidRecord)
	}
	if !record.Domain.IsValid() {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidRecord, record.Domain)
	}
	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}
	if strings.TrimSpace(record.RecordType) == "" {
		return fmt.Errorf("%w: missing record type", ErrInvalidRecord)
	}
	return nil
}

func validateRuleSet(rs *model.DetectionRuleSet) error {
	if rs == nil {
		return fmt.Errorf("%w: rule set", ErrNilParameter)
	}
	if rs.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRuleSet)
	}
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRuleSet)
	}
	return nil
}
