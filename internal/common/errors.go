// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Statement errors.
	ErrInvalidFormat       = errors.New("invalid statement format")
	ErrParse               = errors.New("statement could not be parsed")
	ErrNoTransactionsFound = errors.New("no transactions found")

	// Request errors.
	ErrValidation           = errors.New("validation failed")
	ErrInvalidIndex         = errors.New("invalid suggestion index")
	ErrForbidden            = errors.New("forbidden")
	ErrHasAssociatedEntries = errors.New("session has associated entries")
	ErrInvalidTransition    = errors.New("invalid session transition")
	ErrUnauthenticated      = errors.New("principal required")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DuplicateUploadError signals that the uploaded content already has an import session.
// It is not a pipeline failure; callers surface it as a conflict carrying the existing id.
type DuplicateUploadError struct {
	ExistingSessionID string
}

func (e *DuplicateUploadError) Error() string {
	return fmt.Sprintf("statement already uploaded in session %s", e.ExistingSessionID)
}

// Is lets errors.Is(err, ErrDuplicateEntry) match duplicate uploads.
func (e *DuplicateUploadError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// ValidationError wraps ErrValidation with a field-level message.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err was caused by caller input rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrInvalidFormat)
}
