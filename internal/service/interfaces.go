// Package service defines the persistence contracts the core depends on.
package service

import (
	"context"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// SessionFilter selects import sessions for listing.
type SessionFilter struct {
	OwnerID string
	Status  model.SessionStatus
	Limit   int
	Offset  int
}

// SessionStore persists import sessions together with their transactions and suggestions.
type SessionStore interface {
	// CreateSession inserts a new session. A second session with the same owner and
	// content hash fails with common.ErrDuplicateEntry.
	CreateSession(ctx context.Context, session *model.ImportSession) error
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	FindSessionByHash(ctx context.Context, ownerID, contentHash string) (*model.ImportSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.ImportSession, int, error)

	// Pipeline updates. They fail with common.ErrInvalidTransition once the session is terminal.
	UpdateSessionStage(ctx context.Context, id string, stage model.ProcessingStage) error
	SetBankName(ctx context.Context, id, bankName string) error
	SaveTransactions(ctx context.Context, id string, txns []model.Transaction) error
	SaveSuggestions(ctx context.Context, id string, suggestions []model.RecurringPaymentSuggestion) error
	CompleteSession(ctx context.Context, id string) error
	FailSession(ctx context.Context, id, message string) error

	// TransitionSuggestion moves a suggestion from one status to another only if it
	// is still in from. It reports whether this caller won the transition.
	TransitionSuggestion(ctx context.Context, sessionID string, index int, from, to model.SuggestionStatus, recordID string) (bool, error)
	MarkTransactionsRecorded(ctx context.Context, sessionID string, indexes []int) error
	DeleteSession(ctx context.Context, id string) error
}

// RecordFilter selects domain records.
type RecordFilter struct {
	OwnerID       string
	Domain        model.Domain
	Provider      string
	ActiveRenewal bool
}

// RecordStore persists domain records.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *model.DomainRecord) error
	GetRecord(ctx context.Context, id string) (*model.DomainRecord, error)
	UpdateRecord(ctx context.Context, record *model.DomainRecord) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.DomainRecord, error)
	// CountReferencing returns how many records were imported from the session.
	CountReferencing(ctx context.Context, sessionID string) (int, error)
	// UpdateRenewalSchedule replaces only the scheduling fields of a record's renewal info.
	UpdateRenewalSchedule(ctx context.Context, id string, info model.RenewalInfo) error
}

// RuleSetStore persists detection rule sets.
type RuleSetStore interface {
	CreateRuleSet(ctx context.Context, rs *model.DetectionRuleSet) error
	// UpdateRuleSet stores rs when the stored version equals rs.Version-1.
	UpdateRuleSet(ctx context.Context, rs *model.DetectionRuleSet) error
	GetRuleSet(ctx context.Context, id string) (*model.DetectionRuleSet, error)
	GetDefaultRuleSet(ctx context.Context) (*model.DetectionRuleSet, error)
	ListRuleSets(ctx context.Context, ownerID string) ([]model.DetectionRuleSet, error)
	DeleteRuleSet(ctx context.Context, id string) error
}

// BlobStore keeps uploaded statement files.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Storage is the full persistence layer.
type Storage interface {
	SessionStore
	RecordStore
	RuleSetStore
	Migrate(ctx context.Context) error
	Close() error
}
