package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

// Session statuses. Completed and failed are terminal.
const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	return s == SessionProcessing || s.IsTerminal()
}

// ProcessingStage is the pipeline step a processing session is in.
type ProcessingStage string

// Processing stages in execution order.
const (
	StageBankIdentification    ProcessingStage = "bank_identification"
	StageTransactionExtraction ProcessingStage = "transaction_extraction"
	StagePatternDetection      ProcessingStage = "pattern_detection"
	StageSuggestionGeneration  ProcessingStage = "suggestion_generation"
)

// UnknownBank is reported when no statement signature matches.
const UnknownBank = "Unknown"

// ImportSession is the aggregate root of one statement upload.
type ImportSession struct {
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
	CompletedAt       *time.Time                   `json:"completed_at,omitempty"`
	ID                string                       `json:"id"`
	OwnerID           string                       `json:"owner_id"`
	Filename          string                       `json:"filename"`
	ContentHash       string                       `json:"content_hash"`
	RuleSetID         string                       `json:"rule_set_id,omitempty"`
	BlobKey           string                       `json:"-"`
	Status            SessionStatus                `json:"status"`
	ProcessingStage   ProcessingStage              `json:"processing_stage"`
	BankName          string                       `json:"bank_name"`
	ErrorMessage      string                       `json:"error_message,omitempty"`
	Transactions      []Transaction                `json:"transactions"`
	RecurringPayments []RecurringPaymentSuggestion `json:"recurring_payments"`
	Statistics        SessionStatistics            `json:"statistics"`
}

// SessionStatistics summarizes a session's results.
type SessionStatistics struct {
	TotalTransactions int `json:"total_transactions"`
	RecurringDetected int `json:"recurring_detected"`
}

// SuggestionStatus tracks the confirmation state of a suggestion.
type SuggestionStatus string

// Suggestion statuses. Pending moves to accepted or rejected exactly once.
const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// SuggestedEntry is the record the suggestion would create.
type SuggestedEntry struct {
	Title    string `json:"title"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

// RecurringPaymentSuggestion is a detected recurring commitment awaiting confirmation.
type RecurringPaymentSuggestion struct {
	SuggestedEntry     SuggestedEntry   `json:"suggested_entry"`
	Amount             decimal.Decimal  `json:"amount"`
	Payee              string           `json:"payee"`
	Category           string           `json:"category"`
	Provider           string           `json:"provider,omitempty"`
	Frequency          Frequency        `json:"frequency"`
	SuggestedDomain    Domain           `json:"suggested_domain,omitempty"`
	Status             SuggestionStatus `json:"status"`
	RecordID           string           `json:"record_id,omitempty"`
	TransactionIndexes []int            `json:"transaction_indexes"`
	Index              int              `json:"index"`
	Occurrences        int              `json:"occurrences"`
	Confidence         float64          `json:"confidence"`
	DomainConfidence   float64          `json:"domain_confidence,omitempty"`
	LowConfidence      bool             `json:"low_confidence"`
}
