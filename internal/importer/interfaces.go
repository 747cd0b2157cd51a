// Package importer runs bank statement import sessions: upload, background
// processing into recurring payment suggestions, and confirmation into domain records.
package importer

import (
	"context"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
	"github.com/Veraticus/the-paperwork-must-flow/internal/statement"
)

// StatementParser turns uploaded bytes into statement text.
type StatementParser interface {
	Parse(data []byte) (*statement.Document, error)
}

// TransactionExtractor segments statement text into transactions.
type TransactionExtractor interface {
	Extract(doc *statement.Document) []model.Transaction
}

// DomainSuggester proposes the life domain for a recurring payment.
type DomainSuggester interface {
	Suggest(in classification.Input) classification.Suggestion
}

// Store is the persistence the import service needs.
type Store interface {
	service.SessionStore
	service.RecordStore
}

// Runner processes one session to a terminal state.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}
