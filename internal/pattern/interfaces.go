// Package pattern detects recurring payments in statement transactions using
// configurable detection rule sets.
package pattern

import (
	"context"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// RecurringDetector finds recurring payments in a list of transactions.
type RecurringDetector interface {
	// Detect groups transactions by payee and returns one suggestion per recurring group.
	Detect(ctx context.Context, txns []model.Transaction, rules model.DetectionRuleSet) ([]model.RecurringPaymentSuggestion, error)
}

// RuleSetSource supplies immutable rule set snapshots for detection runs.
type RuleSetSource interface {
	// Snapshot returns a deep copy of the requested rule set, or the default when id is empty.
	Snapshot(ctx context.Context, principal model.Principal, id string) (model.DetectionRuleSet, error)
}

// RuleMatch describes which category rule matched a payee and how strongly.
type RuleMatch struct {
	Rule    *model.CategoryRule
	Pattern string
	Kind    MatchKind
	Score   float64
}

// Matched reports whether any rule matched.
func (m RuleMatch) Matched() bool {
	return m.Rule != nil
}
