package pattern

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/textmatch"
)

var _ RecurringDetector = (*Detector)(nil)

// Weights are the relative contributions to suggestion confidence.
type Weights struct {
	Occurrence float64 `mapstructure:"occurrence"`
	Regularity float64 `mapstructure:"regularity"`
	RuleMatch  float64 `mapstructure:"rule_match"`
}

// DefaultWeights returns the standard confidence weighting.
func DefaultWeights() Weights {
	return Weights{Occurrence: 0.4, Regularity: 0.3, RuleMatch: 0.3}
}

// Config tunes detection beyond the per-rule-set thresholds.
type Config struct {
	Buckets        []Bucket `mapstructure:"buckets"`
	Weights        Weights  `mapstructure:"weights"`
	MinOccurrences int      `mapstructure:"min_occurrences"`
}

// DefaultConfig returns the standard detection configuration.
func DefaultConfig() Config {
	return Config{
		Buckets:        DefaultBuckets(),
		Weights:        DefaultWeights(),
		MinOccurrences: 2,
	}
}

// Detector groups transactions by payee and infers recurring payments.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector, filling unset configuration with defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = def.Buckets
	}
	if cfg.Weights.Occurrence+cfg.Weights.Regularity+cfg.Weights.RuleMatch <= 0 {
		cfg.Weights = def.Weights
	}
	if cfg.MinOccurrences < 2 {
		cfg.MinOccurrences = def.MinOccurrences
	}
	return &Detector{cfg: cfg}
}

// payeeGroup is a set of transactions attributed to one payee.
type payeeGroup struct {
	key     string
	payees  []string
	indexes []int
}

// Detect returns one suggestion per recurring payee group, ordered by the
// group's first appearance in txns. Credits are ignored. Irregular groups are
// dropped; groups under the confidence threshold are kept and flagged.
func (d *Detector) Detect(ctx context.Context, txns []model.Transaction, rules model.DetectionRuleSet) ([]model.RecurringPaymentSuggestion, error) {
	settings := rules.Settings
	if settings.FuzzyMatchThreshold <= 0 {
		settings.FuzzyMatchThreshold = model.DefaultFuzzyMatchThreshold
	}
	if settings.MinConfidenceThreshold <= 0 {
		settings.MinConfidenceThreshold = model.DefaultMinConfidenceThreshold
	}

	groups := d.group(txns, settings.FuzzyMatchThreshold)
	matcher := NewMatcher(rules.CategoryRules, settings.FuzzyMatchThreshold)

	suggestions := make([]model.RecurringPaymentSuggestion, 0, len(groups))
	for _, g := range groups {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("detection cancelled: %w", ctx.Err())
		default:
		}

		if len(g.indexes) < d.cfg.MinOccurrences {
			continue
		}

		dates := make([]time.Time, 0, len(g.indexes))
		for _, idx := range g.indexes {
			dates = append(dates, txns[idx].Date)
		}
		gaps := DayGaps(dates)
		frequency := InferFrequency(gaps, d.cfg.Buckets)
		if frequency == model.FrequencyIrregular {
			continue
		}

		texts := []string{g.key}
		for _, idx := range g.indexes {
			texts = append(texts, txns[idx].Description)
		}
		match := matcher.Match(texts...)

		confidence := d.confidence(len(g.indexes), Regularity(gaps), strength(match))

		s := model.RecurringPaymentSuggestion{
			Index:              len(suggestions),
			Payee:              canonicalPayee(g),
			Category:           model.UncategorizedCategory,
			Amount:             latestAmount(txns, g.indexes),
			Frequency:          frequency,
			Confidence:         confidence,
			LowConfidence:      confidence < settings.MinConfidenceThreshold,
			Occurrences:        len(g.indexes),
			TransactionIndexes: append([]int(nil), g.indexes...),
			Status:             model.SuggestionPending,
		}
		if match.Matched() {
			s.Category = match.Rule.Category
			s.Provider = match.Rule.Provider
		}
		s.SuggestedEntry = SuggestEntry(s, match)

		suggestions = append(suggestions, s)
	}

	return suggestions, nil
}

// group assigns each debit to the most similar existing group at or above
// threshold, or starts a new group.
func (d *Detector) group(txns []model.Transaction, threshold float64) []*payeeGroup {
	var groups []*payeeGroup
	for i, txn := range txns {
		if !txn.IsDebit() {
			continue
		}
		payee := NormalizePayee(txn.Description)
		if payee == "" {
			continue
		}

		var best *payeeGroup
		bestScore := 0.0
		for _, g := range groups {
			if score := textmatch.TokenSetRatio(payee, g.key); score >= threshold && score > bestScore {
				best, bestScore = g, score
			}
		}
		if best == nil {
			best = &payeeGroup{key: payee}
			groups = append(groups, best)
		}
		best.payees = append(best.payees, payee)
		best.indexes = append(best.indexes, i)
	}
	return groups
}

// confidence combines the weighted scores and clamps the result to [0,1].
func (d *Detector) confidence(occurrences int, regularity, match float64) float64 {
	w := d.cfg.Weights
	occurrence := 1 - 1/float64(occurrences)
	total := w.Occurrence + w.Regularity + w.RuleMatch
	score := (w.Occurrence*occurrence + w.Regularity*regularity + w.RuleMatch*match) / total
	return math.Round(clamp01(score)*1000) / 1000
}

// canonicalPayee picks the shortest payee spelling in the group, upper-cased.
func canonicalPayee(g *payeeGroup) string {
	best := g.payees[0]
	for _, p := range g.payees[1:] {
		if len(p) < len(best) {
			best = p
		}
	}
	return strings.ToUpper(best)
}

// latestAmount returns the amount of the most recent occurrence; later rows win ties.
func latestAmount(txns []model.Transaction, indexes []int) decimal.Decimal {
	latest := indexes[0]
	for _, idx := range indexes[1:] {
		if !txns[idx].Date.Before(txns[latest].Date) {
			latest = idx
		}
	}
	return txns[latest].Amount
}
