package pattern

import (
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/textmatch"
)

// MatchKind aliases the similarity match kinds.
type MatchKind = textmatch.MatchKind

// Matcher evaluates payees against the category rules of one rule set.
type Matcher struct {
	rules     []model.CategoryRule
	threshold float64
}

// NewMatcher creates a matcher over rules using the fuzzy threshold.
func NewMatcher(rules []model.CategoryRule, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = model.DefaultFuzzyMatchThreshold
	}
	return &Matcher{rules: rules, threshold: threshold}
}

// Match returns the strongest rule match across texts. Exact matches beat fuzzy
// ones, higher scores beat lower ones, and earlier rules win ties.
func (m *Matcher) Match(texts ...string) RuleMatch {
	var best RuleMatch
	for i := range m.rules {
		rule := &m.rules[i]
		for _, p := range rule.Patterns {
			for _, text := range texts {
				kind, score := textmatch.Contains(text, p, m.threshold)
				if kind == textmatch.MatchNone {
					continue
				}
				if better(kind, score, best) {
					best = RuleMatch{Rule: rule, Pattern: p, Kind: kind, Score: score}
				}
			}
		}
	}
	return best
}

func better(kind MatchKind, score float64, current RuleMatch) bool {
	if current.Rule == nil {
		return true
	}
	if kind != current.Kind {
		return kind > current.Kind
	}
	return score > current.Score
}

// strength maps a match to the rule-match component of confidence.
func strength(m RuleMatch) float64 {
	switch m.Kind {
	case textmatch.MatchExact:
		return 1.0
	case textmatch.MatchFuzzy:
		return 0.5 + 0.4*m.Score
	default:
		return 0.2
	}
}
