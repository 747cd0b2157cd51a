// Package classification suggests the life domain and record type for a
// recurring payment.
package classification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/textmatch"
)

// Fallback returned when no rule matches.
const (
	FallbackDomain     = model.DomainFinance
	FallbackRecordType = "recurring_payment"
	FallbackConfidence = 0.3
)

// Keyword matches found only in the payee or description are weaker than a
// category match by this much.
const textMatchPenalty = 0.2

// Override redirects a rule to another domain when a secondary keyword is present.
type Override struct {
	Domain     model.Domain
	RecordType string
	Keywords   []string
}

// Rule maps keywords to a domain.
type Rule struct {
	Name       string
	Domain     model.Domain
	RecordType string
	Keywords   []string
	Overrides  []Override
	Priority   int     // higher priority rules are checked first
	Confidence float64 // confidence of a category match
}

type compiledOverride struct {
	regex *regexp.Regexp
	Override
}

type compiledRule struct {
	regex     *regexp.Regexp
	overrides []compiledOverride
	Rule
}

// Input is the transaction-like value a suggestion is made for.
type Input struct {
	Category    string `json:"category"`
	Payee       string `json:"payee"`
	Description string `json:"description"`
}

// Suggestion is the proposed domain for an input.
type Suggestion struct {
	Domain     model.Domain `json:"domain"`
	RecordType string       `json:"record_type"`
	Reason     string       `json:"reason"`
	Confidence float64      `json:"confidence"`
}

// Engine suggests domains from an ordered keyword table. It holds no mutable
// state after construction and is safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles rules into whole-word matchers ordered by priority.
func NewEngine(rules []Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Domain.IsValid() {
			return nil, fmt.Errorf("rule %s: unknown domain %q", r.Name, r.Domain)
		}
		regex, err := compileKeywords(r.Keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", r.Name, err)
		}
		cr := compiledRule{Rule: r, regex: regex}
		for _, o := range r.Overrides {
			if !o.Domain.IsValid() {
				return nil, fmt.Errorf("rule %s: unknown override domain %q", r.Name, o.Domain)
			}
			oregex, err := compileKeywords(o.Keywords)
			if err != nil {
				return nil, fmt.Errorf("failed to compile override for rule %s: %w", r.Name, err)
			}
			cr.overrides = append(cr.overrides, compiledOverride{Override: o, regex: oregex})
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return &Engine{rules: compiled}, nil
}

// NewDefaultEngine returns an engine over DefaultRules.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("default classification rules do not compile: %v", err))
	}
	return e
}

// compileKeywords builds a case-insensitive alternation anchored on word
// boundaries. Spaces inside a keyword match any run of whitespace.
func compileKeywords(keywords []string) (*regexp.Regexp, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords")
	}
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		words := strings.Fields(textmatch.Normalize(kw))
		if len(words) == 0 {
			return nil, fmt.Errorf("blank keyword")
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Suggest returns the domain for in. The category is tried against every rule
// before the payee and description are, and the first matching rule wins.
func (e *Engine) Suggest(in Input) Suggestion {
	category := textmatch.Normalize(in.Category)
	text := textmatch.Normalize(in.Payee + " " + in.Description)
	all := strings.TrimSpace(category + " " + text)

	if s, ok := e.match(category, all, "category", 0); ok {
		return s
	}
	if s, ok := e.match(text, all, "payee", textMatchPenalty); ok {
		return s
	}

	return Suggestion{
		Domain:     FallbackDomain,
		RecordType: FallbackRecordType,
		Confidence: FallbackConfidence,
		Reason:     "no keyword matched",
	}
}

func (e *Engine) match(subject, all, source string, penalty float64) (Suggestion, bool) {
	if subject == "" {
		return Suggestion{}, false
	}
	for _, r := range e.rules {
		kw := r.regex.FindString(subject)
		if kw == "" {
			continue
		}

		s := Suggestion{
			Domain:     r.Domain,
			RecordType: r.RecordType,
			Confidence: clamp(r.Confidence - penalty),
			Reason:     fmt.Sprintf("%s %q matched %s", source, kw, r.Name),
		}
		for _, o := range r.overrides {
			if okw := o.regex.FindString(all); okw != "" {
				s.Domain = o.Domain
				if o.RecordType != "" {
					s.RecordType = o.RecordType
				}
				s.Reason = fmt.Sprintf("%s, %q points to %s", s.Reason, okw, o.Domain)
				break
			}
		}
		return s, true
	}
	return Suggestion{}, false
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
