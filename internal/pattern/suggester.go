package pattern

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// categoryRecordTypes gives the record type for rules that do not name one.
var categoryRecordTypes = map[string]string{
	"utilities":    "utility_bill",
	"council_tax":  "council_tax",
	"mortgage":     "mortgage",
	"rent":         "tenancy",
	"insurance":    "insurance_policy",
	"vehicle":      "vehicle_tax",
	"loan":         "loan",
	"telecoms":     "contract",
	"subscription": "subscription",
	"tv_licence":   "tv_licence",
	"gym":          "membership",
	"pension":      "pension",
	"tax":          "tax_payment",
	"health":       "health_plan",
	"legal":        "legal_service",
}

// GenericRecordType is used for uncategorized recurring payments.
const GenericRecordType = "recurring_payment"

// RecordTypeFor returns the record type a rule implies.
func RecordTypeFor(rule model.CategoryRule) string {
	if rule.RecordType != "" {
		return rule.RecordType
	}
	if t, ok := categoryRecordTypes[strings.ToLower(rule.Category)]; ok {
		return t
	}
	return GenericRecordType
}

// SuggestEntry builds the record a suggestion would create. Matched rules give a
// provider-specific title; unmatched payees get a generic one.
func SuggestEntry(s model.RecurringPaymentSuggestion, match RuleMatch) model.SuggestedEntry {
	provider := s.Provider
	if provider == "" {
		provider = DisplayName(strings.ToLower(s.Payee))
	}

	if !match.Matched() {
		return model.SuggestedEntry{
			Title:    fmt.Sprintf("Recurring payment to %s", provider),
			Provider: provider,
			Type:     GenericRecordType,
		}
	}

	return model.SuggestedEntry{
		Title:    fmt.Sprintf("%s (%s)", provider, match.Rule.Name),
		Provider: provider,
		Type:     RecordTypeFor(*match.Rule),
	}
}

// Reason explains a suggestion in one line for CLI and API output.
func Reason(s model.RecurringPaymentSuggestion) string {
	if s.Category == model.UncategorizedCategory {
		return fmt.Sprintf("%d %s payments to %s, no rule matched", s.Occurrences, s.Frequency, s.Payee)
	}
	return fmt.Sprintf("%d %s payments to %s matched %s", s.Occurrences, s.Frequency, s.Payee, s.Category)
}
