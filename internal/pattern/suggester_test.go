package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/textmatch"
)

func TestRecordTypeFor(t *testing.T) {
	tests := []struct {
		name string
		rule model.CategoryRule
		want string
	}{
		{"explicit record type wins", model.CategoryRule{Category: "insurance", RecordType: "car_insurance"}, "car_insurance"},
		{"category default", model.CategoryRule{Category: "Insurance"}, "insurance_policy"},
		{"unknown category", model.CategoryRule{Category: "hobbies"}, GenericRecordType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecordTypeFor(tt.rule))
		})
	}
}

func TestSuggestEntry(t *testing.T) {
	t.Run("matched rule", func(t *testing.T) {
		rule := &model.CategoryRule{Name: "Streaming", Category: "subscription"}
		s := model.RecurringPaymentSuggestion{Payee: "netflix com", Provider: "Netflix"}

		entry := SuggestEntry(s, RuleMatch{Rule: rule, Kind: textmatch.MatchExact, Score: 1})

		assert.Equal(t, "Netflix (Streaming)", entry.Title)
		assert.Equal(t, "Netflix", entry.Provider)
		assert.Equal(t, "subscription", entry.Type)
	})

	t.Run("no rule uses payee display name", func(t *testing.T) {
		s := model.RecurringPaymentSuggestion{Payee: "ACME WIDGETS"}

		entry := SuggestEntry(s, RuleMatch{})

		assert.Equal(t, "Recurring payment to Acme Widgets", entry.Title)
		assert.Equal(t, "Acme Widgets", entry.Provider)
		assert.Equal(t, GenericRecordType, entry.Type)
	})
}

func TestReason(t *testing.T) {
	matched := model.RecurringPaymentSuggestion{
		Payee: "netflix", Category: "subscription", Frequency: model.FrequencyMonthly, Occurrences: 3,
	}
	assert.Equal(t, "3 monthly payments to netflix matched subscription", Reason(matched))

	unmatched := model.RecurringPaymentSuggestion{
		Payee: "acme", Category: model.UncategorizedCategory, Frequency: model.FrequencyWeekly, Occurrences: 4,
	}
	assert.Equal(t, "4 weekly payments to acme, no rule matched", Reason(unmatched))
}
