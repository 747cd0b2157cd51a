package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func TestEngine_Suggest(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		name           string
		input          Input
		wantDomain     model.Domain
		wantRecordType string
		wantConfidence float64
	}{
		{
			name:           "utilities go to property",
			input:          Input{Category: "utilities", Payee: "BRITISH GAS"},
			wantDomain:     model.DomainProperty,
			wantRecordType: "utility_bill",
			wantConfidence: 0.85,
		},
		{
			name:           "council tax",
			input:          Input{Category: "council_tax", Payee: "LEEDS CITY COUNCIL"},
			wantDomain:     model.DomainProperty,
			wantRecordType: "council_tax",
			wantConfidence: 0.9,
		},
		{
			name:           "plain insurance stays in finance",
			input:          Input{Category: "insurance", Payee: "AVIVA"},
			wantDomain:     model.DomainFinance,
			wantRecordType: "insurance_policy",
			wantConfidence: 0.8,
		},
		{
			name:           "car insurance moves to vehicle",
			input:          Input{Category: "insurance", Payee: "ADMIRAL", Description: "Admiral (Car Insurance)"},
			wantDomain:     model.DomainVehicle,
			wantRecordType: "vehicle_insurance",
			wantConfidence: 0.8,
		},
		{
			name:           "home insurance moves to property",
			input:          Input{Category: "insurance", Payee: "DIRECT LINE HOME"},
			wantDomain:     model.DomainProperty,
			wantRecordType: "home_insurance",
			wantConfidence: 0.8,
		},
		{
			name:           "car finance moves to vehicle",
			input:          Input{Category: "loan", Payee: "BLACK HORSE MOTOR FINANCE"},
			wantDomain:     model.DomainVehicle,
			wantRecordType: "vehicle_finance",
			wantConfidence: 0.8,
		},
		{
			name:           "payee keyword without category",
			input:          Input{Category: "uncategorized", Payee: "ACME DENTAL PRACTICE"},
			wantDomain:     model.DomainHealth,
			wantRecordType: "health_plan",
			wantConfidence: 0.6,
		},
		{
			name:           "category beats payee",
			input:          Input{Category: "subscription", Payee: "HEALTH MAGAZINE"},
			wantDomain:     model.DomainServices,
			wantRecordType: "contract",
			wantConfidence: 0.75,
		},
		{
			name:           "tv licence is government",
			input:          Input{Category: "tv_licence", Payee: "TV LICENSING"},
			wantDomain:     model.DomainGovernment,
			wantRecordType: "tax_payment",
			wantConfidence: 0.85,
		},
		{
			name:           "no match falls back to finance",
			input:          Input{Category: "uncategorized", Payee: "ACME WIDGETS"},
			wantDomain:     model.DomainFinance,
			wantRecordType: FallbackRecordType,
			wantConfidence: FallbackConfidence,
		},
		{
			name:           "empty input",
			input:          Input{},
			wantDomain:     model.DomainFinance,
			wantRecordType: FallbackRecordType,
			wantConfidence: FallbackConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Suggest(tt.input)
			assert.Equal(t, tt.wantDomain, got.Domain)
			assert.Equal(t, tt.wantRecordType, got.RecordType)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestEngine_WholeWordsOnly(t *testing.T) {
	engine := NewDefaultEngine()

	// "gas" inside "vegas" and "rent" inside "current" must not match.
	got := engine.Suggest(Input{Payee: "VEGAS CURRENT ACCOUNT"})
	assert.Equal(t, model.DomainFinance, got.Domain)
	assert.InDelta(t, FallbackConfidence, got.Confidence, 1e-9)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewDefaultEngine()
	in := Input{Category: "insurance", Payee: "LV CAR INSURANCE"}

	first := engine.Suggest(in)
	for range 20 {
		assert.Equal(t, first, engine.Suggest(in))
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr bool
	}{
		{
			name:  "valid",
			rules: []Rule{{Name: "Gym", Domain: model.DomainServices, Keywords: []string{"gym"}}},
		},
		{
			name:    "unknown domain",
			rules:   []Rule{{Name: "Bad", Domain: "space", Keywords: []string{"rocket"}}},
			wantErr: true,
		},
		{
			name:    "no keywords",
			rules:   []Rule{{Name: "Empty", Domain: model.DomainServices}},
			wantErr: true,
		},
		{
			name: "bad override domain",
			rules: []Rule{{
				Name: "Gym", Domain: model.DomainServices, Keywords: []string{"gym"},
				Overrides: []Override{{Domain: "moon", Keywords: []string{"lunar"}}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.rules)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewEngine_PriorityOrder(t *testing.T) {
	engine, err := NewEngine([]Rule{
		{Name: "Low", Domain: model.DomainServices, Keywords: []string{"plan"}, Priority: 1, Confidence: 0.5},
		{Name: "High", Domain: model.DomainHealth, Keywords: []string{"plan"}, Priority: 10, Confidence: 0.9},
	})
	require.NoError(t, err)

	got := engine.Suggest(Input{Category: "plan"})
	assert.Equal(t, model.DomainHealth, got.Domain)
}
