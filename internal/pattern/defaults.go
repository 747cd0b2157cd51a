package pattern

import (
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// DefaultRuleSetName names the built-in rule set.
const DefaultRuleSetName = "UK household defaults"

// DefaultRuleSet returns the built-in detection rules. Specific rules precede
// generic ones because earlier rules win ties.
func DefaultRuleSet() model.DetectionRuleSet {
	return model.DetectionRuleSet{
		Name:      DefaultRuleSetName,
		IsDefault: true,
		Version:   1,
		Settings:  model.DefaultSettings(),
		CategoryRules: []model.CategoryRule{
			{
				Name:     "Energy",
				Category: "utilities",
				Patterns: []string{"british gas", "edf energy", "eon", "e on", "octopus energy", "ovo", "scottish power", "sse", "gas", "electric", "electricity", "energy"},
			},
			{
				Name:     "Water",
				Category: "utilities",
				Patterns: []string{"thames water", "severn trent", "anglian water", "united utilities", "yorkshire water", "water"},
			},
			{
				Name:     "Council Tax",
				Category: "council_tax",
				Patterns: []string{"council tax", "borough council", "city council", "council"},
			},
			{
				Name:     "Mortgage",
				Category: "mortgage",
				Patterns: []string{"mortgage", "mtg"},
			},
			{
				Name:     "Rent",
				Category: "rent",
				Patterns: []string{"rent", "lettings", "letting agent", "landlord"},
			},
			{
				Name:       "Home Insurance",
				Category:   "insurance",
				RecordType: "home_insurance",
				Patterns:   []string{"home insurance", "buildings insurance", "contents insurance"},
			},
			{
				Name:       "Car Insurance",
				Category:   "insurance",
				RecordType: "vehicle_insurance",
				Patterns:   []string{"car insurance", "motor insurance", "admiral", "aviva motor", "churchill motor"},
			},
			{
				Name:     "Insurance",
				Category: "insurance",
				Patterns: []string{"insurance", "aviva", "axa", "legal and general", "direct line"},
			},
			{
				Name:     "Vehicle Tax",
				Category: "vehicle",
				Provider: "DVLA",
				Patterns: []string{"dvla", "vehicle tax", "car tax"},
			},
			{
				Name:       "Car Finance",
				Category:   "loan",
				RecordType: "vehicle_finance",
				Patterns:   []string{"car finance", "motor finance", "black horse", "vw finance", "pcp"},
			},
			{
				Name:     "Loan or Credit",
				Category: "loan",
				Patterns: []string{"loan", "credit card", "barclaycard", "american express", "amex", "finance"},
			},
			{
				Name:     "Broadband and Phone",
				Category: "telecoms",
				Patterns: []string{"virgin media", "bt group", "bt", "sky digital", "sky", "talktalk", "vodafone", "ee limited", "o2", "three", "plusnet", "broadband", "mobile"},
			},
			{
				Name:     "TV Licence",
				Category: "tv_licence",
				Provider: "TV Licensing",
				Patterns: []string{"tv licence", "tv licensing", "tvl"},
			},
			{
				Name:     "Streaming",
				Category: "subscription",
				Patterns: []string{"netflix", "spotify", "disney plus", "amazon prime", "apple com bill", "now tv", "youtube premium", "audible"},
			},
			{
				Name:     "Gym",
				Category: "gym",
				Patterns: []string{"puregym", "the gym group", "david lloyd", "nuffield health", "gym", "fitness"},
			},
			{
				Name:     "Pension",
				Category: "pension",
				Patterns: []string{"pension", "nest"},
			},
			{
				Name:     "Tax",
				Category: "tax",
				Provider: "HMRC",
				Patterns: []string{"hmrc", "self assessment"},
			},
			{
				Name:     "Health",
				Category: "health",
				Patterns: []string{"dentist", "dental", "bupa", "vitality", "optician", "pharmacy"},
			},
			{
				Name:     "Legal",
				Category: "legal",
				Patterns: []string{"solicitor", "solicitors", "legal services"},
			},
		},
	}
}
