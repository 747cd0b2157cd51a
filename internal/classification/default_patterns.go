package classification

import "github.com/Veraticus/the-paperwork-must-flow/internal/model"

var (
	vehicleKeywords = []string{"car", "cars", "van", "motor", "vehicle", "auto", "fuel", "petrol", "diesel", "garage"}
	homeKeywords    = []string{"home", "house", "buildings", "contents", "landlord", "property"}
	healthKeywords  = []string{"health", "medical", "dental", "dentist", "life"}
)

// DefaultRules returns the built-in domain keyword table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "Council Tax",
			Domain:     model.DomainProperty,
			RecordType: "council_tax",
			Keywords:   []string{"council tax", "council"},
			Priority:   100,
			Confidence: 0.9,
		},
		{
			Name:       "Mortgage",
			Domain:     model.DomainProperty,
			RecordType: "mortgage",
			Keywords:   []string{"mortgage", "mtg"},
			Priority:   95,
			Confidence: 0.9,
		},
		{
			Name:       "Rent",
			Domain:     model.DomainProperty,
			RecordType: "tenancy",
			Keywords:   []string{"rent", "tenancy", "lettings", "letting agent"},
			Priority:   95,
			Confidence: 0.85,
		},
		{
			Name:       "Utilities",
			Domain:     model.DomainProperty,
			RecordType: "utility_bill",
			Keywords:   []string{"utilities", "utility", "gas", "electric", "electricity", "energy", "water", "sewerage"},
			Overrides: []Override{
				{Domain: model.DomainVehicle, RecordType: "fuel", Keywords: vehicleKeywords},
			},
			Priority:   90,
			Confidence: 0.85,
		},
		{
			Name:       "Insurance",
			Domain:     model.DomainFinance,
			RecordType: "insurance_policy",
			Keywords:   []string{"insurance", "assurance", "insurer"},
			Overrides: []Override{
				{Domain: model.DomainVehicle, RecordType: "vehicle_insurance", Keywords: vehicleKeywords},
				{Domain: model.DomainProperty, RecordType: "home_insurance", Keywords: homeKeywords},
				{Domain: model.DomainHealth, RecordType: "health_insurance", Keywords: healthKeywords},
			},
			Priority:   85,
			Confidence: 0.8,
		},
		{
			Name:       "Vehicle",
			Domain:     model.DomainVehicle,
			RecordType: "vehicle_tax",
			Keywords:   []string{"vehicle", "dvla", "vehicle tax", "car tax", "mot", "breakdown", "parking"},
			Priority:   80,
			Confidence: 0.85,
		},
		{
			Name:       "Loans and Credit",
			Domain:     model.DomainFinance,
			RecordType: "loan",
			Keywords:   []string{"loan", "loans", "credit card", "finance", "hire purchase", "pcp"},
			Overrides: []Override{
				{Domain: model.DomainVehicle, RecordType: "vehicle_finance", Keywords: vehicleKeywords},
				{Domain: model.DomainProperty, RecordType: "mortgage", Keywords: homeKeywords},
			},
			Priority:   75,
			Confidence: 0.8,
		},
		{
			Name:       "Savings and Investments",
			Domain:     model.DomainFinance,
			RecordType: "savings_account",
			Keywords:   []string{"savings", "isa", "investment", "investments"},
			Priority:   70,
			Confidence: 0.7,
		},
		{
			Name:       "Government",
			Domain:     model.DomainGovernment,
			RecordType: "tax_payment",
			Keywords:   []string{"tax", "hmrc", "self assessment", "tv licence", "tv licensing", "passport", "gov uk"},
			Priority:   65,
			Confidence: 0.85,
		},
		{
			Name:       "Employment",
			Domain:     model.DomainEmployment,
			RecordType: "employment_benefit",
			Keywords:   []string{"pension", "salary", "payroll", "professional membership"},
			Priority:   60,
			Confidence: 0.75,
		},
		{
			Name:       "Health",
			Domain:     model.DomainHealth,
			RecordType: "health_plan",
			Keywords:   []string{"health", "dentist", "dental", "optician", "pharmacy", "prescription", "bupa", "vitality"},
			Priority:   55,
			Confidence: 0.8,
		},
		{
			Name:       "Legal",
			Domain:     model.DomainLegal,
			RecordType: "legal_service",
			Keywords:   []string{"legal", "solicitor", "solicitors", "conveyancing", "power of attorney"},
			Priority:   50,
			Confidence: 0.8,
		},
		{
			Name:       "Services",
			Domain:     model.DomainServices,
			RecordType: "contract",
			Keywords: []string{
				"telecoms", "broadband", "mobile", "phone", "subscription", "streaming",
				"gym", "membership", "netflix", "spotify", "sky", "virgin media",
			},
			Priority:   40,
			Confidence: 0.75,
		},
	}
}
