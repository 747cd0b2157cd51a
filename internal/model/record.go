package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Domain is a life-management area a record belongs to.
type Domain string

// The eight life domains.
const (
	DomainProperty   Domain = "property"
	DomainVehicle    Domain = "vehicle"
	DomainFinance    Domain = "finance"
	DomainEmployment Domain = "employment"
	DomainGovernment Domain = "government"
	DomainServices   Domain = "services"
	DomainLegal      Domain = "legal"
	DomainHealth     Domain = "health"
)

// AllDomains lists every domain in display order.
func AllDomains() []Domain {
	return []Domain{
		DomainProperty, DomainVehicle, DomainFinance, DomainEmployment,
		DomainGovernment, DomainServices, DomainLegal, DomainHealth,
	}
}

// IsValid reports whether d is one of the eight domains.
func (d Domain) IsValid() bool {
	for _, known := range AllDomains() {
		if d == known {
			return true
		}
	}
	return false
}

// ImportSourceBank marks records created from a bank statement import.
const ImportSourceBank = "bank_import"

// DomainRecord is a persisted record in one of the life domains.
type DomainRecord struct {
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ImportMetadata *ImportMetadata   `json:"import_metadata,omitempty"`
	RenewalInfo    *RenewalInfo      `json:"renewal_info,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	ID             string            `json:"id"`
	OwnerID        string            `json:"owner_id"`
	Domain         Domain            `json:"domain"`
	RecordType     string            `json:"record_type"`
	Title          string            `json:"title"`
	Provider       string            `json:"provider,omitempty"`
	Frequency      Frequency         `json:"frequency,omitempty"`
}

// ImportMetadata records the provenance of an imported record.
type ImportMetadata struct {
	Source           string           `json:"source"`
	ImportSessionID  string           `json:"import_session_id"`
	DomainSuggestion DomainSuggestion `json:"domain_suggestion"`
}

// DomainSuggestion is the domain proposed at import time.
type DomainSuggestion struct {
	SuggestedDomain Domain  `json:"suggested_domain"`
	Confidence      float64 `json:"confidence"`
}

// Urgency ranks how soon a renewal needs attention.
type Urgency string

// Urgency levels, most pressing first.
const (
	UrgencyCritical  Urgency = "critical"
	UrgencyImportant Urgency = "important"
	UrgencyStrategic Urgency = "strategic"
)

// IsValid reports whether u is a known urgency.
func (u Urgency) IsValid() bool {
	return u == UrgencyCritical || u == UrgencyImportant || u == UrgencyStrategic
}

// OverdueSeverity ranks how far past its end date a record is.
type OverdueSeverity string

// Overdue severities.
const (
	SeverityCritical OverdueSeverity = "critical"
	SeverityHigh     OverdueSeverity = "high"
	SeverityMedium   OverdueSeverity = "medium"
)

// RenewalInfo carries the renewal schedule of a record.
type RenewalInfo struct {
	EndDate           time.Time  `json:"end_date"`
	NextReminderDue   *time.Time `json:"next_reminder_due,omitempty"`
	LastProcessedDate *time.Time `json:"last_processed_date,omitempty"`
	UrgencyLevel      Urgency    `json:"urgency_level"`
	RegulatoryType    string     `json:"regulatory_type,omitempty"`
	ReminderDays      []int      `json:"reminder_days"`
	IsActive          bool       `json:"is_active"`
}

// DefaultReminderDays are the days-before-expiry reminders fire on.
func DefaultReminderDays() []int {
	return []int{30, 14, 7, 1}
}
