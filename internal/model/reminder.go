package model

import "time"

// Reminder is a renewal notice computed for one domain record.
type Reminder struct {
	EndDate   time.Time       `json:"end_date"`
	RecordID  string          `json:"record_id"`
	OwnerID   string          `json:"owner_id"`
	Title     string          `json:"title"`
	Provider  string          `json:"provider,omitempty"`
	Domain    Domain          `json:"domain"`
	Urgency   Urgency         `json:"urgency"`
	Severity  OverdueSeverity `json:"severity,omitempty"`
	DaysUntil int             `json:"days_until"`
}

// Overdue reports whether the end date has passed.
func (r Reminder) Overdue() bool {
	return r.DaysUntil < 0
}
