// Package renewal tracks renewal and expiry dates across domain records and
// computes urgency-ranked reminders.
package renewal

import (
	"time"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// DaysUntil returns the whole calendar days from now to end in UTC. It is
// negative once end has passed.
func DaysUntil(end, now time.Time) int {
	return int(startOfDay(end).Sub(startOfDay(now)).Hours() / 24)
}

// ClassifyUrgency ranks a renewal by how close its end date is. Records far from
// expiry keep their stored urgency.
func ClassifyUrgency(daysUntil int, stored model.Urgency) model.Urgency {
	if !stored.IsValid() {
		stored = model.UrgencyImportant
	}
	switch {
	case daysUntil <= 3:
		return model.UrgencyCritical
	case daysUntil <= 7 && stored == model.UrgencyCritical:
		return model.UrgencyCritical
	case daysUntil <= 14 && stored != model.UrgencyStrategic:
		return model.UrgencyImportant
	default:
		return stored
	}
}

// ClassifySeverity buckets an overdue record by how many days it is overdue.
func ClassifySeverity(daysOverdue int) model.OverdueSeverity {
	switch {
	case daysOverdue > 30:
		return model.SeverityCritical
	case daysOverdue > 7:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
