// Package notify delivers renewal reminders.
package notify

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// Notifier sends a reminder to the record owner.
type Notifier interface {
	Notify(ctx context.Context, reminder model.Reminder) error
}

// LogNotifier writes reminders to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs through logger, or the default logger when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the reminder.
func (n *LogNotifier) Notify(ctx context.Context, r model.Reminder) error {
	level := slog.LevelInfo
	if r.Urgency == model.UrgencyCritical {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "Renewal reminder",
		"record_id", r.RecordID,
		"owner_id", r.OwnerID,
		"title", r.Title,
		"end_date", r.EndDate.Format("2006-01-02"),
		"days_until", r.DaysUntil,
		"urgency", r.Urgency)
	return nil
}
