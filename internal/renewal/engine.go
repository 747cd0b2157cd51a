package renewal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/notify"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

// Limits on user-supplied scheduling values.
const (
	MaxSnoozeDays     = 365
	MaxTimelineMonths = 24
	MaxLookaheadDays  = 366
)

// Store is the record access the engine needs.
type Store interface {
	GetRecord(ctx context.Context, id string) (*model.DomainRecord, error)
	ListRecords(ctx context.Context, filter service.RecordFilter) ([]model.DomainRecord, error)
	UpdateRenewalSchedule(ctx context.Context, id string, info model.RenewalInfo) error
}

// Config holds configuration options for the renewal engine.
type Config struct {
	// DedupeWindow is how long a sent reminder suppresses repeats for the same record.
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{DedupeWindow: 24 * time.Hour}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for all date arithmetic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine computes renewal reminders and applies snooze and schedule changes.
type Engine struct {
	store    Store
	notifier notify.Notifier
	sent     *cache.Cache
	now      func() time.Time
}

// SweepResult summarizes one reminder sweep.
type SweepResult struct {
	Reminders      []model.Reminder `json:"reminders"`
	ProcessedCount int              `json:"processed_count"`
	RemindersSent  int              `json:"reminders_sent"`
	Failed         int              `json:"failed"`
}

// TimelineBucket aggregates the renewals ending in one calendar month.
type TimelineBucket struct {
	Start   time.Time             `json:"start"`
	Counts  map[model.Urgency]int `json:"counts"`
	Month   string                `json:"month"`
	Entries []model.Reminder      `json:"entries"`
	Total   int                   `json:"total"`
}

// New creates a renewal engine with the default configuration.
func New(store Store, notifier notify.Notifier, opts ...Option) *Engine {
	return NewWithConfig(store, notifier, DefaultConfig(), opts...)
}

// NewWithConfig creates a renewal engine with custom configuration.
func NewWithConfig(store Store, notifier notify.Notifier, cfg Config, opts ...Option) *Engine {
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = DefaultConfig().DedupeWindow
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	e := &Engine{
		store:    store,
		notifier: notifier,
		sent:     cache.New(cfg.DedupeWindow, 2*cfg.DedupeWindow),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep scans every active renewal and sends the reminders that are due. It
// reads records only; a reminder already sent for a record today is not repeated.
func (e *Engine) Sweep(ctx context.Context) (*SweepResult, error) {
	records, err := e.store.ListRecords(ctx, service.RecordFilter{ActiveRenewal: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list renewals: %w", err)
	}

	now := e.now().UTC()
	today := now.Format("2006-01-02")
	result := &SweepResult{Reminders: []model.Reminder{}}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec := &records[i]
		result.ProcessedCount++

		reminder := buildReminder(rec, now)
		if !reminderDue(rec.RenewalInfo, reminder.DaysUntil, now) {
			continue
		}

		key := rec.ID + ":" + today
		if _, found := e.sent.Get(key); found {
			continue
		}
		if err := e.notifier.Notify(ctx, reminder); err != nil {
			result.Failed++
			slog.Warn("Failed to send renewal reminder", "record_id", rec.ID, "error", err)
			continue
		}
		e.sent.SetDefault(key, struct{}{})
		result.RemindersSent++
		result.Reminders = append(result.Reminders, reminder)
	}

	slog.Info("Renewal sweep finished",
		"processed", result.ProcessedCount,
		"sent", result.RemindersSent,
		"failed", result.Failed)
	return result, nil
}

// Upcoming returns the principal's renewals ending within daysAhead days, soonest first.
func (e *Engine) Upcoming(ctx context.Context, principal model.Principal, daysAhead int) ([]model.Reminder, error) {
	if daysAhead < 0 || daysAhead > MaxLookaheadDays {
		return nil, common.ValidationError("days ahead must be between 0 and %d", MaxLookaheadDays)
	}
	reminders, err := e.owned(ctx, principal)
	if err != nil {
		return nil, err
	}

	upcoming := []model.Reminder{}
	for _, r := range reminders {
		if r.DaysUntil >= 0 && r.DaysUntil <= daysAhead {
			upcoming = append(upcoming, r)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DaysUntil < upcoming[j].DaysUntil
	})
	return upcoming, nil
}

// Overdue returns the principal's expired renewals, most overdue first.
func (e *Engine) Overdue(ctx context.Context, principal model.Principal) ([]model.Reminder, error) {
	reminders, err := e.owned(ctx, principal)
	if err != nil {
		return nil, err
	}

	overdue := []model.Reminder{}
	for _, r := range reminders {
		if r.Overdue() {
			r.Severity = ClassifySeverity(-r.DaysUntil)
			overdue = append(overdue, r)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].DaysUntil < overdue[j].DaysUntil
	})
	return overdue, nil
}

// Snooze postpones the next reminder for a record by days. The end date is unchanged.
func (e *Engine) Snooze(ctx context.Context, principal model.Principal, recordID string, days int) (*model.DomainRecord, error) {
	if days < 1 || days > MaxSnoozeDays {
		return nil, common.ValidationError("snooze days must be between 1 and %d", MaxSnoozeDays)
	}
	rec, err := e.ownedRecord(ctx, principal, recordID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	due := now.AddDate(0, 0, days)
	info := *rec.RenewalInfo
	info.NextReminderDue = &due
	info.LastProcessedDate = &now
	if err := e.store.UpdateRenewalSchedule(ctx, recordID, info); err != nil {
		return nil, fmt.Errorf("failed to snooze record %s: %w", recordID, err)
	}

	rec.RenewalInfo = &info
	slog.Info("Snoozed renewal reminder", "record_id", recordID, "days", days, "next_reminder_due", due)
	return rec, nil
}

// Reschedule replaces the reminder offsets of a record and clears any snooze.
func (e *Engine) Reschedule(ctx context.Context, principal model.Principal, recordID string, reminderDays []int) (*model.DomainRecord, error) {
	if len(reminderDays) == 0 {
		return nil, common.ValidationError("at least one reminder day is required")
	}
	days := slices.Clone(reminderDays)
	for _, d := range days {
		if d < 1 || d > MaxLookaheadDays {
			return nil, common.ValidationError("reminder day %d out of range", d)
		}
	}
	slices.Sort(days)
	slices.Reverse(days)
	days = slices.Compact(days)

	rec, err := e.ownedRecord(ctx, principal, recordID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	info := *rec.RenewalInfo
	info.ReminderDays = days
	info.NextReminderDue = nil
	info.LastProcessedDate = &now
	if err := e.store.UpdateRenewalSchedule(ctx, recordID, info); err != nil {
		return nil, fmt.Errorf("failed to reschedule record %s: %w", recordID, err)
	}

	rec.RenewalInfo = &info
	return rec, nil
}

// Timeline groups the principal's renewals by the calendar month of their end
// date, starting with the current month. Every month is present even when empty.
func (e *Engine) Timeline(ctx context.Context, principal model.Principal, months int) ([]TimelineBucket, error) {
	if months < 1 || months > MaxTimelineMonths {
		return nil, common.ValidationError("months must be between 1 and %d", MaxTimelineMonths)
	}
	reminders, err := e.owned(ctx, principal)
	if err != nil {
		return nil, err
	}

	first := startOfMonth(e.now())
	buckets := make([]TimelineBucket, months)
	for i := range buckets {
		start := first.AddDate(0, i, 0)
		buckets[i] = TimelineBucket{
			Start: start,
			Month: start.Format("2006-01"),
			Counts: map[model.Urgency]int{
				model.UrgencyCritical:  0,
				model.UrgencyImportant: 0,
				model.UrgencyStrategic: 0,
			},
			Entries: []model.Reminder{},
		}
	}

	for _, r := range reminders {
		end := r.EndDate.UTC()
		i := (end.Year()-first.Year())*12 + int(end.Month()) - int(first.Month())
		if i < 0 || i >= months {
			continue
		}
		buckets[i].Entries = append(buckets[i].Entries, r)
		buckets[i].Counts[r.Urgency]++
		buckets[i].Total++
	}
	for i := range buckets {
		sort.SliceStable(buckets[i].Entries, func(a, b int) bool {
			return buckets[i].Entries[a].EndDate.Before(buckets[i].Entries[b].EndDate)
		})
	}
	return buckets, nil
}

func (e *Engine) owned(ctx context.Context, principal model.Principal) ([]model.Reminder, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	records, err := e.store.ListRecords(ctx, service.RecordFilter{OwnerID: principal.ID, ActiveRenewal: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list renewals: %w", err)
	}
	now := e.now()
	reminders := make([]model.Reminder, 0, len(records))
	for i := range records {
		reminders = append(reminders, buildReminder(&records[i], now))
	}
	return reminders, nil
}

func (e *Engine) ownedRecord(ctx context.Context, principal model.Principal, recordID string) (*model.DomainRecord, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	rec, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != principal.ID {
		return nil, fmt.Errorf("record %s: %w", recordID, common.ErrForbidden)
	}
	if rec.RenewalInfo == nil {
		return nil, common.ValidationError("record %s has no renewal date", recordID)
	}
	return rec, nil
}

func buildReminder(rec *model.DomainRecord, now time.Time) model.Reminder {
	info := rec.RenewalInfo
	days := DaysUntil(info.EndDate, now)
	return model.Reminder{
		RecordID:  rec.ID,
		OwnerID:   rec.OwnerID,
		Title:     rec.Title,
		Provider:  rec.Provider,
		Domain:    rec.Domain,
		EndDate:   info.EndDate,
		DaysUntil: days,
		Urgency:   ClassifyUrgency(days, info.UrgencyLevel),
	}
}

// reminderDue reports whether a reminder should go out today. A snooze
// suppresses reminders until its due day, after which the regular offsets apply.
func reminderDue(info *model.RenewalInfo, daysUntil int, now time.Time) bool {
	if info.NextReminderDue != nil {
		switch untilDue := DaysUntil(*info.NextReminderDue, now); {
		case untilDue > 0:
			return false
		case untilDue == 0:
			return true
		}
	}
	if daysUntil <= 0 {
		return true
	}
	return slices.Contains(info.ReminderDays, daysUntil)
}
