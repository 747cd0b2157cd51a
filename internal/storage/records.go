package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

const recordColumns = `id, owner_id, domain, record_type, title, provider, amount, frequency, fields,
	import_source, import_session_id, suggested_domain, suggestion_confidence,
	renewal_end_date, renewal_active, urgency_level, regulatory_type, reminder_days,
	next_reminder_due, last_processed_date, created_at, updated_at`

// recordRow flattens a DomainRecord into column values.
type recordRow struct {
	importSource, importSessionID, suggestedDomain sql.NullString
	suggestionConfidence                           sql.NullFloat64
	endDate, nextReminder, lastProcessed           sql.NullTime
	active                                         bool
	urgency, regulatory, reminderDays, fields      sql.NullString
}

func toRecordRow(r *model.DomainRecord) (recordRow, error) {
	var row recordRow
	if len(r.Fields) > 0 {
		data, err := json.Marshal(r.Fields)
		if err != nil {
			return row, fmt.Errorf("failed to encode fields: %w", err)
		}
		row.fields = nullString(string(data))
	}
	if m := r.ImportMetadata; m != nil {
		row.importSource = nullString(m.Source)
		row.importSessionID = nullString(m.ImportSessionID)
		row.suggestedDomain = nullString(string(m.DomainSuggestion.SuggestedDomain))
		row.suggestionConfidence = sql.NullFloat64{Float64: m.DomainSuggestion.Confidence, Valid: true}
	}
	if info := r.RenewalInfo; info != nil {
		days, err := json.Marshal(info.ReminderDays)
		if err != nil {
			return row, fmt.Errorf("failed to encode reminder days: %w", err)
		}
		row.endDate = sql.NullTime{Time: info.EndDate.UTC(), Valid: !info.EndDate.IsZero()}
		row.active = info.IsActive
		row.urgency = nullString(string(info.UrgencyLevel))
		row.regulatory = nullString(info.RegulatoryType)
		row.reminderDays = nullString(string(days))
		if info.NextReminderDue != nil {
			row.nextReminder = sql.NullTime{Time: info.NextReminderDue.UTC(), Valid: true}
		}
		if info.LastProcessedDate != nil {
			row.lastProcessed = sql.NullTime{Time: info.LastProcessedDate.UTC(), Valid: true}
		}
	}
	return row, nil
}

// CreateRecord inserts a domain record.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, record *model.DomainRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	row, err := toRecordRow(record)
	if err != nil {
		return err
	}

	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO domain_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.OwnerID, record.Domain, record.RecordType, record.Title,
		nullString(record.Provider), record.Amount.String(), nullString(string(record.Frequency)), row.fields,
		row.importSource, row.importSessionID, row.suggestedDomain, row.suggestionConfidence,
		row.endDate, row.active, row.urgency, row.regulatory, row.reminderDays,
		row.nextReminder, row.lastProcessed, record.CreatedAt, record.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("record %s: %w", record.ID, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func scanRecord(scanner rowScanner) (*model.DomainRecord, error) {
	var (
		record              model.DomainRecord
		row                 recordRow
		provider, frequency sql.NullString
	)
	err := scanner.Scan(
		&record.ID, &record.OwnerID, &record.Domain, &record.RecordType, &record.Title,
		&provider, &record.Amount, &frequency, &row.fields,
		&row.importSource, &row.importSessionID, &row.suggestedDomain, &row.suggestionConfidence,
		&row.endDate, &row.active, &row.urgency, &row.regulatory, &row.reminderDays,
		&row.nextReminder, &row.lastProcessed, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Provider = provider.String
	record.Frequency = model.Frequency(frequency.String)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	if row.fields.Valid {
		if err := json.Unmarshal([]byte(row.fields.String), &record.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}
	if row.importSource.Valid {
		record.ImportMetadata = &model.ImportMetadata{
			Source:          row.importSource.String,
			ImportSessionID: row.importSessionID.String,
			DomainSuggestion: model.DomainSuggestion{
				SuggestedDomain: model.Domain(row.suggestedDomain.String),
				Confidence:      row.suggestionConfidence.Float64,
			},
		}
	}
	if row.endDate.Valid {
		info := &model.RenewalInfo{
			EndDate:           row.endDate.Time.UTC(),
			IsActive:          row.active,
			UrgencyLevel:      model.Urgency(row.urgency.String),
			RegulatoryType:    row.regulatory.String,
			NextReminderDue:   timePtr(row.nextReminder),
			LastProcessedDate: timePtr(row.lastProcessed),
		}
		if row.reminderDays.Valid {
			if err := json.Unmarshal([]byte(row.reminderDays.String), &info.ReminderDays); err != nil {
				return nil, fmt.Errorf("failed to decode reminder days: %w", err)
			}
		}
		record.RenewalInfo = info
	}
	return &record, nil
}

// GetRecord returns a record by id.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*model.DomainRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	record, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM domain_records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// UpdateRecord replaces every field of an existing record.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, record *model.DomainRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	row, err := toRecordRow(record)
	if err != nil {
		return err
	}
	record.UpdatedAt = s.now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE domain_records SET
			owner_id = ?, domain = ?, record_type = ?, title = ?, provider = ?, amount = ?,
			frequency = ?, fields = ?, import_source = ?, import_session_id = ?,
			suggested_domain = ?, suggestion_confidence = ?, renewal_end_date = ?,
			renewal_active = ?, urgency_level = ?, regulatory_type = ?, reminder_days = ?,
			next_reminder_due = ?, last_processed_date = ?, updated_at = ?
		WHERE id = ?
	`,
		record.OwnerID, record.Domain, record.RecordType, record.Title, nullString(record.Provider),
		record.Amount.String(), nullString(string(record.Frequency)), row.fields,
		row.importSource, row.importSessionID, row.suggestedDomain, row.suggestionConfidence,
		row.endDate, row.active, row.urgency, row.regulatory, row.reminderDays,
		row.nextReminder, row.lastProcessed, record.UpdatedAt, record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("record %s: %w", record.ID, common.ErrNotFound)
	}
	return nil
}

// ListRecords returns records matching the filter ordered by creation.
func (s *SQLiteStorage) ListRecords(ctx context.Context, filter service.RecordFilter) ([]model.DomainRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Domain != "" {
		where = append(where, "domain = ?")
		args = append(args, filter.Domain)
	}
	if filter.Provider != "" {
		where = append(where, "LOWER(provider) = LOWER(?)")
		args = append(args, filter.Provider)
	}
	if filter.ActiveRenewal {
		where = append(where, "renewal_active = 1 AND renewal_end_date IS NOT NULL")
	}
	query := `SELECT ` + recordColumns + ` FROM domain_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DomainRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// CountReferencing counts records created from an import session.
func (s *SQLiteStorage) CountReferencing(ctx context.Context, sessionID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM domain_records WHERE import_session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// UpdateRenewalSchedule writes only the scheduling fields of a record's renewal info.
func (s *SQLiteStorage) UpdateRenewalSchedule(ctx context.Context, id string, info model.RenewalInfo) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	days, err := json.Marshal(info.ReminderDays)
	if err != nil {
		return fmt.Errorf("failed to encode reminder days: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE domain_records
		SET reminder_days = ?, next_reminder_due = ?, last_processed_date = ?, updated_at = ?
		WHERE id = ? AND renewal_end_date IS NOT NULL
	`, string(days), info.NextReminderDue, info.LastProcessedDate, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update renewal schedule: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("renewal for record %s: %w", id, common.ErrNotFound)
	}
	return nil
}
