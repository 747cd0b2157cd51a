package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

const ruleSetColumns = `id, name, owner_id, is_default, version, category_rules,
	min_confidence_threshold, fuzzy_match_threshold, created_at, updated_at`

// CreateRuleSet inserts a rule set. A second default fails with common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateRuleSet(ctx context.Context, rs *model.DetectionRuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRuleSet(rs); err != nil {
		return err
	}
	rules, err := json.Marshal(rs.CategoryRules)
	if err != nil {
		return fmt.Errorf("failed to encode category rules: %w", err)
	}

	now := s.now()
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = now
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = now
	}
	if rs.Version == 0 {
		rs.Version = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_sets (`+ruleSetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rs.ID, rs.Name, nullString(rs.OwnerID), rs.IsDefault, rs.Version, string(rules),
		rs.Settings.MinConfidenceThreshold, rs.Settings.FuzzyMatchThreshold,
		rs.CreatedAt.UTC(), rs.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("rule set %s: %w", rs.Name, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to create rule set: %w", err)
	}
	return nil
}

// UpdateRuleSet stores rs if nobody else has updated it since it was read.
func (s *SQLiteStorage) UpdateRuleSet(ctx context.Context, rs *model.DetectionRuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRuleSet(rs); err != nil {
		return err
	}
	rules, err := json.Marshal(rs.CategoryRules)
	if err != nil {
		return fmt.Errorf("failed to encode category rules: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rule_sets SET
			name = ?, category_rules = ?, min_confidence_threshold = ?,
			fuzzy_match_threshold = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		rs.Name, string(rules), rs.Settings.MinConfidenceThreshold, rs.Settings.FuzzyMatchThreshold,
		rs.Version, rs.UpdatedAt.UTC(), rs.ID, rs.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule set: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 1 {
		return nil
	}

	if _, err := s.GetRuleSet(ctx, rs.ID); err != nil {
		return err
	}
	return fmt.Errorf("rule set %s changed since version %d: %w", rs.ID, rs.Version-1, common.ErrInvalidTransition)
}

func scanRuleSet(scanner rowScanner) (*model.DetectionRuleSet, error) {
	var (
		rs      model.DetectionRuleSet
		ownerID sql.NullString
		rules   string
	)
	err := scanner.Scan(
		&rs.ID, &rs.Name, &ownerID, &rs.IsDefault, &rs.Version, &rules,
		&rs.Settings.MinConfidenceThreshold, &rs.Settings.FuzzyMatchThreshold,
		&rs.CreatedAt, &rs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rules), &rs.CategoryRules); err != nil {
		return nil, fmt.Errorf("failed to decode category rules: %w", err)
	}
	rs.OwnerID = ownerID.String
	rs.CreatedAt = rs.CreatedAt.UTC()
	rs.UpdatedAt = rs.UpdatedAt.UTC()
	return &rs, nil
}

// GetRuleSet returns a rule set by id.
func (s *SQLiteStorage) GetRuleSet(ctx context.Context, id string) (*model.DetectionRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rs, err := scanRuleSet(s.db.QueryRowContext(ctx,
		`SELECT `+ruleSetColumns+` FROM rule_sets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule set %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule set: %w", err)
	}
	return rs, nil
}

// GetDefaultRuleSet returns the process-wide default rule set.
func (s *SQLiteStorage) GetDefaultRuleSet(ctx context.Context) (*model.DetectionRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rs, err := scanRuleSet(s.db.QueryRowContext(ctx,
		`SELECT `+ruleSetColumns+` FROM rule_sets WHERE is_default = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("default rule set: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default rule set: %w", err)
	}
	return rs, nil
}

// ListRuleSets returns the custom rule sets owned by ownerID.
func (s *SQLiteStorage) ListRuleSets(ctx context.Context, ownerID string) ([]model.DetectionRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleSetColumns+` FROM rule_sets WHERE owner_id = ? AND is_default = 0 ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sets []model.DetectionRuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule set: %w", err)
		}
		sets = append(sets, *rs)
	}
	return sets, rows.Err()
}

// DeleteRuleSet removes a rule set.
func (s *SQLiteStorage) DeleteRuleSet(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM rule_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule set: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("rule set %s: %w", id, common.ErrNotFound)
	}
	return nil
}
