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

const sessionColumns = `id, owner_id, filename, content_hash, rule_set_id, blob_key, status,
	processing_stage, bank_name, error_message, total_transactions, recurring_detected,
	created_at, updated_at, completed_at`

// CreateSession inserts a new import session.
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *model.ImportSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(session); err != nil {
		return err
	}

	now := s.now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.OwnerID, session.Filename, session.ContentHash,
		nullString(session.RuleSetID), nullString(session.BlobKey), session.Status,
		session.ProcessingStage, nullString(session.BankName), nullString(session.ErrorMessage),
		session.Statistics.TotalTransactions, session.Statistics.RecurringDetected,
		session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("session for content %s: %w", session.ContentHash, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.ImportSession, error) {
	var (
		session                                    model.ImportSession
		ruleSetID, blobKey, bankName, errorMessage sql.NullString
		completedAt                                sql.NullTime
	)
	err := row.Scan(
		&session.ID, &session.OwnerID, &session.Filename, &session.ContentHash,
		&ruleSetID, &blobKey, &session.Status, &session.ProcessingStage,
		&bankName, &errorMessage,
		&session.Statistics.TotalTransactions, &session.Statistics.RecurringDetected,
		&session.CreatedAt, &session.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	session.RuleSetID = ruleSetID.String
	session.BlobKey = blobKey.String
	session.BankName = bankName.String
	session.ErrorMessage = errorMessage.String
	session.CompletedAt = timePtr(completedAt)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}

// GetSession returns a session with its transactions and suggestions.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.ImportSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM import_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Transactions, err = s.sessionTransactions(ctx, id); err != nil {
		return nil, err
	}
	if session.RecurringPayments, err = s.sessionSuggestions(ctx, id); err != nil {
		return nil, err
	}
	return session, nil
}

// FindSessionByHash returns the owner's session for a statement's content hash.
func (s *SQLiteStorage) FindSessionByHash(ctx context.Context, ownerID, contentHash string) (*model.ImportSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM import_sessions WHERE owner_id = ? AND content_hash = ?`,
		ownerID, contentHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session with hash %s: %w", contentHash, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// ListSessions returns session summaries, newest first, without transactions or
// suggestions, along with the total matching the filter.
func (s *SQLiteStorage) ListSessions(ctx context.Context, filter service.SessionFilter) ([]model.ImportSession, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_sessions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + sessionColumns + ` FROM import_sessions` + clause +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.ImportSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, total, nil
}

// updateProcessing applies an update to a session that is still processing.
// Terminal sessions are never modified.
func (s *SQLiteStorage) updateProcessing(ctx context.Context, q queryable, id, set string, args ...any) error {
	query := `UPDATE import_sessions SET ` + set + `, updated_at = ? WHERE id = ? AND status = ?`
	args = append(args, s.now(), id, model.SessionProcessing)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status model.SessionStatus
	err = q.QueryRowContext(ctx, `SELECT status FROM import_sessions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check session status: %w", err)
	}
	return fmt.Errorf("session %s is %s: %w", id, status, common.ErrInvalidTransition)
}

// UpdateSessionStage records the pipeline stage about to run.
func (s *SQLiteStorage) UpdateSessionStage(ctx context.Context, id string, stage model.ProcessingStage) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateProcessing(ctx, s.db, id, "processing_stage = ?", stage)
}

// SetBankName records the identified bank.
func (s *SQLiteStorage) SetBankName(ctx context.Context, id, bankName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateProcessing(ctx, s.db, id, "bank_name = ?", bankName)
}

// SaveTransactions replaces the session's extracted transactions.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, id string, txns []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.updateProcessing(ctx, tx, id, "total_transactions = ?", len(txns)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_transactions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear transactions: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO session_transactions (session_id, idx, date, amount, description, original_text, record_created)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, txn := range txns {
			if _, err := stmt.ExecContext(ctx, id, i, txn.Date.UTC(), txn.Amount.String(),
				txn.Description, txn.OriginalText, txn.RecordCreated); err != nil {
				return fmt.Errorf("failed to insert transaction %d: %w", i, err)
			}
		}
		return nil
	})
}

// SaveSuggestions replaces the session's suggestions.
func (s *SQLiteStorage) SaveSuggestions(ctx context.Context, id string, suggestions []model.RecurringPaymentSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSuggestions(suggestions); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.updateProcessing(ctx, tx, id, "recurring_detected = ?", len(suggestions)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM import_suggestions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear suggestions: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO import_suggestions (
				session_id, idx, payee, category, provider, amount, frequency, confidence,
				low_confidence, occurrences, transaction_indexes, entry_title, entry_provider,
				entry_type, suggested_domain, domain_confidence, status, record_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, sg := range suggestions {
			indexes, err := json.Marshal(sg.TransactionIndexes)
			if err != nil {
				return fmt.Errorf("failed to encode transaction indexes: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				id, sg.Index, sg.Payee, sg.Category, nullString(sg.Provider), sg.Amount.String(),
				sg.Frequency, sg.Confidence, sg.LowConfidence, sg.Occurrences, string(indexes),
				sg.SuggestedEntry.Title, nullString(sg.SuggestedEntry.Provider), sg.SuggestedEntry.Type,
				nullString(string(sg.SuggestedDomain)), sg.DomainConfidence, sg.Status, nullString(sg.RecordID),
			); err != nil {
				return fmt.Errorf("failed to insert suggestion %d: %w", sg.Index, err)
			}
		}
		return nil
	})
}

// CompleteSession moves a processing session to completed.
func (s *SQLiteStorage) CompleteSession(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateProcessing(ctx, s.db, id, "status = ?, completed_at = ?", model.SessionCompleted, s.now())
}

// FailSession moves a processing session to failed. Partial results are kept.
func (s *SQLiteStorage) FailSession(ctx context.Context, id, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateProcessing(ctx, s.db, id, "status = ?, error_message = ?, completed_at = ?",
		model.SessionFailed, message, s.now())
}

// TransitionSuggestion is a compare-and-set on suggestion status.
func (s *SQLiteStorage) TransitionSuggestion(ctx context.Context, sessionID string, index int, from, to model.SuggestionStatus, recordID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE import_suggestions SET status = ?, record_id = ?
		WHERE session_id = ? AND idx = ? AND status = ?
	`, to, nullString(recordID), sessionID, index, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition suggestion: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check transition: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_suggestions WHERE session_id = ? AND idx = ?`,
		sessionID, index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check suggestion: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("suggestion %d of session %s: %w", index, sessionID, common.ErrInvalidIndex)
	}
	return false, nil
}

// MarkTransactionsRecorded flags transactions that back a created record.
func (s *SQLiteStorage) MarkTransactionsRecorded(ctx context.Context, sessionID string, indexes []int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(indexes) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, idx := range indexes {
			if _, err := tx.ExecContext(ctx,
				`UPDATE session_transactions SET record_created = 1 WHERE session_id = ? AND idx = ?`,
				sessionID, idx); err != nil {
				return fmt.Errorf("failed to mark transaction %d: %w", idx, err)
			}
		}
		return nil
	})
}

// DeleteSession removes a session with its transactions and suggestions.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_transactions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM import_suggestions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete suggestions: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM import_sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("session %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

func (s *SQLiteStorage) sessionTransactions(ctx context.Context, id string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, amount, description, original_text, record_created
		FROM session_transactions WHERE session_id = ? ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	txns := []model.Transaction{}
	for rows.Next() {
		var (
			txn      model.Transaction
			original sql.NullString
		)
		if err := rows.Scan(&txn.Date, &txn.Amount, &txn.Description, &original, &txn.RecordCreated); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Date = txn.Date.UTC()
		txn.OriginalText = original.String
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (s *SQLiteStorage) sessionSuggestions(ctx context.Context, id string) ([]model.RecurringPaymentSuggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, payee, category, provider, amount, frequency, confidence, low_confidence,
			occurrences, transaction_indexes, entry_title, entry_provider, entry_type,
			suggested_domain, domain_confidence, status, record_id
		FROM import_suggestions WHERE session_id = ? ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	suggestions := []model.RecurringPaymentSuggestion{}
	for rows.Next() {
		var (
			sg                                               model.RecurringPaymentSuggestion
			provider, entryProvider, domain, recordID, idxes sql.NullString
		)
		if err := rows.Scan(
			&sg.Index, &sg.Payee, &sg.Category, &provider, &sg.Amount, &sg.Frequency,
			&sg.Confidence, &sg.LowConfidence, &sg.Occurrences, &idxes,
			&sg.SuggestedEntry.Title, &entryProvider, &sg.SuggestedEntry.Type,
			&domain, &sg.DomainConfidence, &sg.Status, &recordID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		if idxes.Valid {
			if err := json.Unmarshal([]byte(idxes.String), &sg.TransactionIndexes); err != nil {
				return nil, fmt.Errorf("failed to decode transaction indexes: %w", err)
			}
		}
		sg.Provider = provider.String
		sg.SuggestedEntry.Provider = entryProvider.String
		sg.SuggestedDomain = model.Domain(domain.String)
		sg.RecordID = recordID.String
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}
