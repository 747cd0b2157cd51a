package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/statement"
)

// Run processes a session through bank identification, transaction extraction,
// pattern detection and suggestion generation. A fatal error leaves the session
// failed with whatever results were already saved.
func (s *Service) Run(ctx context.Context, sessionID string) (err error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, common.ErrNotFound) {
		slog.Debug("Session deleted before processing", "session_id", sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session.Status.IsTerminal() {
		slog.Debug("Session already finished", "session_id", sessionID, "status", session.Status)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if err == nil {
			return
		}
		if s.deleted(ctx, sessionID) {
			common.Logger(ctx).Info("Import session deleted during processing", "session_id", sessionID)
			err = nil
			return
		}
		s.fail(ctx, sessionID, err)
	}()

	logger := common.Logger(ctx).With("session_id", sessionID, "owner_id", session.OwnerID)
	logger.Info("Processing statement", "filename", session.Filename)

	// One snapshot per run; rule edits made meanwhile apply to later sessions only.
	rules, err := s.rules.Snapshot(ctx, model.Principal{ID: session.OwnerID}, session.RuleSetID)
	if err != nil {
		return fmt.Errorf("failed to load detection rules: %w", err)
	}

	data, err := s.blobs.Get(ctx, session.BlobKey)
	if err != nil {
		return fmt.Errorf("failed to read statement: %w", err)
	}

	if err := s.stage(ctx, sessionID, model.StageBankIdentification); err != nil {
		return err
	}
	doc, err := s.parser.Parse(data)
	if err != nil {
		return err
	}
	if err := s.store.SetBankName(ctx, sessionID, doc.Bank.Name); err != nil {
		return fmt.Errorf("failed to save bank name: %w", err)
	}
	logger.Info("Identified bank", "bank", doc.Bank.Name, "lines", len(doc.Lines))

	if err := s.stage(ctx, sessionID, model.StageTransactionExtraction); err != nil {
		return err
	}
	txns, err := s.extractTransactions(doc)
	if errors.Is(err, common.ErrNoTransactionsFound) {
		logger.Info("No transactions found in statement")
		if err := s.store.SaveSuggestions(ctx, sessionID, nil); err != nil {
			return fmt.Errorf("failed to save suggestions: %w", err)
		}
		return s.complete(ctx, sessionID)
	}
	if err := s.store.SaveTransactions(ctx, sessionID, txns); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	logger.Info("Extracted transactions", "count", len(txns))

	if err := s.stage(ctx, sessionID, model.StagePatternDetection); err != nil {
		return err
	}
	suggestions, err := s.detector.Detect(ctx, txns, rules)
	if err != nil {
		return fmt.Errorf("pattern detection failed: %w", err)
	}

	if err := s.stage(ctx, sessionID, model.StageSuggestionGeneration); err != nil {
		return err
	}
	s.suggestDomains(suggestions)
	if err := s.store.SaveSuggestions(ctx, sessionID, suggestions); err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	logger.Info("Detected recurring payments", "count", len(suggestions))

	return s.complete(ctx, sessionID)
}

// TestDetectionRules runs detection and domain suggestion over sample transactions
// without creating a session.
func (s *Service) TestDetectionRules(ctx context.Context, principal model.Principal, ruleSetID string, samples []model.Transaction) ([]model.RecurringPaymentSuggestion, error) {
	if principal.ID == "" {
		return nil, common.ErrUnauthenticated
	}
	rules, err := s.rules.Snapshot(ctx, principal, ruleSetID)
	if err != nil {
		return nil, err
	}
	for i, txn := range samples {
		if txn.Date.IsZero() || strings.TrimSpace(txn.Description) == "" {
			return nil, common.ValidationError("sample %d needs a date and description", i)
		}
	}

	suggestions, err := s.detector.Detect(ctx, samples, rules)
	if err != nil {
		return nil, fmt.Errorf("pattern detection failed: %w", err)
	}
	s.suggestDomains(suggestions)
	return suggestions, nil
}

func (s *Service) extractTransactions(doc *statement.Document) ([]model.Transaction, error) {
	txns := s.extractor.Extract(doc)
	if len(txns) == 0 {
		return nil, common.ErrNoTransactionsFound
	}
	return txns, nil
}

func (s *Service) suggestDomains(suggestions []model.RecurringPaymentSuggestion) {
	for i := range suggestions {
		sg := &suggestions[i]
		suggestion := s.domains.Suggest(classification.Input{
			Category:    sg.Category,
			Payee:       sg.Payee,
			Description: sg.SuggestedEntry.Title,
		})
		sg.SuggestedDomain = suggestion.Domain
		sg.DomainConfidence = suggestion.Confidence
		if sg.SuggestedEntry.Type == "" {
			sg.SuggestedEntry.Type = suggestion.RecordType
		}
	}
}

func (s *Service) stage(ctx context.Context, sessionID string, stage model.ProcessingStage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.UpdateSessionStage(ctx, sessionID, stage); err != nil {
		return fmt.Errorf("failed to update stage to %s: %w", stage, err)
	}
	return nil
}

func (s *Service) complete(ctx context.Context, sessionID string) error {
	if err := s.store.CompleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	slog.Info("Import session completed", "session_id", sessionID)
	return nil
}

// deleted reports whether the session is gone, as after a delete during its run.
func (s *Service) deleted(ctx context.Context, sessionID string) bool {
	_, err := s.store.GetSession(context.WithoutCancel(ctx), sessionID)
	return errors.Is(err, common.ErrNotFound)
}

func (s *Service) fail(ctx context.Context, sessionID string, cause error) {
	// The run context may already be done; the failure still has to be recorded.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.FailSession(ctx, sessionID, failureMessage(cause)); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) || errors.Is(err, common.ErrNotFound) {
			return
		}
		slog.Error("Failed to record session failure", "session_id", sessionID, "error", err)
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidFormat):
		return "The uploaded file is not a PDF statement"
	case errors.Is(err, common.ErrParse):
		return "The statement could not be read: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out"
	default:
		return err.Error()
	}
}
