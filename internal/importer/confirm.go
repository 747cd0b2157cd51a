package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

// Action is the decision taken on a single suggestion.
type Action string

// Confirmation actions.
const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// BulkAction applies one decision to every pending suggestion.
type BulkAction string

// BulkAcceptAll accepts every pending suggestion of the session.
const BulkAcceptAll BulkAction = "accept_all"

// Modifications override suggestion values on the created record. Zero values keep
// the suggestion's value.
type Modifications struct {
	Amount       *decimal.Decimal  `json:"amount,omitempty"`
	EndDate      *time.Time        `json:"end_date,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Domain       model.Domain      `json:"domain,omitempty"`
	RecordType   string            `json:"record_type,omitempty"`
	Title        string            `json:"title,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Frequency    model.Frequency   `json:"frequency,omitempty"`
	UrgencyLevel model.Urgency     `json:"urgency_level,omitempty"`
	ReminderDays []int             `json:"reminder_days,omitempty"`
}

// Confirmation is the decision for one suggestion.
type Confirmation struct {
	Modifications   *Modifications `json:"modifications,omitempty"`
	Action          Action         `json:"action"`
	SuggestionIndex int            `json:"suggestion_index"`
}

// ConfirmRequest carries either individual confirmations or a bulk action.
type ConfirmRequest struct {
	BulkAction    BulkAction     `json:"bulk_action,omitempty"`
	Confirmations []Confirmation `json:"confirmations,omitempty"`
}

// ConfirmResult reports what a confirmation changed. Skipped lists indexes that were
// already decided, so repeating a request never creates duplicate records.
type ConfirmResult struct {
	CreatedEntries      []model.DomainRecord `json:"created_entries"`
	RejectedSuggestions []int                `json:"rejected_suggestions"`
	Skipped             []int                `json:"skipped"`
}

// ConfirmSuggestions accepts or rejects suggestions of a completed session. Every
// confirmation is validated before anything is written.
func (s *Service) ConfirmSuggestions(ctx context.Context, principal model.Principal, sessionID string, req ConfirmRequest) (*ConfirmResult, error) {
	session, err := s.loadSession(ctx, principal, sessionID, true)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionCompleted {
		return nil, common.ValidationError("session is %s; only completed sessions can be confirmed", session.Status)
	}

	confirmations, err := planConfirmations(session, req)
	if err != nil {
		return nil, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	result := &ConfirmResult{
		CreatedEntries:      []model.DomainRecord{},
		RejectedSuggestions: []int{},
		Skipped:             []int{},
	}
	for _, c := range confirmations {
		sg := session.RecurringPayments[c.SuggestionIndex]
		switch c.Action {
		case ActionReject:
			won, err := s.store.TransitionSuggestion(ctx, sessionID, sg.Index, model.SuggestionPending, model.SuggestionRejected, "")
			if err != nil {
				return result, fmt.Errorf("failed to reject suggestion %d: %w", sg.Index, err)
			}
			if !won {
				result.Skipped = append(result.Skipped, sg.Index)
				continue
			}
			result.RejectedSuggestions = append(result.RejectedSuggestions, sg.Index)

		case ActionAccept:
			record, err := s.accept(ctx, session, sg, c.Modifications)
			if err != nil {
				return result, err
			}
			if record == nil {
				result.Skipped = append(result.Skipped, sg.Index)
				continue
			}
			result.CreatedEntries = append(result.CreatedEntries, *record)
		}
	}

	slog.Info("Confirmed suggestions",
		"session_id", sessionID,
		"created", len(result.CreatedEntries),
		"rejected", len(result.RejectedSuggestions),
		"skipped", len(result.Skipped))
	return result, nil
}

// accept claims the suggestion and creates its record. It returns nil when another
// request already decided the suggestion.
func (s *Service) accept(ctx context.Context, session *model.ImportSession, sg model.RecurringPaymentSuggestion, mods *Modifications) (*model.DomainRecord, error) {
	record := buildRecord(session, sg, mods)
	record.ID = uuid.New().String()

	won, err := s.store.TransitionSuggestion(ctx, session.ID, sg.Index, model.SuggestionPending, model.SuggestionAccepted, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept suggestion %d: %w", sg.Index, err)
	}
	if !won {
		return nil, nil
	}

	s.warnIfAlreadyRecorded(ctx, record)

	if err := s.store.CreateRecord(ctx, record); err != nil {
		revertCtx := context.WithoutCancel(ctx)
		if _, revertErr := s.store.TransitionSuggestion(revertCtx, session.ID, sg.Index, model.SuggestionAccepted, model.SuggestionPending, ""); revertErr != nil {
			slog.Error("Failed to revert accepted suggestion",
				"session_id", session.ID,
				"index", sg.Index,
				"error", revertErr)
		}
		return nil, fmt.Errorf("failed to create record for suggestion %d: %w", sg.Index, err)
	}

	if err := s.store.MarkTransactionsRecorded(ctx, session.ID, sg.TransactionIndexes); err != nil {
		slog.Warn("Failed to mark transactions recorded",
			"session_id", session.ID,
			"index", sg.Index,
			"error", err)
	}
	return record, nil
}

// warnIfAlreadyRecorded logs when the owner already has an equivalent record, as
// happens when overlapping statements are imported in separate sessions.
func (s *Service) warnIfAlreadyRecorded(ctx context.Context, record *model.DomainRecord) {
	if record.Provider == "" {
		return
	}
	existing, err := s.store.ListRecords(ctx, service.RecordFilter{
		OwnerID:  record.OwnerID,
		Domain:   record.Domain,
		Provider: record.Provider,
	})
	if err != nil {
		slog.Debug("Could not check for existing records", "error", err)
		return
	}
	for _, r := range existing {
		if r.RecordType == record.RecordType {
			slog.Warn("Similar record already exists",
				"owner_id", record.OwnerID,
				"existing_record_id", r.ID,
				"provider", record.Provider,
				"record_type", record.RecordType)
			return
		}
	}
}

func planConfirmations(session *model.ImportSession, req ConfirmRequest) ([]Confirmation, error) {
	if req.BulkAction != "" {
		if req.BulkAction != BulkAcceptAll {
			return nil, common.ValidationError("unknown bulk action %q", req.BulkAction)
		}
		if len(req.Confirmations) > 0 {
			return nil, common.ValidationError("bulk action cannot be combined with confirmations")
		}
		var all []Confirmation
		for i, sg := range session.RecurringPayments {
			if sg.Status == model.SuggestionPending {
				all = append(all, Confirmation{SuggestionIndex: i, Action: ActionAccept})
			}
		}
		return all, nil
	}

	if len(req.Confirmations) == 0 {
		return nil, common.ValidationError("no confirmations given")
	}
	seen := make(map[int]bool, len(req.Confirmations))
	for _, c := range req.Confirmations {
		if c.SuggestionIndex < 0 || c.SuggestionIndex >= len(session.RecurringPayments) {
			return nil, fmt.Errorf("%w: %d", common.ErrInvalidIndex, c.SuggestionIndex)
		}
		if seen[c.SuggestionIndex] {
			return nil, common.ValidationError("suggestion %d confirmed twice", c.SuggestionIndex)
		}
		seen[c.SuggestionIndex] = true
		if c.Action != ActionAccept && c.Action != ActionReject {
			return nil, common.ValidationError("unknown action %q for suggestion %d", c.Action, c.SuggestionIndex)
		}
		if c.Modifications != nil {
			if err := validateModifications(*c.Modifications); err != nil {
				return nil, fmt.Errorf("suggestion %d: %w", c.SuggestionIndex, err)
			}
		}
	}
	return req.Confirmations, nil
}

func validateModifications(m Modifications) error {
	if m.Domain != "" && !m.Domain.IsValid() {
		return common.ValidationError("unknown domain %q", m.Domain)
	}
	if m.Frequency != "" && (!m.Frequency.IsValid() || m.Frequency == model.FrequencyIrregular) {
		return common.ValidationError("unknown frequency %q", m.Frequency)
	}
	if m.UrgencyLevel != "" && !m.UrgencyLevel.IsValid() {
		return common.ValidationError("unknown urgency %q", m.UrgencyLevel)
	}
	for _, d := range m.ReminderDays {
		if d <= 0 {
			return common.ValidationError("reminder days must be positive, got %d", d)
		}
	}
	if len(m.ReminderDays) > 0 && m.EndDate == nil {
		return common.ValidationError("reminder days need an end date")
	}
	return nil
}

func buildRecord(session *model.ImportSession, sg model.RecurringPaymentSuggestion, mods *Modifications) *model.DomainRecord {
	if mods == nil {
		mods = &Modifications{}
	}

	record := &model.DomainRecord{
		OwnerID:    session.OwnerID,
		Domain:     firstNonEmpty(mods.Domain, sg.SuggestedDomain, model.DomainFinance),
		RecordType: firstNonEmpty(mods.RecordType, sg.SuggestedEntry.Type, "recurring_payment"),
		Title:      firstNonEmpty(mods.Title, sg.SuggestedEntry.Title, sg.Payee),
		Provider:   firstNonEmpty(mods.Provider, sg.SuggestedEntry.Provider, sg.Provider),
		Amount:     sg.Amount.Abs(),
		Frequency:  firstNonEmpty(mods.Frequency, sg.Frequency),
		Fields: map[string]string{
			"payee":       sg.Payee,
			"category":    sg.Category,
			"occurrences": fmt.Sprint(sg.Occurrences),
		},
		ImportMetadata: &model.ImportMetadata{
			Source:          model.ImportSourceBank,
			ImportSessionID: session.ID,
			DomainSuggestion: model.DomainSuggestion{
				SuggestedDomain: sg.SuggestedDomain,
				Confidence:      sg.DomainConfidence,
			},
		},
	}
	if mods.Amount != nil {
		record.Amount = mods.Amount.Abs()
	}
	for k, v := range mods.Fields {
		if strings.TrimSpace(k) != "" {
			record.Fields[k] = v
		}
	}
	if mods.EndDate != nil {
		reminderDays := mods.ReminderDays
		if len(reminderDays) == 0 {
			reminderDays = model.DefaultReminderDays()
		}
		record.RenewalInfo = &model.RenewalInfo{
			EndDate:      mods.EndDate.UTC(),
			IsActive:     true,
			UrgencyLevel: firstNonEmpty(mods.UrgencyLevel, model.UrgencyImportant),
			ReminderDays: reminderDays,
		}
	}
	return record
}

func firstNonEmpty[T ~string](values ...T) T {
	for _, v := range values {
		if strings.TrimSpace(string(v)) != "" {
			return v
		}
	}
	var zero T
	return zero
}
