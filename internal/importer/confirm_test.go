package importer

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/service"
)

var twoPaymentLines = []string{
	"01/01/2025 DD BRITISH GAS -85.50",
	"03/01/2025 DD NETFLIX.COM -10.99",
	"01/02/2025 DD BRITISH GAS -85.50",
	"03/02/2025 DD NETFLIX.COM -10.99",
	"01/03/2025 DD BRITISH GAS -85.50",
	"03/03/2025 DD NETFLIX.COM -10.99",
}

func TestService_ConfirmSuggestions(t *testing.T) {
	ctx := context.Background()

	t.Run("accept creates a record and marks transactions", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "accept")
		require.Len(t, session.RecurringPayments, 2)
		sg := session.RecurringPayments[0]

		result, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, ConfirmRequest{
			Confirmations: []Confirmation{
				{SuggestionIndex: 0, Action: ActionAccept},
				{SuggestionIndex: 1, Action: ActionReject},
			},
		})
		require.NoError(t, err)
		require.Len(t, result.CreatedEntries, 1)
		assert.Equal(t, []int{1}, result.RejectedSuggestions)
		assert.Empty(t, result.Skipped)

		record := result.CreatedEntries[0]
		assert.Equal(t, "alice", record.OwnerID)
		assert.Equal(t, sg.SuggestedDomain, record.Domain)
		assert.Equal(t, sg.SuggestedEntry.Title, record.Title)
		assert.Equal(t, sg.SuggestedEntry.Type, record.RecordType)
		assert.Equal(t, sg.Frequency, record.Frequency)
		assert.True(t, record.Amount.Equal(sg.Amount.Abs()))
		require.NotNil(t, record.ImportMetadata)
		assert.Equal(t, model.ImportSourceBank, record.ImportMetadata.Source)
		assert.Equal(t, session.ID, record.ImportMetadata.ImportSessionID)
		assert.Equal(t, sg.SuggestedDomain, record.ImportMetadata.DomainSuggestion.SuggestedDomain)
		assert.Nil(t, record.RenewalInfo)

		stored, err := f.store.GetRecord(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.Title, stored.Title)

		session, err = f.service.GetSession(ctx, alice, session.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SuggestionAccepted, session.RecurringPayments[0].Status)
		assert.Equal(t, record.ID, session.RecurringPayments[0].RecordID)
		assert.Equal(t, model.SuggestionRejected, session.RecurringPayments[1].Status)
		for i, txn := range session.Transactions {
			want := slices.Contains(sg.TransactionIndexes, i)
			assert.Equal(t, want, txn.RecordCreated, "transaction %d", i)
		}
	})

	t.Run("repeating a confirmation creates nothing new", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "repeat")
		req := ConfirmRequest{Confirmations: []Confirmation{{SuggestionIndex: 0, Action: ActionAccept}}}

		_, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, req)
		require.NoError(t, err)
		result, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, req)
		require.NoError(t, err)
		assert.Empty(t, result.CreatedEntries)
		assert.Equal(t, []int{0}, result.Skipped)

		records, err := f.store.ListRecords(ctx, service.RecordFilter{OwnerID: "alice"})
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("modifications override the suggestion", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "modify")
		endDate := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
		amount := mustDecimal(t, "-90.00")

		result, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, ConfirmRequest{
			Confirmations: []Confirmation{{
				SuggestionIndex: 0,
				Action:          ActionAccept,
				Modifications: &Modifications{
					Domain:       model.DomainHealth,
					Title:        "Home energy",
					Amount:       &amount,
					EndDate:      &endDate,
					ReminderDays: []int{60, 30},
					UrgencyLevel: model.UrgencyStrategic,
					Fields:       map[string]string{"account": "A-1"},
				},
			}},
		})
		require.NoError(t, err)
		require.Len(t, result.CreatedEntries, 1)

		record := result.CreatedEntries[0]
		assert.Equal(t, model.DomainHealth, record.Domain)
		assert.Equal(t, "Home energy", record.Title)
		assert.Equal(t, "90.00", record.Amount.StringFixed(2))
		assert.Equal(t, "A-1", record.Fields["account"])
		assert.Equal(t, session.RecurringPayments[0].SuggestedDomain, record.ImportMetadata.DomainSuggestion.SuggestedDomain)
		require.NotNil(t, record.RenewalInfo)
		assert.Equal(t, endDate, record.RenewalInfo.EndDate)
		assert.True(t, record.RenewalInfo.IsActive)
		assert.Equal(t, model.UrgencyStrategic, record.RenewalInfo.UrgencyLevel)
		assert.Equal(t, []int{60, 30}, record.RenewalInfo.ReminderDays)
	})

	t.Run("accept all takes every pending suggestion", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "bulk")

		_, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, ConfirmRequest{
			Confirmations: []Confirmation{{SuggestionIndex: 1, Action: ActionReject}},
		})
		require.NoError(t, err)

		result, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, ConfirmRequest{BulkAction: BulkAcceptAll})
		require.NoError(t, err)
		require.Len(t, result.CreatedEntries, 1)
		assert.Empty(t, result.Skipped)
	})

	t.Run("invalid requests write nothing", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "invalid")

		tests := []struct {
			wantErr error
			name    string
			req     ConfirmRequest
		}{
			{
				name: "index out of range after a valid one",
				req: ConfirmRequest{Confirmations: []Confirmation{
					{SuggestionIndex: 0, Action: ActionAccept},
					{SuggestionIndex: 7, Action: ActionAccept},
				}},
				wantErr: common.ErrInvalidIndex,
			},
			{
				name:    "negative index",
				req:     ConfirmRequest{Confirmations: []Confirmation{{SuggestionIndex: -1, Action: ActionReject}}},
				wantErr: common.ErrInvalidIndex,
			},
			{
				name:    "unknown action",
				req:     ConfirmRequest{Confirmations: []Confirmation{{SuggestionIndex: 0, Action: "maybe"}}},
				wantErr: common.ErrValidation,
			},
			{
				name: "duplicate index",
				req: ConfirmRequest{Confirmations: []Confirmation{
					{SuggestionIndex: 0, Action: ActionAccept},
					{SuggestionIndex: 0, Action: ActionReject},
				}},
				wantErr: common.ErrValidation,
			},
			{
				name: "unknown domain",
				req: ConfirmRequest{Confirmations: []Confirmation{
					{SuggestionIndex: 0, Action: ActionAccept, Modifications: &Modifications{Domain: "pets"}},
				}},
				wantErr: common.ErrValidation,
			},
			{
				name:    "empty request",
				req:     ConfirmRequest{},
				wantErr: common.ErrValidation,
			},
			{
				name:    "unknown bulk action",
				req:     ConfirmRequest{BulkAction: "reject_all"},
				wantErr: common.ErrValidation,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, tt.req)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		got, err := f.service.GetSession(ctx, alice, session.ID)
		require.NoError(t, err)
		for _, sg := range got.RecurringPayments {
			assert.Equal(t, model.SuggestionPending, sg.Status)
		}
		count, err := f.store.CountReferencing(ctx, session.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("only completed sessions can be confirmed", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session, err := f.service.UploadStatement(ctx, alice, []byte("%PDF-1.4 pending"), "pending.pdf", UploadOptions{})
		require.NoError(t, err)

		_, err = f.service.ConfirmSuggestions(ctx, alice, session.ID, ConfirmRequest{BulkAction: BulkAcceptAll})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("concurrent accepts create one record", func(t *testing.T) {
		f := newFixture(t, linesParser{lines: twoPaymentLines})
		session := f.processed(t, alice, "race")
		req := ConfirmRequest{Confirmations: []Confirmation{{SuggestionIndex: 0, Action: ActionAccept}}}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := f.service.ConfirmSuggestions(ctx, alice, session.ID, req)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				created += len(result.CreatedEntries)
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		count, err := f.store.CountReferencing(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestBuildRecord_Defaults(t *testing.T) {
	session := &model.ImportSession{ID: "s1", OwnerID: "alice"}
	sg := model.RecurringPaymentSuggestion{
		Payee:     "ACME WIDGETS",
		Category:  "uncategorized",
		Amount:    mustDecimal(t, "-14.00"),
		Frequency: model.FrequencyMonthly,
	}

	record := buildRecord(session, sg, nil)

	assert.Equal(t, model.DomainFinance, record.Domain)
	assert.Equal(t, "recurring_payment", record.RecordType)
	assert.Equal(t, "ACME WIDGETS", record.Title)
	assert.Equal(t, "14.00", record.Amount.StringFixed(2))
	assert.Equal(t, "ACME WIDGETS", record.Fields["payee"])
	assert.Equal(t, "uncategorized", record.Fields["category"])
}
