package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/notify"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
	"github.com/Veraticus/the-paperwork-must-flow/internal/renewal"
	"github.com/Veraticus/the-paperwork-must-flow/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var (
	alice = model.Principal{ID: "alice", Role: model.RoleUser}
	bob   = model.Principal{ID: "bob", Role: model.RoleUser}
	admin = model.Principal{ID: "root", Role: model.RoleAdmin}
)

func barclaysStatement(extra ...string) []byte {
	lines := []string{
		"Barclays Bank UK PLC",
		"Statement of account",
		"01/02/2025 DD BRITISH GAS -85.50",
		"01/03/2025 DD BRITISH GAS -85.50",
		"01/04/2025 DD BRITISH GAS -85.50",
	}
	return testutil.StatementPDF(append(lines, extra...)...)
}

type apiFixture struct {
	db      *testutil.TestDB
	imports *importer.Service
	server  *Server
}

func newAPIFixture(t *testing.T, cfg Config) *apiFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	db.SeedDefaultRuleSet()

	imports := importer.New(importer.Deps{
		Store: db.Storage,
		Blobs: db.Storage.Blobs(),
		Rules: pattern.NewProvider(db.Storage, time.Minute),
	})
	t.Cleanup(imports.Stop)

	renewals := renewal.New(db.Storage, notify.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil))))

	cfg.JWTSecret = testSecret
	server := New(Deps{
		Imports:  imports,
		Renewals: renewals,
		Domains:  classification.NewDefaultEngine(),
	}, cfg)
	return &apiFixture{db: db, imports: imports, server: server}
}

func (f *apiFixture) do(t *testing.T, req *http.Request, principal *model.Principal) (int, map[string]any) {
	t.Helper()
	if principal != nil {
		token, err := IssueToken(testSecret, *principal, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// uploadAndProcess uploads through the API and runs the pipeline synchronously.
func (f *apiFixture) uploadAndProcess(t *testing.T, principal model.Principal, data []byte) string {
	t.Helper()
	status, body := f.do(t, uploadRequest(t, "statement.pdf", data), &principal)
	require.Equal(t, http.StatusAccepted, status, body)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	require.NoError(t, f.imports.Run(context.Background(), id))
	return id
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, Config{})
	status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t, Config{})

	expired, err := IssueToken(testSecret, alice, -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("another-secret-another-secret-xx", alice, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong secret", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			status, body := f.do(t, req, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestParseToken_DefaultsRole(t *testing.T) {
	token, err := IssueToken(testSecret, model.Principal{ID: "carol"}, time.Hour)
	require.NoError(t, err)

	principal, err := ParseToken([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{ID: "carol", Role: model.RoleUser}, principal)

	_, err = IssueToken("", alice, time.Hour)
	require.Error(t, err)
}

func TestUpload(t *testing.T) {
	f := newAPIFixture(t, Config{})
	data := barclaysStatement()

	status, body := f.do(t, uploadRequest(t, "barclays.pdf", data), &alice)
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "bank_identification", body["processing_stage"])
	assert.Equal(t, "barclays.pdf", body["filename"])
	first := body["session_id"]

	t.Run("duplicate content conflicts", func(t *testing.T) {
		status, body := f.do(t, uploadRequest(t, "again.pdf", data), &alice)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, first, body["existing_session_id"])
	})

	t.Run("same content for another owner is accepted", func(t *testing.T) {
		status, _ := f.do(t, uploadRequest(t, "barclays.pdf", data), &bob)
		assert.Equal(t, http.StatusAccepted, status)
	})

	t.Run("missing file", func(t *testing.T) {
		status, _ := f.do(t, jsonRequest(t, http.MethodPost, "/api/imports", map[string]string{}), &alice)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown rule set", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", "other.pdf")
		require.NoError(t, err)
		_, err = part.Write(barclaysStatement("05/04/2025 CARD PAYMENT TO TESCO STORES -23.10"))
		require.NoError(t, err)
		require.NoError(t, w.WriteField("rule_set_id", "missing"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		status, _ := f.do(t, req, &alice)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestUpload_RateLimited(t *testing.T) {
	f := newAPIFixture(t, Config{UploadRate: 0.001, UploadBurst: 1})

	status, _ := f.do(t, uploadRequest(t, "one.pdf", barclaysStatement()), &alice)
	require.Equal(t, http.StatusAccepted, status)

	status, body := f.do(t, uploadRequest(t, "two.pdf", barclaysStatement("05/04/2025 CARD PAYMENT TO TESCO STORES -23.10")), &alice)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, body["error"])

	// Limits are per principal.
	status, _ = f.do(t, uploadRequest(t, "one.pdf", barclaysStatement()), &bob)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestUploadLimitersExpire(t *testing.T) {
	f := newAPIFixture(t, Config{UploadRate: 1, UploadBurst: 1})
	f.server.limiters = cache.New(20*time.Millisecond, 10*time.Millisecond)

	assert.True(t, f.server.allowUpload("alice"))
	assert.False(t, f.server.allowUpload("alice"))
	assert.True(t, f.server.allowUpload("bob"))
	assert.Equal(t, 2, f.server.limiters.ItemCount())

	require.Eventually(t, func() bool {
		return f.server.limiters.ItemCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewLimiterCacheOutlivesRefill(t *testing.T) {
	c := newLimiterCache(Config{UploadRate: 0.001, UploadBurst: 5})
	c.Set("alice", rate.NewLimiter(0.001, 5), cache.DefaultExpiration)

	_, expires, ok := c.GetWithExpiration("alice")
	require.True(t, ok)
	assert.Greater(t, time.Until(expires), time.Hour)
}

func TestSessionEndpoints(t *testing.T) {
	f := newAPIFixture(t, Config{})
	id := f.uploadAndProcess(t, alice, barclaysStatement())
	path := "/api/imports/" + id

	t.Run("owner reads session", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, path, nil), &alice)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, "Barclays", body["bank_name"])
	})

	t.Run("status view", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, path+"/status", nil), &alice)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "completed", body["status"])
		stats, ok := body["statistics"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 3, stats["total_transactions"], 0)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodGet, path, nil), &bob)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("admin may read", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodGet, path, nil), &admin)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("unknown session", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil), &alice)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("list", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/imports?status=completed&limit=5", nil), &alice)
		require.Equal(t, http.StatusOK, status)
		sessions, ok := body["sessions"].([]any)
		require.True(t, ok)
		assert.Len(t, sessions, 1)
		pagination, ok := body["pagination"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 5, pagination["limit"], 0)
		assert.InDelta(t, 1, pagination["total"], 0)

		status, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/imports", nil), &bob)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, body["sessions"])
	})

	t.Run("invalid status filter", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/imports?status=archived", nil), &alice)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestConfirmAndDelete(t *testing.T) {
	f := newAPIFixture(t, Config{})
	id := f.uploadAndProcess(t, alice, barclaysStatement())
	path := "/api/imports/" + id

	t.Run("out of range index", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, path+"/confirm", importer.ConfirmRequest{
			Confirmations: []importer.Confirmation{{SuggestionIndex: 42, Action: importer.ActionAccept}},
		})
		status, _ := f.do(t, req, &alice)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("admin cannot confirm", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, path+"/confirm", importer.ConfirmRequest{BulkAction: importer.BulkAcceptAll})
		status, _ := f.do(t, req, &admin)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("accept all", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, path+"/confirm", importer.ConfirmRequest{BulkAction: importer.BulkAcceptAll})
		status, body := f.do(t, req, &alice)
		require.Equal(t, http.StatusOK, status, body)
		created, ok := body["created_entries"].([]any)
		require.True(t, ok)
		require.Len(t, created, 1)
		entry, ok := created[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "property", entry["domain"])
	})

	t.Run("delete with records conflicts", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodDelete, path, nil), &alice)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("delete without records", func(t *testing.T) {
		other := f.uploadAndProcess(t, alice, barclaysStatement("05/04/2025 CARD PAYMENT TO TESCO STORES -23.10"))
		status, _ := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/imports/"+other, nil), &alice)
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/"+other, nil), &alice)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestTestRules(t *testing.T) {
	f := newAPIFixture(t, Config{})

	var txns []model.Transaction
	for i := range 3 {
		txns = append(txns, model.Transaction{
			Date:        time.Date(2025, time.Month(i+1), 12, 0, 0, 0, 0, time.UTC),
			Description: "NETFLIX.COM",
			Amount:      mustAmount(t, "-10.99"),
		})
	}

	status, body := f.do(t, jsonRequest(t, http.MethodPost, "/api/rulesets/default/test", testRulesRequest{Transactions: txns}), &alice)
	require.Equal(t, http.StatusOK, status, body)
	suggestions, ok := body["suggestions"].([]any)
	require.True(t, ok)
	require.Len(t, suggestions, 1)
	sg, ok := suggestions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "monthly", sg["frequency"])

	status, _ = f.do(t, jsonRequest(t, http.MethodPost, "/api/rulesets/missing/test", testRulesRequest{Transactions: txns}), &alice)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSuggestDomain(t *testing.T) {
	f := newAPIFixture(t, Config{})

	req := jsonRequest(t, http.MethodPost, "/api/domains/suggest", classification.Input{Payee: "BRITISH GAS", Category: "utilities"})
	status, body := f.do(t, req, &alice)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "property", body["domain"])
}

func TestRenewalEndpoints(t *testing.T) {
	f := newAPIFixture(t, Config{})
	today := time.Now().UTC().Truncate(24 * time.Hour)

	f.db.MustCreateRecord(&model.DomainRecord{
		ID:         "policy",
		OwnerID:    alice.ID,
		Domain:     model.DomainVehicle,
		RecordType: "vehicle_insurance",
		Title:      "Car insurance",
		RenewalInfo: &model.RenewalInfo{
			EndDate:      today.AddDate(0, 0, 10),
			IsActive:     true,
			UrgencyLevel: model.UrgencyImportant,
			ReminderDays: model.DefaultReminderDays(),
		},
	})
	f.db.MustCreateRecord(&model.DomainRecord{
		ID:         "passport",
		OwnerID:    alice.ID,
		Domain:     model.DomainGovernment,
		RecordType: "passport",
		Title:      "Passport",
		RenewalInfo: &model.RenewalInfo{
			EndDate:      today.AddDate(0, 0, -5),
			IsActive:     true,
			UrgencyLevel: model.UrgencyImportant,
			ReminderDays: model.DefaultReminderDays(),
		},
	})

	t.Run("upcoming", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/renewals/upcoming?days=30", nil), &alice)
		require.Equal(t, http.StatusOK, status)
		renewals, ok := body["renewals"].([]any)
		require.True(t, ok)
		require.Len(t, renewals, 1)
		assert.Equal(t, "policy", renewals[0].(map[string]any)["record_id"])

		status, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/renewals/upcoming", nil), &bob)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, body["renewals"])
	})

	t.Run("upcoming window out of range", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/renewals/upcoming?days=5000", nil), &alice)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("overdue", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/renewals/overdue", nil), &alice)
		require.Equal(t, http.StatusOK, status)
		renewals, ok := body["renewals"].([]any)
		require.True(t, ok)
		require.Len(t, renewals, 1)
		assert.Equal(t, "medium", renewals[0].(map[string]any)["severity"])
	})

	t.Run("timeline", func(t *testing.T) {
		status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/renewals/timeline?months=3", nil), &alice)
		require.Equal(t, http.StatusOK, status)
		buckets, ok := body["timeline"].([]any)
		require.True(t, ok)
		assert.Len(t, buckets, 3)
	})

	t.Run("snooze", func(t *testing.T) {
		status, body := f.do(t, jsonRequest(t, http.MethodPost, "/api/renewals/policy/snooze", snoozeRequest{Days: 3}), &alice)
		require.Equal(t, http.StatusOK, status, body)
		info, ok := body["renewal_info"].(map[string]any)
		require.True(t, ok)
		assert.NotEmpty(t, info["next_reminder_due"])

		status, _ = f.do(t, jsonRequest(t, http.MethodPost, "/api/renewals/policy/snooze", snoozeRequest{Days: 3}), &bob)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = f.do(t, jsonRequest(t, http.MethodPost, "/api/renewals/policy/snooze", snoozeRequest{Days: 0}), &alice)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("sweep requires admin", func(t *testing.T) {
		status, _ := f.do(t, httptest.NewRequest(http.MethodPost, "/api/renewals/sweep", nil), &alice)
		assert.Equal(t, http.StatusForbidden, status)

		status, body := f.do(t, httptest.NewRequest(http.MethodPost, "/api/renewals/sweep", nil), &admin)
		require.Equal(t, http.StatusOK, status)
		assert.InDelta(t, 2, body["processed_count"], 0)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("session x: %w", common.ErrNotFound), http.StatusNotFound},
		{common.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("record y: %w", common.ErrForbidden), http.StatusForbidden},
		{&common.DuplicateUploadError{ExistingSessionID: "s1"}, http.StatusConflict},
		{common.ErrHasAssociatedEntries, http.StatusConflict},
		{common.ValidationError("bad limit"), http.StatusBadRequest},
		{common.ErrInvalidIndex, http.StatusBadRequest},
		{fiber.NewError(fiber.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
