package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/report"
	"fintrack/internal/storage/memory"
)

var december = core.Period{Year: 2024, Month: 12}

type fixture struct {
	srv   *Server
	store *memory.Store
	mail  *mail.Recorder
	alice int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.New()
	alice := store.AddUser(core.User{Username: "alice", Email: "alice@example.com", EmailNotifications: true})
	store.Add(alice, core.Income, "Salary", 500000, december)
	store.Add(alice, core.Expense, "Food", 180000, december)
	store.Add(alice, core.Expense, "Rent", 120000, december)
	store.Add(alice, core.Expense, "Food", 10000, december.Previous())

	rec := mail.NewRecorder()
	svc := report.NewService(store, report.NewRenderer(report.RendererOptions{CurrencySymbol: "Rs. "}), rec,
		report.WithClock(func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }))
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	srv := NewServer(":0", svc, store, logger, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &fixture{srv: srv, store: store, mail: rec, alice: alice}
}

func (f *fixture) do(t *testing.T, method, path string, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != 0 {
		req.Header.Set(HeaderUserID, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, http.MethodGet, "/readyz", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestReadyReportsFailingCheck(t *testing.T) {
	f := newFixture(t, WithReadiness(
		Check{Name: "database", Probe: func(context.Context) error { return errors.New("disk I/O error") }},
		Check{Name: "scheduler", Probe: func(context.Context) error { return nil }},
	))

	rec := f.do(t, http.MethodGet, "/readyz", 0, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "failed", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["scheduler"])
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}

func TestRequiresUser(t *testing.T) {
	f := newFixture(t)
	paths := []string{"/api/monthly-reports", "/api/monthly-report/2024/12", "/api/user-settings"}

	for _, path := range paths {
		rec := f.do(t, http.MethodGet, path, 0, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Authentication required", decodeError(t, rec))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/monthly-reports", nil)
	req.Header.Set(HeaderUserID, "-3")
	rec := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListReports(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/monthly-reports", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []periodResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []periodResponse{
		{Year: 2024, Month: 12, MonthName: "December", DisplayName: "December 2024", TransactionCount: 3},
		{Year: 2024, Month: 11, MonthName: "November", DisplayName: "November 2024", TransactionCount: 1},
	}, got)
}

func TestListReports_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	bob := f.store.AddUser(core.User{Username: "bob", Email: "bob@example.com"})

	rec := f.do(t, http.MethodGet, "/api/monthly-reports", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/monthly-report/2024/12", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data core.MonthlyReportData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, 5000.0, data.TotalIncome)
	assert.Equal(t, 3000.0, data.TotalExpense)
	assert.Equal(t, 2000.0, data.TotalSaving)
	assert.Equal(t, 3, data.TransactionCount)
	assert.Equal(t, "December 2024", data.MonthYear)
	require.Len(t, data.ExpenseCategories, 2)
	assert.Equal(t, "Food", data.ExpenseCategories[0].Name)
}

func TestMonthlyReport_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		userID int64
		status int
		msg    string
	}{
		{name: "month out of range", path: "/api/monthly-report/2024/13", userID: f.alice, status: http.StatusBadRequest, msg: "Invalid period"},
		{name: "non numeric year", path: "/api/monthly-report/last/12", userID: f.alice, status: http.StatusBadRequest, msg: "Invalid period"},
		{name: "unknown user", path: "/api/monthly-report/2024/12", userID: 99, status: http.StatusNotFound, msg: "User not found"},
		{name: "pdf unknown user", path: "/api/monthly-report/2024/12/pdf", userID: 99, status: http.StatusNotFound, msg: "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, tt.userID, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}
}

func TestStoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.store.FailWith(errors.New("database is locked"))

	rec := f.do(t, http.MethodGet, "/api/monthly-reports", f.alice, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load reports", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestMonthlyReportPDF(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/monthly-report/2024/12/pdf", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Monthly_Report_December_2024.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))
}

func TestSendReport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/send-monthly-report/2024/12", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sendResponse{Success: true, Message: "Report sent successfully"}, body)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "Monthly_Report_December_2024.pdf", sent[0].Attachment.Filename)
}

func TestSendReport_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/send-monthly-report/2024/12", f.alice, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, f.mail.Attempts())
}

func TestSendReport_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.mail.FailFor["alice@example.com"] = errors.New("535 authentication failed")

	rec := f.do(t, http.MethodPost, "/api/send-monthly-report/2024/12", f.alice, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to send email", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "535")
}

func TestSendReport_RateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, CleanupInterval: time.Hour})
	f := newFixture(t, WithLimiter(limiter))

	rec := f.do(t, http.MethodPost, "/api/send-monthly-report/2024/12", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/send-monthly-report/2024/12", f.alice, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests. Please try again later.", decodeError(t, rec))
	assert.Len(t, f.mail.Attempts(), 1)

	bob := f.store.AddUser(core.User{Username: "bob", Email: "bob@example.com"})
	rec = f.do(t, http.MethodPost, "/api/send-monthly-report/2024/12", bob, "")
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per user")
}

func TestUserSettings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/user-settings", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email_notifications":true}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/user-settings", f.alice, `{"email_notifications":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"email_notifications":false}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/user-settings", f.alice, "")
	assert.JSONEq(t, `{"email_notifications":false}`, rec.Body.String())

	users, err := f.store.ListOptedInUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserSettings_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		userID int64
		status int
		msg    string
	}{
		{name: "missing field", body: `{}`, userID: f.alice, status: http.StatusBadRequest, msg: "email_notifications is required"},
		{name: "wrong type", body: `{"email_notifications":"yes"}`, userID: f.alice, status: http.StatusBadRequest, msg: "Invalid request body"},
		{name: "unknown field", body: `{"email_notifications":true,"admin":true}`, userID: f.alice, status: http.StatusBadRequest, msg: "Invalid request body"},
		{name: "not json", body: `email_notifications=true`, userID: f.alice, status: http.StatusBadRequest, msg: "Invalid request body"},
		{name: "unknown user", body: `{"email_notifications":true}`, userID: 42, status: http.StatusNotFound, msg: "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/user-settings", tt.userID, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}

	u, err := f.store.GetUser(context.Background(), f.alice)
	require.NoError(t, err)
	assert.True(t, u.EmailNotifications, "rejected requests must not change the setting")
}
