package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/metrics"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestDaemon(t *testing.T, cfg Config) (*Service, *ledger.Service) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Seed(context.Background()))

	m := metrics.New()
	l := ledger.New(st,
		ledger.WithClock(func() time.Time { return fixedNow }),
		ledger.WithMetrics(m),
	)
	return New(cfg, l, m, nil), l
}

func doJSON(t *testing.T, app *fiber.App, method, target string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Overdue:      1,
		Critical:     2,
		TotalPending: decimal.RequireFromString("500000"),
		Spent:        decimal.RequireFromString("1000"),
	}
	curr := Snapshot{
		Overdue:      0,
		Critical:     3,
		TotalPending: decimal.RequireFromString("350000"),
		Spent:        decimal.RequireFromString("151000"),
		ActiveTrends: 1,
	}

	delta := diffSnapshots(prev, curr)
	assert.Equal(t, -1, delta.Overdue)
	assert.Equal(t, 1, delta.Critical)
	assert.True(t, delta.TotalPending.Equal(decimal.RequireFromString("-150000")))
	assert.True(t, delta.Spent.Equal(decimal.RequireFromString("150000")))
	assert.Equal(t, 1, delta.ActiveTrends)
	assert.False(t, delta.isZero())
	assert.True(t, diffSnapshots(curr, curr).isZero())
}

func TestPublishEventRingBuffer(t *testing.T) {
	s, _ := newTestDaemon(t, Config{EventsBuffer: 2})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	require.Len(t, s.events, 2)
	assert.Equal(t, int64(2), s.events[0].ID)
	assert.Equal(t, int64(3), s.events[1].ID)
}

func TestRecordPublishesSnapshotThenDeltas(t *testing.T) {
	s, _ := newTestDaemon(t, Config{})

	first := Snapshot{At: fixedNow, Normal: 2, TotalPending: decimal.NewFromInt(200)}
	s.record(first)
	s.record(first)

	events := s.eventsSince(0)
	require.Len(t, events, 1)
	assert.Equal(t, EventSnapshot, events[0].Type)

	second := first
	second.Normal = 1
	second.TotalPending = decimal.NewFromInt(100)
	s.record(second)

	events = s.eventsSince(events[0].ID)
	require.Len(t, events, 1)
	assert.Equal(t, EventDashboardDelta, events[0].Type)
	assert.Equal(t, -1, events[0].Delta.Normal)
	assert.Equal(t, int64(3), s.snapshotStatus().PollCount)
}

func TestPollSnapshotCountsPending(t *testing.T) {
	s, l := newTestDaemon(t, Config{})
	ctx := context.Background()

	for _, due := range []string{"2024-03-10", "2024-03-15", "2024-03-17", "2024-04-01"} {
		d, err := period.ParseDate(due)
		require.NoError(t, err)
		_, err = l.CreateExpense(ctx, ledger.ExpenseInput{
			Description: "bill " + due,
			Amount:      decimal.NewFromInt(1000),
			DueDate:     d,
			Category:    "Servicios",
		})
		require.NoError(t, err)
	}

	s.pollOnce(ctx)
	st := s.snapshotStatus()
	assert.Empty(t, st.LastError)
	assert.Equal(t, "2024-03", st.Summary.Period)
	assert.Equal(t, 1, st.Summary.Overdue)
	assert.Equal(t, 1, st.Summary.DueToday)
	assert.Equal(t, 1, st.Summary.Critical)
	assert.Equal(t, 1, st.Summary.Normal)
	assert.True(t, st.Summary.TotalPending.Equal(decimal.NewFromInt(4000)))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.NotFound("expense", 1), http.StatusNotFound},
		{apperr.Duplicate("dup"), http.StatusConflict},
		{apperr.Policy("HISTORICAL_BUDGET", "closed"), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", apperr.Policy("AUTHORIZATION_REQUIRED", "pin")), http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
		{fiber.NewError(http.StatusTeapot, "tea"), http.StatusTeapot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := newTestDaemon(t, Config{Interval: 30 * time.Second})
	app := s.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	var st Status
	assert.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/v1/status", &st))
	assert.Equal(t, 30, st.PollIntervalSec)
	assert.NotEmpty(t, st.RunID)
}

func TestPayEndpoint(t *testing.T) {
	s, l := newTestDaemon(t, Config{Actor: "api"})
	app := s.App()
	ctx := context.Background()

	due, _ := period.ParseDate("2024-03-20")
	e, err := l.CreateExpense(ctx, ledger.ExpenseInput{
		Description: "Internet",
		Amount:      decimal.NewFromInt(120000),
		DueDate:     due,
		Category:    "Internet",
		Recurring:   true,
		Frequency:   model.FrequencyMonthly,
	})
	require.NoError(t, err)

	var out payView
	code := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/expenses/%d/pay", e.ID), &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", out.Expense.Status)
	assert.Equal(t, "api", out.Expense.PaidBy)
	require.NotNil(t, out.Successor)
	assert.Equal(t, "2024-04-20", out.Successor.DueDate)
	assert.False(t, out.AlreadyPaid)

	code = doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/expenses/%d/pay", e.ID), &out)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.AlreadyPaid)

	var errBody map[string]any
	assert.Equal(t, http.StatusNotFound, doJSON(t, app, http.MethodPost, "/v1/expenses/999/pay", &errBody))
	assert.Equal(t, "NOT_FOUND", errBody["code"])

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "books_expenses_paid_total 1")
}

func TestInstantiateAndBudgetsEndpoints(t *testing.T) {
	s, l := newTestDaemon(t, Config{})
	app := s.App()
	ctx := context.Background()

	_, err := l.CreateTemplate(ctx, ledger.TemplateInput{
		Category:   "Nómina",
		Tag:        "Planta",
		BaseAmount: decimal.NewFromInt(1000000),
		June:       decimal.NewNullDecimal(decimal.NewFromInt(1500000)),
	}, "tester")
	require.NoError(t, err)

	var inst instantiateView
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/v1/months/instantiate?month=2024-06", &inst))
	assert.Equal(t, 1, inst.Created)
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/v1/months/instantiate?month=2024-06", &inst))
	assert.Equal(t, 0, inst.Created)
	assert.Equal(t, 1, inst.Existing)

	var bv budgetsView
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/v1/budgets?month=2024-06", &bv))
	require.Len(t, bv.Budgets, 1)
	assert.Equal(t, "Prima", bv.Budgets[0].SpecialLabel)
	assert.True(t, bv.Budgets[0].Budgeted.Equal(decimal.NewFromInt(1500000)))
	assert.Equal(t, 1, bv.Summary.Count)

	var errBody map[string]any
	assert.Equal(t, http.StatusBadRequest, doJSON(t, app, http.MethodGet, "/v1/budgets?month=junio", &errBody))
	assert.Equal(t, "VALIDATION", errBody["code"])

	var ts []templateView
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/v1/templates", &ts))
	require.Len(t, ts, 1)
	assert.True(t, ts[0].June.Valid)
	assert.False(t, ts[0].February.Valid)
}

func TestTrendScanEndpoint(t *testing.T) {
	s, l := newTestDaemon(t, Config{})
	app := s.App()
	ctx := context.Background()

	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		p, err := period.ParseMonth(m)
		require.NoError(t, err)
		_, err = l.CreateBudget(ctx, ledger.BudgetInput{Period: p, Category: "Cafetería", Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
		_, err = l.CreateExpense(ctx, ledger.ExpenseInput{
			Description: "café " + m,
			Amount:      decimal.NewFromInt(130),
			DueDate:     p.Start().AddDate(0, 0, 4),
			Category:    "Cafetería",
		})
		require.NoError(t, err)
	}
	pending, err := l.ListPending(ctx, time.Time{})
	require.NoError(t, err)
	for _, e := range pending {
		_, err := l.PayExpense(ctx, e.ID, "tester", fixedNow)
		require.NoError(t, err)
	}

	var scan scanView
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/v1/trends/scan", &scan))
	require.Len(t, scan.Raised, 1)
	assert.Equal(t, "critical", scan.Raised[0].Severity)

	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/v1/trends/scan", &scan))
	assert.Empty(t, scan.Raised)

	var trends []trendView
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/v1/trends", &trends))
	require.Len(t, trends, 1)
	assert.True(t, trends[0].Active)
}

func TestEventsEndpointSince(t *testing.T) {
	s, _ := newTestDaemon(t, Config{})
	app := s.App()

	s.publishEvent(Event{ID: 1, Type: EventSnapshot})
	s.publishEvent(Event{ID: 2, Type: EventDashboardDelta})

	var events []Event
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/v1/events?since=1", &events))
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].ID)

	var errBody map[string]any
	assert.Equal(t, http.StatusBadRequest, doJSON(t, app, http.MethodGet, "/v1/events?since=x", &errBody))
	assert.True(t, strings.Contains(errBody["error"].(string), "since"))
}

func TestScheduleValidation(t *testing.T) {
	assert.NoError(t, ValidateSchedule(DefaultInstantiateSchedule))
	assert.Error(t, ValidateSchedule("every month"))

	_, err := newScheduler("61 * * * *", zap.NewNop(), func() {})
	assert.Error(t, err)

	sched, err := newScheduler("", zap.NewNop(), func() {})
	require.NoError(t, err)
	assert.Equal(t, DefaultInstantiateSchedule, sched.schedule)
	sched.Start()
	sched.Start()
	sched.Stop()
	sched.Stop()
}
