package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// budgetWithSpend creates a 100000 budget for key in m and pays spent against it.
func budgetWithSpend(t *testing.T, s *Service, key model.Key, m string, spent string) {
	t.Helper()
	_, err := s.CreateBudget(context.Background(), BudgetInput{
		Period: month(m), Category: key.Category, Tag: key.Tag, Amount: dec("100000"),
	})
	require.NoError(t, err)
	if spent != "0" {
		paidExpense(t, s, key.Category, key.Tag, m+"-10", spent)
	}
}

func TestScanTrendsRaisesOnceForThreeOverspentMonths(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	key := model.Key{Category: "Rent", Tag: "Office"}

	budgetWithSpend(t, s, key, "2024-01", "111000")
	budgetWithSpend(t, s, key, "2024-02", "120000")
	budgetWithSpend(t, s, key, "2024-03", "115000")

	res, err := s.ScanTrends(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, res.Raised, 1)

	a := res.Raised[0]
	assert.Equal(t, key, a.Key())
	assert.Equal(t, model.TrendOverspend, a.Type)
	assert.Equal(t, 3, a.ConsecutiveMonths)
	assert.InDelta(t, 115.333, a.AveragePercentUsed, 0.01)
	assert.InDelta(t, 15.333, a.ExcessPercent, 0.01)
	assert.Equal(t, model.SeverityWarning, a.Severity)

	again, err := s.ScanTrends(ctx, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, again.Raised)
	assert.Equal(t, 1, again.Suppressed)

	active, err := s.ListTrendAlerts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestScanTrendsNeedsEveryMonth(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	gap := model.Key{Category: "Gap", Tag: "x"}
	budgetWithSpend(t, s, gap, "2024-01", "150000")
	budgetWithSpend(t, s, gap, "2024-03", "150000")

	atLimit := model.Key{Category: "AtLimit", Tag: "x"}
	budgetWithSpend(t, s, atLimit, "2024-01", "150000")
	budgetWithSpend(t, s, atLimit, "2024-02", "110000")
	budgetWithSpend(t, s, atLimit, "2024-03", "150000")

	old := model.Key{Category: "Old", Tag: "x"}
	budgetWithSpend(t, s, old, "2023-12", "150000")
	budgetWithSpend(t, s, old, "2024-01", "150000")
	budgetWithSpend(t, s, old, "2024-02", "150000")

	res, err := s.ScanTrends(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Empty(t, res.Raised)
}

func TestScanTrendsCriticalSeverityAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	key := model.Key{Category: "Cafetería", Tag: "Oficina"}

	budgetWithSpend(t, s, key, "2024-01", "130000")
	budgetWithSpend(t, s, key, "2024-02", "125000")
	budgetWithSpend(t, s, key, "2024-03", "140000")

	res, err := s.ScanTrends(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, res.Raised, 1)
	assert.Equal(t, model.SeverityCritical, res.Raised[0].Severity)

	id := res.Raised[0].ID
	require.NoError(t, s.ResolveTrendAlert(ctx, id, fixedNow))
	require.NoError(t, s.ResolveTrendAlert(ctx, id, fixedNow.Add(time.Hour)), "resolving twice is a no-op")
	assert.True(t, apperr.IsNotFound(s.ResolveTrendAlert(ctx, 999, fixedNow)))

	all, err := s.ListTrendAlerts(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)
	require.NotNil(t, all[0].ResolvedAt)
	assert.True(t, fixedNow.Equal(*all[0].ResolvedAt))

	res, err = s.ScanTrends(ctx, fixedNow)
	require.NoError(t, err)
	assert.Len(t, res.Raised, 1, "a resolved key can be flagged again")
}

func TestEvaluateOverspend(t *testing.T) {
	key := model.Key{Category: "A"}
	mk := func(m, budgeted, spent string) model.Budget {
		return model.Budget{Period: month(m), Budgeted: dec(budgeted), Spent: dec(spent)}
	}

	_, ok := EvaluateOverspend(key, []model.Budget{mk("2024-03", "100", "200"), mk("2024-02", "100", "200")}, 3, 110)
	assert.False(t, ok, "two months are not enough")

	_, ok = EvaluateOverspend(key, []model.Budget{
		mk("2024-03", "100", "200"), mk("2024-02", "0", "200"), mk("2024-01", "100", "200"),
	}, 3, 110)
	assert.False(t, ok, "zero budget disqualifies")

	o, ok := EvaluateOverspend(key, []model.Budget{
		mk("2024-03", "100", "200"), mk("2024-02", "300", "400"), mk("2024-01", "200", "300"),
	}, 3, 110)
	require.True(t, ok)
	assert.True(t, o.AverageBudgeted.Equal(dec("200")))
	assert.True(t, o.AverageSpent.Equal(dec("300")))
	assert.InDelta(t, 150.0, o.AveragePercentUsed, 1e-9)
	assert.Equal(t, model.SeverityCritical, o.Severity())
	assert.Equal(t, []period.Month{month("2024-03"), month("2024-02"), month("2024-01")}, o.Months)
}
