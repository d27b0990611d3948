package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/store"
)

func TestDashboardBucketsWithinHorizon(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, WithHorizonDays(10))

	for _, due := range []string{"2024-03-01", "2024-03-14", "2024-03-15", "2024-03-18", "2024-03-22", "2024-03-25", "2024-04-30"} {
		_, err := s.CreateExpense(ctx, ExpenseInput{Description: due, Amount: dec("10"), DueDate: date(due)})
		require.NoError(t, err)
	}
	paidExpense(t, s, "Otros", "", "2024-03-13", "10")

	d, err := s.Dashboard(ctx, fixedNow)
	require.NoError(t, err)
	assert.True(t, d.Enabled)
	assert.Equal(t, 10, d.HorizonDays)
	assert.Len(t, d.Items, 6, "the 2024-04-30 expense is beyond the horizon")
	assert.Equal(t, 2, d.Count(model.UrgencyOverdue))
	assert.Equal(t, 1, d.Count(model.UrgencyDueToday))
	assert.Equal(t, 1, d.Count(model.UrgencyCritical))
	assert.Equal(t, 1, d.Count(model.UrgencyImportant))
	assert.Equal(t, 1, d.Count(model.UrgencyNormal))
}

func TestDashboardReadsThresholdSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreateExpense(ctx, ExpenseInput{Description: "x", Amount: dec("10"), DueDate: date("2024-03-20")})
	require.NoError(t, err)

	d, err := s.Dashboard(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count(model.UrgencyImportant))

	require.NoError(t, s.SetSetting(ctx, store.SettingCriticalDays, "5"))
	d, err = s.Dashboard(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count(model.UrgencyCritical))
}

func TestSetSettingValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	assert.True(t, apperr.IsValidation(s.SetSetting(ctx, store.SettingCriticalDays, "-1")))
	assert.True(t, apperr.IsValidation(s.SetSetting(ctx, store.SettingCriticalDays, "abc")))
	assert.True(t, apperr.IsValidation(s.SetSetting(ctx, store.SettingCriticalDays, "8")), "critical above anticipated")
	assert.True(t, apperr.IsValidation(s.SetSetting(ctx, store.SettingAlertsEnabled, "yes")))
	require.NoError(t, s.SetSetting(ctx, store.SettingAlertsEnabled, "0"))

	_, enabled, err := s.Thresholds(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	cats, err := s.Categories(ctx, true)
	require.NoError(t, err)
	n := len(cats)
	require.NotZero(t, n)

	c, err := s.AddCategory(ctx, "Papelería", "Útiles de oficina", "")
	require.NoError(t, err)
	assert.Equal(t, n+1, c.SortOrder)

	_, err = s.AddCategory(ctx, "Papelería", "", "")
	assert.True(t, apperr.IsDuplicate(err))

	require.NoError(t, s.SetCategoryActive(ctx, "Papelería", false))
	cats, err = s.Categories(ctx, true)
	require.NoError(t, err)
	assert.Len(t, cats, n)

	assert.True(t, apperr.IsNotFound(s.SetCategoryActive(ctx, "Nada", true)))
}
