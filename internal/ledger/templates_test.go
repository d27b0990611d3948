package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
)

func TestResolveAmountOverridesReplaceBase(t *testing.T) {
	tpl := model.Template{
		BaseAmount: dec("5000000"),
		February:   decimal.NewNullDecimal(dec("6000000")),
		June:       decimal.NewNullDecimal(dec("0")),
	}
	assert.True(t, ResolveAmount(tpl, month("2024-01")).Equal(dec("5000000")))
	assert.True(t, ResolveAmount(tpl, month("2024-02")).Equal(dec("6000000")))
	assert.True(t, ResolveAmount(tpl, month("2024-06")).IsZero(), "zero override still replaces")
	assert.True(t, ResolveAmount(tpl, month("2024-12")).Equal(dec("5000000")))
}

func TestInstantiateMonthIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreateTemplate(ctx, TemplateInput{
		Category:   "Nómina",
		Tag:        "Planta",
		BaseAmount: dec("5000000"),
		June:       decimal.NewNullDecimal(dec("9500000")),
	}, "ana")
	require.NoError(t, err)
	_, err = s.CreateTemplate(ctx, TemplateInput{Category: "Arriendo", Tag: "Sede", BaseAmount: dec("2000000")}, "ana")
	require.NoError(t, err)
	paused, err := s.CreateTemplate(ctx, TemplateInput{Category: "Otros", BaseAmount: dec("1")}, "ana")
	require.NoError(t, err)
	_, err = s.SetTemplateActive(ctx, paused.ID, false, "ana")
	require.NoError(t, err)

	// paid before the budget exists
	paidExpense(t, s, "Arriendo", "Sede", "2024-06-01", "2000000")

	first, err := s.InstantiateMonth(ctx, month("2024-06"))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Existing)
	assert.Equal(t, 0, first.Errors)

	second, err := s.InstantiateMonth(ctx, month("2024-06"))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Existing)

	views, err := s.ListBudgets(ctx, month("2024-06"))
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.True(t, v.CreatedAutomatically)
		require.NotNil(t, v.TemplateID)
		switch v.Category {
		case "Nómina":
			assert.True(t, v.Budgeted.Equal(dec("9500000")))
			assert.Equal(t, "Prima", v.SpecialLabel)
		case "Arriendo":
			assert.True(t, v.Spent.Equal(dec("2000000")), "spent computed at instantiation")
			assert.Equal(t, model.UsageNear, v.Level)
		}
	}

	runs, err := s.InstantiationLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Existing)
}

func TestEditTemplateDoesNotTouchInstantiatedBudgets(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	tpl, err := s.CreateTemplate(ctx, TemplateInput{Category: "Internet", Tag: "Fibra", BaseAmount: dec("100")}, "ana")
	require.NoError(t, err)
	_, err = s.InstantiateMonth(ctx, month("2024-03"))
	require.NoError(t, err)

	_, err = s.EditTemplate(ctx, tpl.ID, TemplateInput{Category: "Internet", Tag: "Fibra", BaseAmount: dec("300")}, "luis")
	require.NoError(t, err)

	views, err := s.ListBudgets(ctx, month("2024-03"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Budgeted.Equal(dec("100")))

	_, err = s.InstantiateMonth(ctx, month("2024-04"))
	require.NoError(t, err)
	views, err = s.ListBudgets(ctx, month("2024-04"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Budgeted.Equal(dec("300")))
}

func TestTemplateDuplicateAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	tpl, err := s.CreateTemplate(ctx, TemplateInput{Category: "Servicios", Tag: "Luz", BaseAmount: dec("80000")}, "ana")
	require.NoError(t, err)
	_, err = s.CreateTemplate(ctx, TemplateInput{Category: "Servicios", Tag: "Luz", BaseAmount: dec("1")}, "ana")
	assert.True(t, apperr.IsDuplicate(err))

	_, err = s.CreateTemplate(ctx, TemplateInput{Category: "Servicios", Tag: "Agua", BaseAmount: dec("-1")}, "ana")
	assert.True(t, apperr.IsValidation(err))

	_, err = s.SetTemplateActive(ctx, tpl.ID, false, "ana")
	require.NoError(t, err)
	_, err = s.SetTemplateActive(ctx, tpl.ID, false, "ana")
	require.NoError(t, err)
	_, err = s.SetTemplateActive(ctx, tpl.ID, true, "ana")
	require.NoError(t, err)
	require.NoError(t, s.DeleteTemplate(ctx, tpl.ID, "ana"))

	hist, err := s.TemplateHistory(ctx, tpl.ID)
	require.NoError(t, err)
	actions := make([]model.TemplateAction, 0, len(hist))
	for _, h := range hist {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []model.TemplateAction{
		model.TemplateCreated, model.TemplatePaused, model.TemplateResumed, model.TemplateDeleted,
	}, actions)
	assert.Contains(t, hist[0].NewValues, `"base_amount":"80000"`)

	_, err = s.GetTemplate(ctx, tpl.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteTemplateKeepsBudgets(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	tpl, err := s.CreateTemplate(ctx, TemplateInput{Category: "Impuestos", BaseAmount: dec("10")}, "ana")
	require.NoError(t, err)
	_, err = s.InstantiateMonth(ctx, month("2024-03"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteTemplate(ctx, tpl.ID, "ana"))

	views, err := s.ListBudgets(ctx, month("2024-03"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].TemplateID)
	assert.True(t, views[0].Budgeted.Equal(dec("10")))
}
