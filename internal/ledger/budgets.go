package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

// BudgetInput describes a budget to create.
type BudgetInput struct {
	Period   period.Month
	Category string
	Tag      string
	Amount   decimal.Decimal
}

// BudgetView is a budget with its derived usage.
type BudgetView struct {
	model.Budget
	UsagePercent float64
	Level        model.UsageLevel
	// SpecialLabel names the seasonal payment when the budget came from a
	// template override.
	SpecialLabel string
}

// Summary totals the budgets of one period.
type Summary struct {
	Period       period.Month
	Budgeted     decimal.Decimal
	Spent        decimal.Decimal
	Remaining    decimal.Decimal
	UsagePercent float64
	Count        int
	OK           int
	Near         int
	Exceeded     int
}

// recompute re-aggregates the paid spend for (key, m) inside tx and writes it
// to the matching budget row, if any.
func (s *Service) recompute(ctx context.Context, tx *store.Tx, key model.Key, m period.Month) (decimal.Decimal, error) {
	spent, err := tx.SumPaid(ctx, key, m.Start(), m.End())
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := tx.SetBudgetSpent(ctx, key, m, spent); err != nil {
		return decimal.Zero, err
	}
	return spent, nil
}

// RecomputeSpent refreshes the cached spend of the budget for (key, m) from
// the paid expenses due in that month. It is idempotent.
func (s *Service) RecomputeSpent(ctx context.Context, key model.Key, m period.Month) (decimal.Decimal, error) {
	var spent decimal.Decimal
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		spent, err = s.recompute(ctx, tx, key, m)
		return err
	})
	if err != nil {
		s.logFailure("recompute spent", err, zap.String("key", key.String()), zap.String("period", m.String()))
		return decimal.Zero, err
	}
	s.metrics.Recomputed(1)
	return spent, nil
}

// RecomputeExpense refreshes the period an expense contributes to.
func (s *Service) RecomputeExpense(ctx context.Context, e model.Expense) error {
	_, err := s.RecomputeSpent(ctx, model.Key{Category: e.Category, Tag: e.Tag}, period.Of(e.DueDate))
	return err
}

// RecomputeAll refreshes every budget row and returns how many were refreshed.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	var n int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		budgets, err := tx.ListBudgets(ctx, period.Month{})
		if err != nil {
			return err
		}
		for _, b := range budgets {
			if _, err := s.recompute(ctx, tx, b.Key(), b.Period); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		s.logFailure("recompute all", err)
		return 0, err
	}
	s.metrics.Recomputed(n)
	s.log.Info("budgets recomputed", zap.Int("count", n))
	return n, nil
}

// CreateBudget inserts a budget and immediately computes its spend. A second
// budget for the same month and key fails with a duplicate error; the store's
// unique constraint decides, so concurrent callers cannot both succeed.
func (s *Service) CreateBudget(ctx context.Context, in BudgetInput) (model.Budget, error) {
	b, err := s.newBudget(in)
	if err != nil {
		s.logFailure("create budget", err)
		return model.Budget{}, err
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.InsertBudget(ctx, &b); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Duplicate("budget %s for %s already exists", b.Key(), b.Period)
			}
			return err
		}
		spent, err := s.recompute(ctx, tx, b.Key(), b.Period)
		b.Spent = spent
		return err
	})
	if err != nil {
		s.logFailure("create budget", err, zap.String("key", b.Key().String()), zap.String("period", b.Period.String()))
		return model.Budget{}, err
	}
	s.log.Info("budget created", zap.Int64("budget_id", b.ID), zap.String("key", b.Key().String()),
		zap.String("period", b.Period.String()))
	return b, nil
}

func (s *Service) newBudget(in BudgetInput) (model.Budget, error) {
	if _, err := period.New(int(in.Period.Month), in.Period.Year); err != nil {
		return model.Budget{}, apperr.Validation("invalid period: %v", err)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return model.Budget{}, apperr.Validation("category is required")
	}
	if in.Amount.IsNegative() {
		return model.Budget{}, apperr.Validation("budgeted amount must not be negative, got %s", in.Amount)
	}
	return model.Budget{
		Period:    in.Period,
		Category:  category,
		Tag:       strings.TrimSpace(in.Tag),
		Budgeted:  in.Amount,
		Spent:     decimal.Zero,
		CreatedAt: s.now(),
	}, nil
}

// EditBudget changes the budgeted amount. Only budgets of the current
// calendar month may change; older ones are a historical record.
func (s *Service) EditBudget(ctx context.Context, id int64, amount decimal.Decimal) (model.Budget, error) {
	current := period.Of(s.now())
	var out model.Budget
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		b, err := tx.GetBudget(ctx, id)
		if err != nil {
			return notFound(err, "budget", id)
		}
		if !b.Period.Equal(current) {
			return apperr.Policy("HISTORICAL_BUDGET",
				"budget %d belongs to %s; only budgets of %s can be edited", id, b.Period, current)
		}
		if amount.IsNegative() {
			return apperr.Validation("budgeted amount must not be negative, got %s", amount)
		}
		if err := tx.UpdateBudgetAmount(ctx, id, amount); err != nil {
			return notFound(err, "budget", id)
		}
		b.Budgeted = amount
		out = b
		return nil
	})
	if err != nil {
		s.logFailure("edit budget", err, zap.Int64("budget_id", id))
		return model.Budget{}, err
	}
	return out, nil
}

// DeleteBudget removes a budget. When spend is already recorded against it,
// token must pass the authorizer.
func (s *Service) DeleteBudget(ctx context.Context, id int64, token string) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		b, err := tx.GetBudget(ctx, id)
		if err != nil {
			return notFound(err, "budget", id)
		}
		if b.Spent.IsPositive() && !s.auth.AuthorizeDestructiveAction(token) {
			return apperr.Policy("AUTHORIZATION_REQUIRED",
				"budget %d has %s spent; deleting it requires authorization", id, b.Spent)
		}
		return notFound(tx.DeleteBudget(ctx, id), "budget", id)
	})
	if err != nil {
		s.logFailure("delete budget", err, zap.Int64("budget_id", id))
		return err
	}
	s.log.Info("budget deleted", zap.Int64("budget_id", id))
	return nil
}

// GetBudget loads one budget.
func (s *Service) GetBudget(ctx context.Context, id int64) (model.Budget, error) {
	var b model.Budget
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		b, err = tx.GetBudget(ctx, id)
		return notFound(err, "budget", id)
	})
	return b, err
}

// ListBudgets returns the budgets of m with their usage. A zero m lists every
// period.
func (s *Service) ListBudgets(ctx context.Context, m period.Month) ([]BudgetView, error) {
	var out []BudgetView
	err := s.store.View(ctx, func(tx *store.Tx) error {
		budgets, err := tx.ListBudgets(ctx, m)
		if err != nil {
			return err
		}
		templates, err := tx.ListTemplates(ctx, false)
		if err != nil {
			return err
		}
		byID := make(map[int64]model.Template, len(templates))
		for _, t := range templates {
			byID[t.ID] = t
		}

		out = make([]BudgetView, 0, len(budgets))
		for _, b := range budgets {
			v := BudgetView{Budget: b, UsagePercent: b.UsagePercent(), Level: b.Level()}
			if b.TemplateID != nil {
				if t, ok := byID[*b.TemplateID]; ok {
					v.SpecialLabel = t.SpecialMonthLabel(b.Period.Month)
				}
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// BudgetSummary totals the budgets of m.
func (s *Service) BudgetSummary(ctx context.Context, m period.Month) (Summary, error) {
	views, err := s.ListBudgets(ctx, m)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(m, views), nil
}

// Summarize totals views for m.
func Summarize(m period.Month, views []BudgetView) Summary {
	sum := Summary{Period: m, Budgeted: decimal.Zero, Spent: decimal.Zero}
	for _, v := range views {
		sum.Count++
		sum.Budgeted = sum.Budgeted.Add(v.Budgeted)
		sum.Spent = sum.Spent.Add(v.Spent)
		switch v.Level {
		case model.UsageOK:
			sum.OK++
		case model.UsageNear:
			sum.Near++
		case model.UsageExceeded:
			sum.Exceeded++
		}
	}
	sum.Remaining = sum.Budgeted.Sub(sum.Spent)
	sum.UsagePercent = model.UsagePercent(sum.Spent, sum.Budgeted)
	return sum
}
