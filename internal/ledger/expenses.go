package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

// DiscountInput describes an early-payment discount.
type DiscountInput struct {
	Deadline time.Time
	Percent  decimal.Decimal
}

// ExpenseInput carries the user-editable fields of an expense.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Category    string
	Tag         string
	Notes       string
	Discount    *DiscountInput
	Recurring   bool
	Frequency   model.Frequency
}

// PayResult describes the outcome of PayExpense.
type PayResult struct {
	Expense model.Expense
	// Successor is the next occurrence inserted for a recurring expense.
	Successor *model.Expense
	// AlreadyPaid is set when the call found the expense paid and did nothing.
	AlreadyPaid bool
}

// apply validates in and copies it onto e. The discount amount is derived
// here and nowhere else.
func (in ExpenseInput) apply(e *model.Expense) error {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return apperr.Validation("description is required")
	}
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero, got %s", in.Amount)
	}
	if in.DueDate.IsZero() {
		return apperr.Validation("due date is required")
	}
	due := period.Date(in.DueDate)

	var discount *model.Discount
	if in.Discount != nil {
		if in.Discount.Deadline.IsZero() {
			return apperr.Validation("discount deadline is required")
		}
		deadline := period.Date(in.Discount.Deadline)
		if deadline.After(due) {
			return apperr.Validation("discount deadline %s is after due date %s",
				period.FormatDate(deadline), period.FormatDate(due))
		}
		pct := in.Discount.Percent
		if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return apperr.Validation("discount percent must be in (0, 100], got %s", pct)
		}
		discount = &model.Discount{
			Deadline: deadline,
			Percent:  pct,
			Amount:   model.DiscountAmount(in.Amount, pct),
		}
	}

	freq := in.Frequency
	if in.Recurring && freq == model.FrequencyNone {
		return apperr.Validation("recurring expenses need a frequency")
	}
	if !in.Recurring {
		freq = model.FrequencyNone
	}

	e.Description = desc
	e.Amount = in.Amount
	e.DueDate = due
	e.Category = strings.TrimSpace(in.Category)
	e.Tag = strings.TrimSpace(in.Tag)
	e.Notes = in.Notes
	e.Discount = discount
	e.Recurring = in.Recurring
	e.Frequency = freq
	return nil
}

// CreateExpense validates and inserts a pending expense.
func (s *Service) CreateExpense(ctx context.Context, in ExpenseInput) (model.Expense, error) {
	e := model.Expense{
		Status:    model.StatusPending,
		SeriesID:  uuid.NewString(),
		CreatedAt: s.now(),
	}
	if err := in.apply(&e); err != nil {
		s.logFailure("create expense", err)
		return model.Expense{}, err
	}

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		return tx.InsertExpense(ctx, &e)
	})
	if err != nil {
		s.logFailure("create expense", err)
		return model.Expense{}, err
	}
	s.log.Debug("expense created", zap.Int64("expense_id", e.ID), zap.String("due", period.FormatDate(e.DueDate)))
	return e, nil
}

// PayExpense moves a pending expense to paid, refreshes the spend of its
// budget period and, when recurring, inserts the next occurrence. All of it
// commits together. Paying an already paid expense changes nothing.
func (s *Service) PayExpense(ctx context.Context, id int64, paidBy string, now time.Time) (PayResult, error) {
	paidBy = strings.TrimSpace(paidBy)
	if paidBy == "" {
		paidBy = "system"
	}

	var res PayResult
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		e, err := tx.GetExpense(ctx, id)
		if err != nil {
			return notFound(err, "expense", id)
		}
		if !e.Status.CanTransitionTo(model.StatusPaid) {
			res = PayResult{Expense: e, AlreadyPaid: true}
			return nil
		}

		paidAt := now
		e.Status = model.StatusPaid
		e.PaidAt = &paidAt
		e.PaidBy = paidBy
		if e.SeriesID == "" {
			e.SeriesID = uuid.NewString()
		}
		if err := tx.UpdateExpense(ctx, e); err != nil {
			return err
		}
		if _, err := s.recompute(ctx, tx, model.Key{Category: e.Category, Tag: e.Tag}, period.Of(e.DueDate)); err != nil {
			return err
		}
		res.Expense = e

		if next, ok := NextOccurrence(e, now); ok {
			if err := tx.InsertExpense(ctx, &next); err != nil {
				return err
			}
			res.Successor = &next
		}
		return nil
	})
	if err != nil {
		s.logFailure("pay expense", err, zap.Int64("expense_id", id))
		return PayResult{}, err
	}

	if res.AlreadyPaid {
		s.log.Debug("expense already paid", zap.Int64("expense_id", id))
		return res, nil
	}
	s.metrics.ExpensePaid(res.Successor != nil)
	fields := []zap.Field{zap.Int64("expense_id", id), zap.String("paid_by", paidBy)}
	if res.Successor != nil {
		fields = append(fields, zap.Int64("successor_id", res.Successor.ID),
			zap.String("successor_due", period.FormatDate(res.Successor.DueDate)))
	}
	s.log.Info("expense paid", fields...)
	return res, nil
}

// EditExpense replaces the editable fields of an expense and re-derives its
// discount amount. Payment state, series and creation time are kept. Cached
// budget spend is not touched; callers recompute the affected periods.
func (s *Service) EditExpense(ctx context.Context, id int64, in ExpenseInput) (model.Expense, error) {
	var out model.Expense
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		e, err := tx.GetExpense(ctx, id)
		if err != nil {
			return notFound(err, "expense", id)
		}
		if err := in.apply(&e); err != nil {
			return err
		}
		if err := tx.UpdateExpense(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		s.logFailure("edit expense", err, zap.Int64("expense_id", id))
		return model.Expense{}, err
	}
	return out, nil
}

// DeleteExpense removes an expense and returns the deleted row so the caller
// can recompute its period when it was paid.
func (s *Service) DeleteExpense(ctx context.Context, id int64) (model.Expense, error) {
	var deleted model.Expense
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		e, err := tx.GetExpense(ctx, id)
		if err != nil {
			return notFound(err, "expense", id)
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return notFound(err, "expense", id)
		}
		deleted = e
		return nil
	})
	if err != nil {
		s.logFailure("delete expense", err, zap.Int64("expense_id", id))
		return model.Expense{}, err
	}
	s.log.Info("expense deleted", zap.Int64("expense_id", id))
	return deleted, nil
}

// GetExpense loads one expense.
func (s *Service) GetExpense(ctx context.Context, id int64) (model.Expense, error) {
	var e model.Expense
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.GetExpense(ctx, id)
		return notFound(err, "expense", id)
	})
	return e, err
}

// ListExpenses returns expenses matching f.
func (s *Service) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]model.Expense, error) {
	var out []model.Expense
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListExpenses(ctx, f)
		return err
	})
	return out, err
}

// ListPending returns pending expenses due on or before asOf. A zero asOf
// returns every pending expense.
func (s *Service) ListPending(ctx context.Context, asOf time.Time) ([]model.Expense, error) {
	pending := model.StatusPending
	f := store.ExpenseFilter{Status: &pending}
	if !asOf.IsZero() {
		f.To = period.Date(asOf).AddDate(0, 0, 1)
	}
	return s.ListExpenses(ctx, f)
}

// ListByPeriod returns every expense due in m.
func (s *Service) ListByPeriod(ctx context.Context, m period.Month) ([]model.Expense, error) {
	return s.ListExpenses(ctx, store.ExpenseFilter{From: m.Start(), To: m.End()})
}

// ListSeries returns every occurrence of a recurrence chain in due order.
func (s *Service) ListSeries(ctx context.Context, seriesID string) ([]model.Expense, error) {
	if strings.TrimSpace(seriesID) == "" {
		return nil, apperr.Validation("series id is required")
	}
	return s.ListExpenses(ctx, store.ExpenseFilter{SeriesID: seriesID})
}
