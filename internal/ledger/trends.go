package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

// criticalExcessPercent separates warning from critical trend alerts.
const criticalExcessPercent = 25

// ScanResult reports what a trend scan did.
type ScanResult struct {
	Checked    int
	Raised     []model.TrendAlert
	Suppressed int
}

// Overspend is the evaluation of one key over the scan window.
type Overspend struct {
	Key                model.Key
	Months             []period.Month
	AverageBudgeted    decimal.Decimal
	AverageSpent       decimal.Decimal
	AveragePercentUsed float64
	ExcessPercent      float64
}

// Severity grades the overspend by its excess.
func (o Overspend) Severity() model.Severity {
	if o.ExcessPercent < criticalExcessPercent {
		return model.SeverityWarning
	}
	return model.SeverityCritical
}

// EvaluateOverspend checks whether every budget in window exceeds threshold.
// window must hold one budget per month; a missing month or a non-positive
// budget disqualifies the key.
func EvaluateOverspend(key model.Key, window []model.Budget, months int, threshold float64) (Overspend, bool) {
	if months <= 0 || len(window) != months {
		return Overspend{}, false
	}
	o := Overspend{Key: key}
	budgeted, spent := decimal.Zero, decimal.Zero
	for _, b := range window {
		if !b.Budgeted.IsPositive() || b.UsagePercent() <= threshold {
			return Overspend{}, false
		}
		o.Months = append(o.Months, b.Period)
		budgeted = budgeted.Add(b.Budgeted)
		spent = spent.Add(b.Spent)
	}
	n := decimal.NewFromInt(int64(months))
	o.AverageBudgeted = budgeted.Div(n)
	o.AverageSpent = spent.Div(n)
	o.AveragePercentUsed = model.UsagePercent(spent, budgeted)
	o.ExcessPercent = o.AveragePercentUsed - 100
	return o, true
}

// ScanTrends looks at the most recent months ending at now for every key that
// has a positive budget, and raises an overspend alert when all of them
// exceed the threshold. A key with an active alert is left alone.
func (s *Service) ScanTrends(ctx context.Context, now time.Time) (ScanResult, error) {
	var res ScanResult
	window := period.Of(now).Recent(s.trends.Months)

	var candidates []Overspend
	err := s.store.View(ctx, func(tx *store.Tx) error {
		keys, err := tx.ListBudgetKeys(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			res.Checked++
			budgets := make([]model.Budget, 0, len(window))
			for _, m := range window {
				b, err := tx.GetBudgetByKey(ctx, key, m)
				if errors.Is(err, store.ErrNotFound) {
					break
				}
				if err != nil {
					return err
				}
				budgets = append(budgets, b)
			}
			if o, ok := EvaluateOverspend(key, budgets, s.trends.Months, s.trends.ThresholdPercent); ok {
				candidates = append(candidates, o)
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("scan trends", err)
		return ScanResult{}, err
	}

	for _, o := range candidates {
		alert := model.TrendAlert{
			Category:           o.Key.Category,
			Tag:                o.Key.Tag,
			Type:               model.TrendOverspend,
			Severity:           o.Severity(),
			ConsecutiveMonths:  len(o.Months),
			AveragePercentUsed: o.AveragePercentUsed,
			ExcessPercent:      o.ExcessPercent,
			DetectedAt:         now,
			Message: fmt.Sprintf("%s exceeded its budget %d months in a row: %.1f%% used on average (%.1f%% over)",
				o.Key, len(o.Months), o.AveragePercentUsed, o.ExcessPercent),
		}

		raised := false
		err := s.store.Update(ctx, func(tx *store.Tx) error {
			active, err := tx.HasActiveTrendAlert(ctx, o.Key)
			if err != nil || active {
				return err
			}
			if err := tx.InsertTrendAlert(ctx, &alert); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return nil
				}
				return err
			}
			raised = true
			return nil
		})
		if err != nil {
			s.logFailure("raise trend alert", err, zap.String("key", o.Key.String()))
			return res, err
		}
		if !raised {
			res.Suppressed++
			continue
		}
		res.Raised = append(res.Raised, alert)
		s.metrics.TrendAlertRaised(alert.Severity)
		s.log.Info("trend alert raised", zap.String("key", o.Key.String()),
			zap.String("severity", string(alert.Severity)), zap.Float64("excess_percent", alert.ExcessPercent))
	}
	return res, nil
}

// ListTrendAlerts returns alerts newest first.
func (s *Service) ListTrendAlerts(ctx context.Context, activeOnly bool) ([]model.TrendAlert, error) {
	var out []model.TrendAlert
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListTrendAlerts(ctx, activeOnly)
		return err
	})
	return out, err
}

// ResolveTrendAlert clears an alert so the key can be flagged again.
// Resolving a resolved alert does nothing.
func (s *Service) ResolveTrendAlert(ctx context.Context, id int64, now time.Time) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		return notFound(tx.ResolveTrendAlert(ctx, id, now), "trend alert", id)
	})
	if err != nil {
		s.logFailure("resolve trend alert", err, zap.Int64("alert_id", id))
		return err
	}
	s.log.Info("trend alert resolved", zap.Int64("alert_id", id))
	return nil
}
