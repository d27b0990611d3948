// Package alerts buckets pending expenses into urgency tiers and flags
// early-payment discounts that are about to expire.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// DiscountWindowDays is how close a discount deadline must be to warn.
const DiscountWindowDays = 3

// Thresholds are the day counts separating the urgency tiers.
type Thresholds struct {
	AnticipatedDays int
	CriticalDays    int
}

// DefaultThresholds match the seeded settings.
var DefaultThresholds = Thresholds{AnticipatedDays: 7, CriticalDays: 3}

// Validate checks that both thresholds are non-negative and ordered.
func (t Thresholds) Validate() error {
	if t.CriticalDays < 0 || t.AnticipatedDays < 0 {
		return fmt.Errorf("thresholds must be non-negative (critical=%d, anticipated=%d)", t.CriticalDays, t.AnticipatedDays)
	}
	if t.CriticalDays > t.AnticipatedDays {
		return fmt.Errorf("critical days (%d) exceed anticipated days (%d)", t.CriticalDays, t.AnticipatedDays)
	}
	return nil
}

// Item is one classified pending expense.
type Item struct {
	Expense       model.Expense
	DaysRemaining int
	Urgency       model.Urgency
}

// DiscountNotice reports a discount that is about to expire or already lost.
type DiscountNotice struct {
	Expense  model.Expense
	DaysLeft int
	Amount   decimal.Decimal
}

// Report is the classifier output. It is recomputed on every call.
type Report struct {
	Today      time.Time
	Thresholds Thresholds
	Items      []Item
	Buckets    map[model.Urgency][]Item

	ExpiringDiscounts  []DiscountNotice
	ForfeitedDiscounts []DiscountNotice

	TotalPending decimal.Decimal
	AtRisk       decimal.Decimal
	Lost         decimal.Decimal
}

// Count returns the number of items in tier u.
func (r Report) Count(u model.Urgency) int {
	return len(r.Buckets[u])
}

// UrgencyFor buckets an expense by the signed number of days until it is due.
func UrgencyFor(daysRemaining int, t Thresholds) model.Urgency {
	switch {
	case daysRemaining < 0:
		return model.UrgencyOverdue
	case daysRemaining == 0:
		return model.UrgencyDueToday
	case daysRemaining <= t.CriticalDays:
		return model.UrgencyCritical
	case daysRemaining <= t.AnticipatedDays:
		return model.UrgencyImportant
	default:
		return model.UrgencyNormal
	}
}

// Classify buckets the pending expenses relative to now's calendar date.
// Paid expenses in the input are ignored.
func Classify(now time.Time, expenses []model.Expense, t Thresholds) Report {
	today := period.Date(now)
	r := Report{
		Today:        today,
		Thresholds:   t,
		Buckets:      make(map[model.Urgency][]Item, len(model.Urgencies)),
		TotalPending: decimal.Zero,
		AtRisk:       decimal.Zero,
		Lost:         decimal.Zero,
	}

	for _, e := range expenses {
		if e.Status != model.StatusPending {
			continue
		}
		days := period.DaysBetween(today, e.DueDate)
		it := Item{Expense: e, DaysRemaining: days, Urgency: UrgencyFor(days, t)}
		r.Items = append(r.Items, it)
		r.TotalPending = r.TotalPending.Add(e.Amount)

		if e.Discount == nil {
			continue
		}
		left := period.DaysBetween(today, e.Discount.Deadline)
		n := DiscountNotice{Expense: e, DaysLeft: left, Amount: e.Discount.Amount}
		switch {
		case left < 0:
			r.ForfeitedDiscounts = append(r.ForfeitedDiscounts, n)
			r.Lost = r.Lost.Add(n.Amount)
		case left <= DiscountWindowDays:
			r.ExpiringDiscounts = append(r.ExpiringDiscounts, n)
			r.AtRisk = r.AtRisk.Add(n.Amount)
		}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		if r.Items[i].DaysRemaining != r.Items[j].DaysRemaining {
			return r.Items[i].DaysRemaining < r.Items[j].DaysRemaining
		}
		return r.Items[i].Expense.ID < r.Items[j].Expense.ID
	})
	for _, it := range r.Items {
		r.Buckets[it.Urgency] = append(r.Buckets[it.Urgency], it)
	}
	sort.SliceStable(r.ExpiringDiscounts, func(i, j int) bool {
		return r.ExpiringDiscounts[i].DaysLeft < r.ExpiringDiscounts[j].DaysLeft
	})
	return r
}
