// Package model defines the bookkeeping entities shared by the store and the ledger.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus is the payment state of an expense.
type ExpenseStatus int

const (
	StatusPending ExpenseStatus = iota
	StatusPaid
)

func (s ExpenseStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// CanTransitionTo reports whether s may move to next. The only legal
// transition is Pending -> Paid.
func (s ExpenseStatus) CanTransitionTo(next ExpenseStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusPaid
	case StatusPaid:
		return false
	}
	return false
}

// ParseExpenseStatus parses "pending" / "paid".
func ParseExpenseStatus(s string) (ExpenseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "paid":
		return StatusPaid, nil
	}
	return 0, fmt.Errorf("unknown expense status %q", s)
}

// Frequency is the recurrence period of a recurring expense.
type Frequency int

const (
	FrequencyNone Frequency = iota
	FrequencyMonthly
	FrequencyQuarterly
	FrequencySemiannual
	FrequencyAnnual
)

// MonthOffset returns how many months separate two occurrences.
func (f Frequency) MonthOffset() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiannual:
		return 6
	case FrequencyAnnual:
		return 12
	case FrequencyNone:
		return 0
	}
	return 0
}

func (f Frequency) String() string {
	switch f {
	case FrequencyNone:
		return ""
	case FrequencyMonthly:
		return "monthly"
	case FrequencyQuarterly:
		return "quarterly"
	case FrequencySemiannual:
		return "semiannual"
	case FrequencyAnnual:
		return "annual"
	}
	return fmt.Sprintf("frequency(%d)", int(f))
}

// ParseFrequency parses a frequency name. The empty string is FrequencyNone.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FrequencyNone, nil
	case "monthly", "mensual":
		return FrequencyMonthly, nil
	case "quarterly", "trimestral":
		return FrequencyQuarterly, nil
	case "semiannual", "semestral":
		return FrequencySemiannual, nil
	case "annual", "yearly", "anual":
		return FrequencyAnnual, nil
	}
	return FrequencyNone, fmt.Errorf("unknown frequency %q", s)
}

// Discount is an early-payment discount attached to an expense.
type Discount struct {
	Deadline time.Time
	Percent  decimal.Decimal
	// Amount is fixed when the expense is created or edited.
	Amount decimal.Decimal
}

// Expense is one scheduled or historical outflow.
type Expense struct {
	ID          int64
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Category    string
	Tag         string
	Status      ExpenseStatus
	Notes       string

	Discount *Discount

	Recurring bool
	Frequency Frequency
	// SeriesID links a recurring expense to all of its successors.
	SeriesID string

	PaidBy string
	PaidAt *time.Time

	CreatedAt time.Time
}

// HasDiscount reports whether the expense carries discount metadata.
func (e Expense) HasDiscount() bool {
	return e.Discount != nil
}

// IsPaid reports whether the expense has been paid.
func (e Expense) IsPaid() bool {
	return e.Status == StatusPaid
}

// DiscountAmount computes amount * percent / 100, rounded to cents.
func DiscountAmount(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}
