package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/period"
)

// UsageLevel classifies how much of a budget has been consumed.
type UsageLevel int

const (
	UsageOK UsageLevel = iota
	UsageNear
	UsageExceeded
)

func (l UsageLevel) String() string {
	switch l {
	case UsageOK:
		return "ok"
	case UsageNear:
		return "near"
	case UsageExceeded:
		return "exceeded"
	}
	return fmt.Sprintf("usage(%d)", int(l))
}

// Budget is the monthly spending cap for one (category, tag).
type Budget struct {
	ID       int64
	Period   period.Month
	Category string
	Tag      string
	Budgeted decimal.Decimal
	// Spent is a cache of the Paid expenses in the period; refreshed by recompute.
	Spent decimal.Decimal

	TemplateID           *int64
	CreatedAutomatically bool
	CreatedAt            time.Time
}

// Key returns the budget's (category, tag) pair.
func (b Budget) Key() Key {
	return Key{Category: b.Category, Tag: b.Tag}
}

// UsagePercent returns Spent / Budgeted * 100, or 0 when nothing is budgeted.
func (b Budget) UsagePercent() float64 {
	return UsagePercent(b.Spent, b.Budgeted)
}

// Level classifies the budget's usage.
func (b Budget) Level() UsageLevel {
	return LevelFor(b.UsagePercent())
}

// Remaining returns Budgeted - Spent (negative when overspent).
func (b Budget) Remaining() decimal.Decimal {
	return b.Budgeted.Sub(b.Spent)
}

// UsagePercent computes spent / budgeted * 100; 0 when budgeted is zero.
func UsagePercent(spent, budgeted decimal.Decimal) float64 {
	if !budgeted.IsPositive() {
		return 0
	}
	pct, _ := spent.Div(budgeted).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// LevelFor maps a usage percentage to its level: > 100 exceeded, >= 90 near.
func LevelFor(pct float64) UsageLevel {
	switch {
	case pct > 100:
		return UsageExceeded
	case pct >= 90:
		return UsageNear
	default:
		return UsageOK
	}
}

// Key identifies a (category, tag) partition.
type Key struct {
	Category string
	Tag      string
}

func (k Key) String() string {
	return k.Category + "/" + k.Tag
}
