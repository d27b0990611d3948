package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Template is a reusable monthly budget definition with seasonal overrides.
type Template struct {
	ID         int64
	Category   string
	Tag        string
	BaseAmount decimal.Decimal
	February   decimal.NullDecimal
	June       decimal.NullDecimal
	December   decimal.NullDecimal
	Active     bool
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the template's (category, tag) pair.
func (t Template) Key() Key {
	return Key{Category: t.Category, Tag: t.Tag}
}

// AmountFor resolves the budget amount for a calendar month. An override
// replaces the base amount for its month; it never adds to it.
func (t Template) AmountFor(month time.Month) decimal.Decimal {
	if o := t.override(month); o.Valid {
		return o.Decimal
	}
	return t.BaseAmount
}

// SpecialMonthLabel names the seasonal payment behind an override that
// differs from the base amount, or "" when the month is ordinary.
func (t Template) SpecialMonthLabel(month time.Month) string {
	o := t.override(month)
	if !o.Valid || o.Decimal.Equal(t.BaseAmount) {
		return ""
	}
	switch month {
	case time.February:
		return "Cesantías"
	case time.June:
		return "Prima"
	case time.December:
		return "Liquidaciones"
	}
	return ""
}

func (t Template) override(month time.Month) decimal.NullDecimal {
	switch month {
	case time.February:
		return t.February
	case time.June:
		return t.June
	case time.December:
		return t.December
	}
	return decimal.NullDecimal{}
}

// TemplateAction is the kind of change recorded in template history.
type TemplateAction string

const (
	TemplateCreated TemplateAction = "created"
	TemplateEdited  TemplateAction = "edited"
	TemplatePaused  TemplateAction = "paused"
	TemplateResumed TemplateAction = "resumed"
	TemplateDeleted TemplateAction = "deleted"
)

// TemplateChange is one row of template history.
type TemplateChange struct {
	ID         int64
	TemplateID int64
	Action     TemplateAction
	Actor      string
	OldValues  string
	NewValues  string
	At         time.Time
}
