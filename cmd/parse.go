package cmd

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/period"
)

// parseMoney accepts plain decimals plus the usual decorations people type:
// a leading "$" and "," or "_" thousands separators.
func parseMoney(field, s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", "_", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, apperr.Validation("%s: %q is not an amount", field, s)
	}
	return d, nil
}

// parseOptionalMoney returns an invalid NullDecimal for "".
func parseOptionalMoney(field, s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseMoney(field, s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%q is not a valid id", s)
	}
	return id, nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := period.ParseDate(s)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: %v", field, err)
	}
	return d, nil
}

// parseMonth parses YYYY-MM, defaulting to the month of now when s is empty.
func parseMonth(s string, now time.Time) (period.Month, error) {
	if s == "" {
		return period.Of(now), nil
	}
	m, err := period.ParseMonth(s)
	if err != nil {
		return period.Month{}, apperr.Validation("month: %v", err)
	}
	return m, nil
}
