// Package period provides calendar-month values and date arithmetic for the ledger.
package period

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk and CLI representation of a calendar date.
const DateLayout = "2006-01-02"

// MonthLayout is the representation of a calendar month ("2024-01").
const MonthLayout = "2006-01"

// Month identifies one calendar month of one year.
type Month struct {
	Year  int
	Month time.Month
}

// Of returns the calendar month containing t.
func Of(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// New builds a Month, validating the month number.
func New(month, year int) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("month %d out of range 1..12", month)
	}
	if year < 1 || year > 9999 {
		return Month{}, fmt.Errorf("year %d out of range", year)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q (want YYYY-MM)", s)
	}
	return Of(t), nil
}

// Start returns the first day of the month at UTC midnight.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first day of the following month (exclusive bound).
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Add shifts the month by n (negative goes back).
func (m Month) Add(n int) Month {
	return Of(m.Start().AddDate(0, n, 0))
}

// Prev returns the preceding month.
func (m Month) Prev() Month { return m.Add(-1) }

// Contains reports whether the calendar date d falls within the month.
func (m Month) Contains(d time.Time) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

// Equal reports whether both values name the same month.
func (m Month) Equal(o Month) bool {
	return m.Year == o.Year && m.Month == o.Month
}

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Recent returns the n most recent months ending at m, newest first.
func (m Month) Recent(n int) []Month {
	out := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Add(-i))
	}
	return out
}

// Date truncates t to its calendar date at UTC midnight, keeping the
// wall-clock year/month/day of t's own location.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

// FormatDate renders a calendar date as "YYYY-MM-DD".
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// AddMonthsClamped adds n months to d. When the day of month does not exist
// in the target month it is clamped to the target's last day (Jan 31 + 1 -> Feb 28/29).
func AddMonthsClamped(d time.Time, n int) time.Time {
	d = Date(d)
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := daysIn(first.Year(), first.Month())
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
