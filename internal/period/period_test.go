package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-01-15", 1, "2024-02-15"},
		{"2024-11-30", 3, "2025-02-28"},
		{"2024-08-31", 6, "2025-02-28"},
		{"2024-02-29", 12, "2025-02-28"},
		{"2024-03-31", -1, "2024-02-29"},
	}
	for _, tt := range tests {
		got := AddMonthsClamped(mustDate(t, tt.from), tt.months)
		assert.Equal(t, tt.want, FormatDate(got), "%s + %d months", tt.from, tt.months)
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 10, DaysBetween(mustDate(t, "2024-01-21"), mustDate(t, "2024-01-31")))
	assert.Equal(t, -10, DaysBetween(mustDate(t, "2024-01-31"), mustDate(t, "2024-01-21")))
	assert.Equal(t, 0, DaysBetween(mustDate(t, "2024-01-21"), mustDate(t, "2024-01-21")))

	// Time of day is ignored.
	now := time.Date(2024, 1, 21, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(now, mustDate(t, "2024-01-22")))
}

func TestMonthArithmetic(t *testing.T) {
	m, err := ParseMonth("2024-01")
	require.NoError(t, err)

	assert.Equal(t, "2023-12", m.Prev().String())
	assert.Equal(t, "2024-03", m.Add(2).String())
	assert.True(t, m.Contains(mustDate(t, "2024-01-31")))
	assert.False(t, m.Contains(mustDate(t, "2024-02-01")))
	assert.Equal(t, "2024-02-01", FormatDate(m.End()))

	recent := m.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"2024-01", "2023-12", "2023-11"},
		[]string{recent[0].String(), recent[1].String(), recent[2].String()})
}

func TestNewRejectsBadMonth(t *testing.T) {
	_, err := New(13, 2024)
	assert.Error(t, err)
	_, err = New(0, 2024)
	assert.Error(t, err)
	m, err := New(12, 2024)
	require.NoError(t, err)
	assert.Equal(t, time.December, m.Month)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)
	_, err = ParseDate("31/01/2024")
	assert.Error(t, err)
}
