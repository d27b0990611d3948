package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		due      string
		freq     model.Frequency
		deadline string
		wantDue  string
		wantDL   string
	}{
		{"monthly clamps to leap day", "2024-01-31", model.FrequencyMonthly, "2024-01-21", "2024-02-29", "2024-02-19"},
		{"monthly from short month", "2024-02-29", model.FrequencyMonthly, "", "2024-03-29", ""},
		{"quarterly", "2024-11-30", model.FrequencyQuarterly, "2024-11-25", "2025-02-28", "2025-02-23"},
		{"semiannual", "2024-08-31", model.FrequencySemiannual, "", "2025-02-28", ""},
		{"annual off leap day", "2024-02-29", model.FrequencyAnnual, "2024-02-01", "2025-02-28", "2025-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := model.Expense{
				Description: "x",
				Amount:      dec("1000"),
				DueDate:     date(tt.due),
				Status:      model.StatusPaid,
				Recurring:   true,
				Frequency:   tt.freq,
				SeriesID:    "s1",
			}
			if tt.deadline != "" {
				e.Discount = &model.Discount{Deadline: date(tt.deadline), Percent: dec("10"), Amount: dec("1")}
			}

			next, ok := NextOccurrence(e, fixedNow)
			require.True(t, ok)
			assert.Equal(t, tt.wantDue, period.FormatDate(next.DueDate))
			assert.Equal(t, model.StatusPending, next.Status)
			assert.Equal(t, "s1", next.SeriesID)
			if tt.wantDL == "" {
				assert.Nil(t, next.Discount)
				return
			}
			require.NotNil(t, next.Discount)
			assert.Equal(t, tt.wantDL, period.FormatDate(next.Discount.Deadline))
			assert.True(t, next.Discount.Amount.Equal(dec("100")), "amount recomputed from percent")
		})
	}
}

func TestNextOccurrenceNonRecurring(t *testing.T) {
	_, ok := NextOccurrence(model.Expense{DueDate: date("2024-01-31")}, fixedNow)
	assert.False(t, ok)
}
