package ledger

import (
	"time"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// NextOccurrence derives the successor of a paid recurring expense. The due
// date moves forward by the frequency's month offset, clamped to the end of
// the target month. A discount deadline keeps its signed day offset from the
// due date, and its amount is recomputed from the unchanged amount and
// percent. ok is false when e does not recur.
func NextOccurrence(e model.Expense, createdAt time.Time) (next model.Expense, ok bool) {
	offset := e.Frequency.MonthOffset()
	if !e.Recurring || offset == 0 {
		return model.Expense{}, false
	}

	due := period.AddMonthsClamped(e.DueDate, offset)
	next = model.Expense{
		Description: e.Description,
		Amount:      e.Amount,
		DueDate:     due,
		Category:    e.Category,
		Tag:         e.Tag,
		Status:      model.StatusPending,
		Notes:       e.Notes,
		Recurring:   true,
		Frequency:   e.Frequency,
		SeriesID:    e.SeriesID,
		CreatedAt:   createdAt,
	}

	if d := e.Discount; d != nil {
		days := period.DaysBetween(e.DueDate, d.Deadline)
		next.Discount = &model.Discount{
			Deadline: due.AddDate(0, 0, days),
			Percent:  d.Percent,
			Amount:   model.DiscountAmount(e.Amount, d.Percent),
		}
	}
	return next, true
}
