package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/model"
)

const expenseColumns = `id, description, amount, due_date, category, tag, status, notes,
	has_discount, discount_deadline, discount_percent, discount_amount,
	is_recurring, frequency, series_id, paid_by, paid_at, created_at`

// ExpenseFilter narrows ListExpenses. Zero fields do not filter.
type ExpenseFilter struct {
	Status   *model.ExpenseStatus
	From     time.Time // inclusive due date
	To       time.Time // exclusive due date
	Category string
	Tag      string
	SeriesID string
}

// InsertExpense inserts e and sets its ID.
func (t *Tx) InsertExpense(ctx context.Context, e *model.Expense) error {
	args := expenseArgs(*e)
	res, err := t.q.ExecContext(ctx, `INSERT INTO expenses
		(description, amount, due_date, category, tag, status, notes,
		 has_discount, discount_deadline, discount_percent, discount_amount,
		 is_recurring, frequency, series_id, paid_by, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, formatTime(e.CreatedAt))...,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// UpdateExpense overwrites every mutable column of the row with e's values.
func (t *Tx) UpdateExpense(ctx context.Context, e model.Expense) error {
	args := append(expenseArgs(e), e.ID)
	res, err := t.q.ExecContext(ctx, `UPDATE expenses SET
		description = ?, amount = ?, due_date = ?, category = ?, tag = ?, status = ?, notes = ?,
		has_discount = ?, discount_deadline = ?, discount_percent = ?, discount_amount = ?,
		is_recurring = ?, frequency = ?, series_id = ?, paid_by = ?, paid_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return requireAffected(res)
}

// GetExpense loads one expense.
func (t *Tx) GetExpense(ctx context.Context, id int64) (model.Expense, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Expense{}, ErrNotFound
	}
	return e, err
}

// DeleteExpense removes one expense.
func (t *Tx) DeleteExpense(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return requireAffected(res)
}

// ListExpenses returns matching expenses ordered by due date.
func (t *Tx) ListExpenses(ctx context.Context, f ExpenseFilter) ([]model.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, f.Status.String())
	}
	if !f.From.IsZero() {
		where = append(where, "due_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "due_date < ?")
		args = append(args, formatDate(f.To))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Tag != "" {
		where = append(where, "tag = ?")
		args = append(args, f.Tag)
	}
	if f.SeriesID != "" {
		where = append(where, "series_id = ?")
		args = append(args, f.SeriesID)
	}

	query := "SELECT " + expenseColumns + " FROM expenses"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date ASC, id ASC"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumPaid adds up the amounts of Paid expenses for (category, tag) whose due
// date falls in [from, to). The sum is done in decimal, not in SQL, since
// amounts are stored as exact text.
func (t *Tx) SumPaid(ctx context.Context, key model.Key, from, to time.Time) (decimal.Decimal, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT amount FROM expenses
		WHERE category = ? AND tag = ? AND status = 'paid'
		AND due_date >= ? AND due_date < ?`,
		key.Category, key.Tag, formatDate(from), formatDate(to),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid: %w", err)
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func expenseArgs(e model.Expense) []any {
	var (
		deadline, pct, amt sql.NullString
		paidBy, paidAt     sql.NullString
	)
	if e.Discount != nil {
		deadline = sql.NullString{String: formatDate(e.Discount.Deadline), Valid: true}
		pct = sql.NullString{String: e.Discount.Percent.String(), Valid: true}
		amt = sql.NullString{String: e.Discount.Amount.String(), Valid: true}
	}
	if e.PaidAt != nil {
		paidAt = sql.NullString{String: formatTime(*e.PaidAt), Valid: true}
		paidBy = sql.NullString{String: e.PaidBy, Valid: true}
	}
	return []any{
		e.Description, e.Amount.String(), formatDate(e.DueDate), e.Category, e.Tag, e.Status.String(), e.Notes,
		boolInt(e.Discount != nil), deadline, pct, amt,
		boolInt(e.Recurring), e.Frequency.String(), e.SeriesID, paidBy, paidAt,
	}
}

func scanExpense(r rowScanner) (model.Expense, error) {
	var (
		e                          model.Expense
		amount, dueDate, status    string
		freq, createdAt            string
		hasDiscount, recurring     int
		deadline, pct, discountAmt sql.NullString
		paidBy, paidAt             sql.NullString
	)
	err := r.Scan(&e.ID, &e.Description, &amount, &dueDate, &e.Category, &e.Tag, &status, &e.Notes,
		&hasDiscount, &deadline, &pct, &discountAmt,
		&recurring, &freq, &e.SeriesID, &paidBy, &paidAt, &createdAt)
	if err != nil {
		return model.Expense{}, err
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Expense{}, fmt.Errorf("expense %d amount: %w", e.ID, err)
	}
	if e.DueDate, err = parseDate(dueDate); err != nil {
		return model.Expense{}, fmt.Errorf("expense %d due date: %w", e.ID, err)
	}
	if e.Status, err = model.ParseExpenseStatus(status); err != nil {
		return model.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	if e.Frequency, err = model.ParseFrequency(freq); err != nil {
		return model.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Recurring = recurring != 0

	if hasDiscount != 0 && deadline.Valid {
		d := &model.Discount{}
		if d.Deadline, err = parseDate(deadline.String); err != nil {
			return model.Expense{}, fmt.Errorf("expense %d discount deadline: %w", e.ID, err)
		}
		d.Percent, _ = decimal.NewFromString(pct.String)
		d.Amount, _ = decimal.NewFromString(discountAmt.String)
		e.Discount = d
	}

	e.PaidAt = nullTime(paidAt)
	if paidBy.Valid {
		e.PaidBy = paidBy.String
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
