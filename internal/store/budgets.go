package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

const budgetColumns = `id, month, year, category, tag, budgeted_amount, spent_amount,
	template_id, created_automatically, created_at`

// InsertBudget inserts b and sets its ID. A second budget for the same
// (month, year, category, tag) returns ErrConflict.
func (t *Tx) InsertBudget(ctx context.Context, b *model.Budget) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO budgets
		(month, year, category, tag, budgeted_amount, spent_amount, template_id, created_automatically, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int(b.Period.Month), b.Period.Year, b.Category, b.Tag,
		b.Budgeted.String(), b.Spent.String(), nullID(b.TemplateID),
		boolInt(b.CreatedAutomatically), formatTime(b.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// GetBudget loads one budget by id.
func (t *Tx) GetBudget(ctx context.Context, id int64) (model.Budget, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Budget{}, ErrNotFound
	}
	return b, err
}

// GetBudgetByKey loads the budget for (key, month).
func (t *Tx) GetBudgetByKey(ctx context.Context, key model.Key, m period.Month) (model.Budget, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+budgetColumns+` FROM budgets
		WHERE month = ? AND year = ? AND category = ? AND tag = ?`,
		int(m.Month), m.Year, key.Category, key.Tag,
	)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Budget{}, ErrNotFound
	}
	return b, err
}

// UpdateBudgetAmount changes the budgeted amount only.
func (t *Tx) UpdateBudgetAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	res, err := t.q.ExecContext(ctx, "UPDATE budgets SET budgeted_amount = ? WHERE id = ?", amount.String(), id)
	if err != nil {
		return fmt.Errorf("update budget %d: %w", id, err)
	}
	return requireAffected(res)
}

// SetBudgetSpent stores the recomputed spent amount for (key, month).
// It reports whether a budget row existed.
func (t *Tx) SetBudgetSpent(ctx context.Context, key model.Key, m period.Month, spent decimal.Decimal) (bool, error) {
	res, err := t.q.ExecContext(ctx, `UPDATE budgets SET spent_amount = ?
		WHERE month = ? AND year = ? AND category = ? AND tag = ?`,
		spent.String(), int(m.Month), m.Year, key.Category, key.Tag,
	)
	if err != nil {
		return false, fmt.Errorf("set spent for %s %s: %w", key, m, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteBudget removes one budget.
func (t *Tx) DeleteBudget(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return requireAffected(res)
}

// ListBudgets returns the budgets of one month, or of every month when m is zero.
func (t *Tx) ListBudgets(ctx context.Context, m period.Month) ([]model.Budget, error) {
	query := "SELECT " + budgetColumns + " FROM budgets"
	var args []any
	if !m.IsZero() {
		query += " WHERE month = ? AND year = ?"
		args = append(args, int(m.Month), m.Year)
	}
	query += " ORDER BY year DESC, month DESC, category ASC, tag ASC"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBudgetKeys returns every distinct (category, tag) that has a budget
// with a positive amount in some month.
func (t *Tx) ListBudgetKeys(ctx context.Context) ([]model.Key, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT DISTINCT category, tag, budgeted_amount FROM budgets
		ORDER BY category, tag`)
	if err != nil {
		return nil, fmt.Errorf("list budget keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[model.Key]bool)
	var out []model.Key
	for rows.Next() {
		var (
			k      model.Key
			amount decimal.Decimal
		)
		if err := rows.Scan(&k.Category, &k.Tag, &amount); err != nil {
			return nil, err
		}
		if !amount.IsPositive() || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanBudget(r rowScanner) (model.Budget, error) {
	var (
		b               model.Budget
		month, auto     int
		budgeted, spent string
		templateID      sql.NullInt64
		createdAt       string
	)
	err := r.Scan(&b.ID, &month, &b.Period.Year, &b.Category, &b.Tag, &budgeted, &spent,
		&templateID, &auto, &createdAt)
	if err != nil {
		return model.Budget{}, err
	}
	b.Period.Month = time.Month(month)
	if b.Budgeted, err = decimal.NewFromString(budgeted); err != nil {
		return model.Budget{}, fmt.Errorf("budget %d amount: %w", b.ID, err)
	}
	if b.Spent, err = decimal.NewFromString(spent); err != nil {
		return model.Budget{}, fmt.Errorf("budget %d spent: %w", b.ID, err)
	}
	if templateID.Valid {
		id := templateID.Int64
		b.TemplateID = &id
	}
	b.CreatedAutomatically = auto != 0
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
