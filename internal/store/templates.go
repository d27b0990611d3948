package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/model"
)

const templateColumns = `id, category, tag, base_amount, february_amount, june_amount, december_amount,
	active, notes, created_at, updated_at`

// InsertTemplate inserts tpl and sets its ID. A second template for the same
// (category, tag) returns ErrConflict.
func (t *Tx) InsertTemplate(ctx context.Context, tpl *model.Template) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO budget_templates
		(category, tag, base_amount, february_amount, june_amount, december_amount, active, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.Category, tpl.Tag, tpl.BaseAmount.String(),
		tpl.February, tpl.June, tpl.December,
		boolInt(tpl.Active), tpl.Notes, formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert template: %w", err)
	}
	tpl.ID, err = res.LastInsertId()
	return err
}

// UpdateTemplate overwrites the template's key, amounts, state and notes.
func (t *Tx) UpdateTemplate(ctx context.Context, tpl model.Template) error {
	res, err := t.q.ExecContext(ctx, `UPDATE budget_templates SET
		category = ?, tag = ?, base_amount = ?, february_amount = ?, june_amount = ?, december_amount = ?,
		active = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		tpl.Category, tpl.Tag, tpl.BaseAmount.String(),
		tpl.February, tpl.June, tpl.December,
		boolInt(tpl.Active), tpl.Notes, formatTime(tpl.UpdatedAt), tpl.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update template %d: %w", tpl.ID, err)
	}
	return requireAffected(res)
}

// GetTemplate loads one template.
func (t *Tx) GetTemplate(ctx context.Context, id int64) (model.Template, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM budget_templates WHERE id = ?", id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Template{}, ErrNotFound
	}
	return tpl, err
}

// DeleteTemplate removes a template. Budgets it produced keep their amounts
// and lose the back-reference.
func (t *Tx) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM budget_templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	return requireAffected(res)
}

// ListTemplates returns templates ordered by key. With activeOnly set, paused
// templates are skipped.
func (t *Tx) ListTemplates(ctx context.Context, activeOnly bool) ([]model.Template, error) {
	query := "SELECT " + templateColumns + " FROM budget_templates"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY category, tag"

	rows, err := t.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// InsertTemplateChange appends a row to the template history.
func (t *Tx) InsertTemplateChange(ctx context.Context, c *model.TemplateChange) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO template_history
		(template_id, action, actor, old_values, new_values, at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.TemplateID, string(c.Action), c.Actor, c.OldValues, c.NewValues, formatTime(c.At),
	)
	if err != nil {
		return fmt.Errorf("insert template change: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// ListTemplateChanges returns the history of one template, oldest first, or
// of every template when templateID is 0.
func (t *Tx) ListTemplateChanges(ctx context.Context, templateID int64) ([]model.TemplateChange, error) {
	query := "SELECT id, template_id, action, actor, old_values, new_values, at FROM template_history"
	var args []any
	if templateID != 0 {
		query += " WHERE template_id = ?"
		args = append(args, templateID)
	}
	query += " ORDER BY id ASC"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list template history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TemplateChange
	for rows.Next() {
		var (
			c          model.TemplateChange
			action, at string
		)
		if err := rows.Scan(&c.ID, &c.TemplateID, &action, &c.Actor, &c.OldValues, &c.NewValues, &at); err != nil {
			return nil, err
		}
		c.Action = model.TemplateAction(action)
		c.At = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTemplate(r rowScanner) (model.Template, error) {
	var (
		tpl                 model.Template
		base                string
		active              int
		createdAt, updateAt string
	)
	err := r.Scan(&tpl.ID, &tpl.Category, &tpl.Tag, &base, &tpl.February, &tpl.June, &tpl.December,
		&active, &tpl.Notes, &createdAt, &updateAt)
	if err != nil {
		return model.Template{}, err
	}
	if tpl.BaseAmount, err = decimal.NewFromString(base); err != nil {
		return model.Template{}, fmt.Errorf("template %d base amount: %w", tpl.ID, err)
	}
	tpl.Active = active != 0
	tpl.CreatedAt = parseTime(createdAt)
	tpl.UpdatedAt = parseTime(updateAt)
	return tpl, nil
}
