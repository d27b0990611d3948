package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// Setting keys understood by the ledger.
const (
	SettingAnticipatedDays = "anticipated_days"
	SettingCriticalDays    = "critical_days"
	SettingAlertsEnabled   = "alerts_enabled"
)

// GetSetting returns the raw value of key.
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := t.q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// GetIntSetting returns key parsed as an integer, or def when the key is
// missing or not a number.
func (t *Tx) GetIntSetting(ctx context.Context, key string, def int) (int, error) {
	v, err := t.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetSetting upserts key. The description is kept when desc is empty.
func (t *Tx) SetSetting(ctx context.Context, key, value, desc string, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description = '' THEN settings.description ELSE excluded.description END,
			updated_at = excluded.updated_at`,
		key, value, desc, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns every setting ordered by key.
func (t *Tx) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT key, value, description, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Setting
	for rows.Next() {
		var (
			s  model.Setting
			at string
		)
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &at); err != nil {
			return nil, err
		}
		s.UpdatedAt = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertCategory adds a catalogue entry. Duplicate names return ErrConflict.
func (t *Tx) InsertCategory(ctx context.Context, c *model.Category) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO categories (name, description, color, sort_order, active)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Color, c.SortOrder, boolInt(c.Active),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// SetCategoryActive toggles a catalogue entry by name.
func (t *Tx) SetCategoryActive(ctx context.Context, name string, active bool) error {
	res, err := t.q.ExecContext(ctx, "UPDATE categories SET active = ? WHERE name = ?", boolInt(active), name)
	if err != nil {
		return fmt.Errorf("update category %s: %w", name, err)
	}
	return requireAffected(res)
}

// ListCategories returns the catalogue in display order.
func (t *Tx) ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	query := "SELECT id, name, description, color, sort_order, active FROM categories"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY sort_order, name"

	rows, err := t.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Category
	for rows.Next() {
		var (
			c      model.Category
			active int
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.SortOrder, &active); err != nil {
			return nil, err
		}
		c.Active = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertInstantiationRun logs one month instantiation.
func (t *Tx) InsertInstantiationRun(ctx context.Context, r *model.InstantiationRun) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO instantiation_runs
		(month, year, created, existing, errors, details, ran_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int(r.Period.Month), r.Period.Year, r.Created, r.Existing, r.Errors, r.Details, formatTime(r.RanAt),
	)
	if err != nil {
		return fmt.Errorf("insert instantiation run: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// ListInstantiationRuns returns the most recent runs first.
func (t *Tx) ListInstantiationRuns(ctx context.Context, limit int) ([]model.InstantiationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.q.QueryContext(ctx, `SELECT id, month, year, created, existing, errors, details, ran_at
		FROM instantiation_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list instantiation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.InstantiationRun
	for rows.Next() {
		var (
			r     model.InstantiationRun
			month int
			ranAt string
		)
		if err := rows.Scan(&r.ID, &month, &r.Period.Year, &r.Created, &r.Existing, &r.Errors, &r.Details, &ranAt); err != nil {
			return nil, err
		}
		r.Period.Month = time.Month(month)
		r.RanAt = parseTime(ranAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastInstantiationRun returns the latest run for m.
func (t *Tx) LastInstantiationRun(ctx context.Context, m period.Month) (model.InstantiationRun, error) {
	var (
		r     model.InstantiationRun
		month int
		ranAt string
	)
	err := t.q.QueryRowContext(ctx, `SELECT id, month, year, created, existing, errors, details, ran_at
		FROM instantiation_runs WHERE month = ? AND year = ? ORDER BY id DESC LIMIT 1`,
		int(m.Month), m.Year,
	).Scan(&r.ID, &month, &r.Period.Year, &r.Created, &r.Existing, &r.Errors, &r.Details, &ranAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InstantiationRun{}, ErrNotFound
	}
	if err != nil {
		return model.InstantiationRun{}, err
	}
	r.Period.Month = time.Month(month)
	r.RanAt = parseTime(ranAt)
	return r, nil
}
