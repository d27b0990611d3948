package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/books/internal/model"
)

const trendColumns = `id, category, tag, trend_type, severity, message, consecutive_months,
	average_percent_used, excess_percent, detected_at, resolved_at, active`

// InsertTrendAlert inserts a as an active alert. A second active alert for
// the same (category, tag) returns ErrConflict.
func (t *Tx) InsertTrendAlert(ctx context.Context, a *model.TrendAlert) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO trend_alerts
		(category, tag, trend_type, severity, message, consecutive_months,
		 average_percent_used, excess_percent, detected_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		a.Category, a.Tag, string(a.Type), string(a.Severity), a.Message, a.ConsecutiveMonths,
		a.AveragePercentUsed, a.ExcessPercent, formatTime(a.DetectedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert trend alert: %w", err)
	}
	a.Active = true
	a.ID, err = res.LastInsertId()
	return err
}

// HasActiveTrendAlert reports whether key already carries an active alert.
func (t *Tx) HasActiveTrendAlert(ctx context.Context, key model.Key) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trend_alerts WHERE category = ? AND tag = ? AND active = 1",
		key.Category, key.Tag,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check active trend alert: %w", err)
	}
	return n > 0, nil
}

// GetTrendAlert loads one alert.
func (t *Tx) GetTrendAlert(ctx context.Context, id int64) (model.TrendAlert, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+trendColumns+" FROM trend_alerts WHERE id = ?", id)
	a, err := scanTrendAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrendAlert{}, ErrNotFound
	}
	return a, err
}

// ListTrendAlerts returns alerts newest first. With activeOnly set, resolved
// alerts are skipped.
func (t *Tx) ListTrendAlerts(ctx context.Context, activeOnly bool) ([]model.TrendAlert, error) {
	query := "SELECT " + trendColumns + " FROM trend_alerts"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY detected_at DESC, id DESC"

	rows, err := t.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trend alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TrendAlert
	for rows.Next() {
		a, err := scanTrendAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveTrendAlert deactivates an alert. Resolving an already resolved
// alert is a no-op.
func (t *Tx) ResolveTrendAlert(ctx context.Context, id int64, at time.Time) error {
	if _, err := t.GetTrendAlert(ctx, id); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx,
		"UPDATE trend_alerts SET active = 0, resolved_at = ? WHERE id = ? AND active = 1",
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("resolve trend alert %d: %w", id, err)
	}
	return nil
}

func scanTrendAlert(r rowScanner) (model.TrendAlert, error) {
	var (
		a                  model.TrendAlert
		typ, sev, detected string
		resolved           sql.NullString
		active             int
	)
	err := r.Scan(&a.ID, &a.Category, &a.Tag, &typ, &sev, &a.Message, &a.ConsecutiveMonths,
		&a.AveragePercentUsed, &a.ExcessPercent, &detected, &resolved, &active)
	if err != nil {
		return model.TrendAlert{}, err
	}
	a.Type = model.TrendType(typ)
	a.Severity = model.Severity(sev)
	a.DetectedAt = parseTime(detected)
	a.ResolvedAt = nullTime(resolved)
	a.Active = active != 0
	return a, nil
}
