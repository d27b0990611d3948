package store

import (
	"context"
	"fmt"
	"time"
)

type defaultSetting struct {
	key, value, desc string
}

var defaultSettings = []defaultSetting{
	{SettingAnticipatedDays, "7", "Days ahead of the due date an expense becomes important"},
	{SettingCriticalDays, "3", "Days ahead of the due date an expense becomes critical"},
	{SettingAlertsEnabled, "1", "Whether payment alerts are shown"},
}

type defaultCategory struct {
	name, desc, color string
}

var defaultCategories = []defaultCategory{
	{"Nómina", "Salarios y prestaciones", "#667eea"},
	{"Arriendo", "Arriendo de oficina", "#764ba2"},
	{"Servicios", "Agua, luz y gas", "#f093fb"},
	{"Internet", "Conectividad y telefonía", "#4facfe"},
	{"Suscripciones", "Software y servicios en línea", "#43e97b"},
	{"Mantenimiento", "Reparaciones y aseo", "#fa709a"},
	{"Cafetería", "Insumos de cafetería", "#fee140"},
	{"Impuestos", "Impuestos y contribuciones", "#30cfd0"},
	{"Otros", "Gastos varios", "#a8a8a8"},
}

// Seed inserts the default settings and category catalogue. Existing rows
// are left untouched, so Seed can run on every Open.
func (s *Store) Seed(ctx context.Context) error {
	now := formatTime(time.Now())
	return s.Update(ctx, func(tx *Tx) error {
		for _, d := range defaultSettings {
			if _, err := tx.q.ExecContext(ctx,
				"INSERT OR IGNORE INTO settings (key, value, description, updated_at) VALUES (?, ?, ?, ?)",
				d.key, d.value, d.desc, now,
			); err != nil {
				return fmt.Errorf("seed setting %s: %w", d.key, err)
			}
		}
		for i, c := range defaultCategories {
			if _, err := tx.q.ExecContext(ctx,
				"INSERT OR IGNORE INTO categories (name, description, color, sort_order, active) VALUES (?, ?, ?, ?, 1)",
				c.name, c.desc, c.color, i+1,
			); err != nil {
				return fmt.Errorf("seed category %s: %w", c.name, err)
			}
		}
		return nil
	})
}
