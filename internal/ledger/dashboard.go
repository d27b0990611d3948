package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/alerts"
	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

// Dashboard is the payment overview shown on every read.
type Dashboard struct {
	Enabled     bool
	HorizonDays int
	alerts.Report
}

// Thresholds reads the urgency thresholds from the settings table. Invalid
// values fall back to the defaults.
func (s *Service) Thresholds(ctx context.Context) (alerts.Thresholds, bool, error) {
	th := alerts.DefaultThresholds
	enabled := true
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if th.AnticipatedDays, err = tx.GetIntSetting(ctx, store.SettingAnticipatedDays, th.AnticipatedDays); err != nil {
			return err
		}
		if th.CriticalDays, err = tx.GetIntSetting(ctx, store.SettingCriticalDays, th.CriticalDays); err != nil {
			return err
		}
		on, err := tx.GetIntSetting(ctx, store.SettingAlertsEnabled, 1)
		enabled = on != 0
		return err
	})
	if err != nil {
		return alerts.DefaultThresholds, true, err
	}
	if err := th.Validate(); err != nil {
		s.log.Warn("invalid alert thresholds in settings, using defaults", zap.Error(err))
		th = alerts.DefaultThresholds
	}
	return th, enabled, nil
}

// Dashboard classifies the pending expenses that are overdue or due within
// the horizon.
func (s *Service) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	th, enabled, err := s.Thresholds(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	pending, err := s.ListPending(ctx, period.Date(now).AddDate(0, 0, s.horizon))
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{
		Enabled:     enabled,
		HorizonDays: s.horizon,
		Report:      alerts.Classify(now, pending, th),
	}
	s.metrics.Pending(d.Count)
	return d, nil
}

// Settings returns every key-value setting.
func (s *Service) Settings(ctx context.Context) ([]model.Setting, error) {
	var out []model.Setting
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListSettings(ctx)
		return err
	})
	return out, err
}

// SetSetting validates and stores one setting. The alert thresholds must stay
// non-negative with critical not above anticipated.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		switch key {
		case store.SettingAnticipatedDays, store.SettingCriticalDays:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return apperr.Validation("%s must be a non-negative integer, got %q", key, value)
			}
			th := alerts.DefaultThresholds
			if th.AnticipatedDays, err = tx.GetIntSetting(ctx, store.SettingAnticipatedDays, th.AnticipatedDays); err != nil {
				return err
			}
			if th.CriticalDays, err = tx.GetIntSetting(ctx, store.SettingCriticalDays, th.CriticalDays); err != nil {
				return err
			}
			if key == store.SettingAnticipatedDays {
				th.AnticipatedDays = n
			} else {
				th.CriticalDays = n
			}
			if err := th.Validate(); err != nil {
				return apperr.Validation("%v", err)
			}
		case store.SettingAlertsEnabled:
			if value != "0" && value != "1" {
				return apperr.Validation("%s must be 0 or 1, got %q", key, value)
			}
		case "":
			return apperr.Validation("setting key is required")
		}
		return tx.SetSetting(ctx, key, value, "", s.now())
	})
	if err != nil {
		s.logFailure("set setting", err, zap.String("key", key))
		return err
	}
	s.log.Info("setting updated", zap.String("key", key), zap.String("value", value))
	return nil
}

// Categories returns the category catalogue.
func (s *Service) Categories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	var out []model.Category
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, activeOnly)
		return err
	})
	return out, err
}

// AddCategory appends a catalogue entry.
func (s *Service) AddCategory(ctx context.Context, name, description, color string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, apperr.Validation("category name is required")
	}
	if color == "" {
		color = "#667eea"
	}
	c := model.Category{Name: name, Description: description, Color: color, Active: true}
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.ListCategories(ctx, false)
		if err != nil {
			return err
		}
		c.SortOrder = len(existing) + 1
		if err := tx.InsertCategory(ctx, &c); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Duplicate("category %q already exists", name)
			}
			return err
		}
		return nil
	})
	return c, err
}

// SetCategoryActive shows or hides a catalogue entry.
func (s *Service) SetCategoryActive(ctx context.Context, name string, active bool) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		return tx.SetCategoryActive(ctx, name, active)
	})
	if errors.Is(err, store.ErrNotFound) {
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "NOT_FOUND", Message: "category " + strconv.Quote(name) + " not found"}
	}
	return err
}
