package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

// TemplateInput carries the editable fields of a budget template. An invalid
// override means the month uses the base amount.
type TemplateInput struct {
	Category   string
	Tag        string
	BaseAmount decimal.Decimal
	February   decimal.NullDecimal
	June       decimal.NullDecimal
	December   decimal.NullDecimal
	Notes      string
}

// InstantiateResult reports the outcome of one month instantiation.
type InstantiateResult struct {
	Period   period.Month
	Created  int
	Existing int
	Errors   int
	Details  []string
}

func (in TemplateInput) apply(t *model.Template) error {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return apperr.Validation("category is required")
	}
	if in.BaseAmount.IsNegative() {
		return apperr.Validation("base amount must not be negative, got %s", in.BaseAmount)
	}
	for name, o := range map[string]decimal.NullDecimal{"february": in.February, "june": in.June, "december": in.December} {
		if o.Valid && o.Decimal.IsNegative() {
			return apperr.Validation("%s amount must not be negative, got %s", name, o.Decimal)
		}
	}
	t.Category = category
	t.Tag = strings.TrimSpace(in.Tag)
	t.BaseAmount = in.BaseAmount
	t.February = in.February
	t.June = in.June
	t.December = in.December
	t.Notes = in.Notes
	return nil
}

type templateSnapshot struct {
	Category string              `json:"category"`
	Tag      string              `json:"tag"`
	Base     decimal.Decimal     `json:"base_amount"`
	February decimal.NullDecimal `json:"february_amount"`
	June     decimal.NullDecimal `json:"june_amount"`
	December decimal.NullDecimal `json:"december_amount"`
	Active   bool                `json:"active"`
	Notes    string              `json:"notes,omitempty"`
}

func snapshotJSON(t model.Template) string {
	b, err := json.Marshal(templateSnapshot{
		Category: t.Category,
		Tag:      t.Tag,
		Base:     t.BaseAmount,
		February: t.February,
		June:     t.June,
		December: t.December,
		Active:   t.Active,
		Notes:    t.Notes,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

func recordChange(ctx context.Context, tx *store.Tx, id int64, action model.TemplateAction, actor string, old, updated *model.Template, at time.Time) error {
	c := model.TemplateChange{TemplateID: id, Action: action, Actor: actor, At: at}
	if old != nil {
		c.OldValues = snapshotJSON(*old)
	}
	if updated != nil {
		c.NewValues = snapshotJSON(*updated)
	}
	return tx.InsertTemplateChange(ctx, &c)
}

// CreateTemplate inserts an active template. One template per (category, tag).
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput, actor string) (model.Template, error) {
	now := s.now()
	t := model.Template{Active: true, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(&t); err != nil {
		s.logFailure("create template", err)
		return model.Template{}, err
	}

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.InsertTemplate(ctx, &t); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Duplicate("template %s already exists", t.Key())
			}
			return err
		}
		return recordChange(ctx, tx, t.ID, model.TemplateCreated, actor, nil, &t, now)
	})
	if err != nil {
		s.logFailure("create template", err, zap.String("key", t.Key().String()))
		return model.Template{}, err
	}
	s.log.Info("template created", zap.Int64("template_id", t.ID), zap.String("key", t.Key().String()))
	return t, nil
}

// EditTemplate replaces the template's fields. Budgets already instantiated
// from it keep their amounts.
func (s *Service) EditTemplate(ctx context.Context, id int64, in TemplateInput, actor string) (model.Template, error) {
	now := s.now()
	var out model.Template
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		old, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return notFound(err, "template", id)
		}
		t := old
		if err := in.apply(&t); err != nil {
			return err
		}
		t.UpdatedAt = now
		if err := tx.UpdateTemplate(ctx, t); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Duplicate("template %s already exists", t.Key())
			}
			return notFound(err, "template", id)
		}
		out = t
		return recordChange(ctx, tx, id, model.TemplateEdited, actor, &old, &t, now)
	})
	if err != nil {
		s.logFailure("edit template", err, zap.Int64("template_id", id))
		return model.Template{}, err
	}
	return out, nil
}

// SetTemplateActive pauses or resumes a template. Setting the current state
// again records nothing.
func (s *Service) SetTemplateActive(ctx context.Context, id int64, active bool, actor string) (model.Template, error) {
	now := s.now()
	var out model.Template
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		old, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return notFound(err, "template", id)
		}
		out = old
		if old.Active == active {
			return nil
		}
		t := old
		t.Active = active
		t.UpdatedAt = now
		if err := tx.UpdateTemplate(ctx, t); err != nil {
			return notFound(err, "template", id)
		}
		out = t
		action := model.TemplatePaused
		if active {
			action = model.TemplateResumed
		}
		return recordChange(ctx, tx, id, action, actor, &old, &t, now)
	})
	if err != nil {
		s.logFailure("set template active", err, zap.Int64("template_id", id))
		return model.Template{}, err
	}
	return out, nil
}

// DeleteTemplate removes a template. Its budgets stay, without the link.
func (s *Service) DeleteTemplate(ctx context.Context, id int64, actor string) error {
	now := s.now()
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		old, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return notFound(err, "template", id)
		}
		if err := recordChange(ctx, tx, id, model.TemplateDeleted, actor, &old, nil, now); err != nil {
			return err
		}
		return notFound(tx.DeleteTemplate(ctx, id), "template", id)
	})
	if err != nil {
		s.logFailure("delete template", err, zap.Int64("template_id", id))
		return err
	}
	s.log.Info("template deleted", zap.Int64("template_id", id))
	return nil
}

// GetTemplate loads one template.
func (s *Service) GetTemplate(ctx context.Context, id int64) (model.Template, error) {
	var t model.Template
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		t, err = tx.GetTemplate(ctx, id)
		return notFound(err, "template", id)
	})
	return t, err
}

// ListTemplates returns templates ordered by key.
func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]model.Template, error) {
	var out []model.Template
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListTemplates(ctx, activeOnly)
		return err
	})
	return out, err
}

// TemplateHistory returns the recorded changes of a template, oldest first.
func (s *Service) TemplateHistory(ctx context.Context, id int64) ([]model.TemplateChange, error) {
	var out []model.TemplateChange
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListTemplateChanges(ctx, id)
		return err
	})
	return out, err
}

// ResolveAmount returns the budget amount t yields for month m.
func ResolveAmount(t model.Template, m period.Month) decimal.Decimal {
	return t.AmountFor(m.Month)
}

// InstantiateMonth creates the budgets of m from every active template. A
// template whose key already has a budget in m is skipped, so the operation
// can run any number of times. Each template is handled in its own
// transaction; a failure is counted and the rest continue.
func (s *Service) InstantiateMonth(ctx context.Context, m period.Month) (InstantiateResult, error) {
	res := InstantiateResult{Period: m}
	if _, err := period.New(int(m.Month), m.Year); err != nil {
		return res, apperr.Validation("invalid period: %v", err)
	}

	templates, err := s.ListTemplates(ctx, true)
	if err != nil {
		s.logFailure("instantiate month", err, zap.String("period", m.String()))
		return res, err
	}

	for _, t := range templates {
		created, amount, err := s.instantiateOne(ctx, t, m)
		switch {
		case err != nil:
			res.Errors++
			res.Details = append(res.Details, fmt.Sprintf("%s: error: %v", t.Key(), err))
			s.log.Error("template instantiation failed", zap.Int64("template_id", t.ID),
				zap.String("period", m.String()), zap.Error(err))
		case created:
			res.Created++
			line := fmt.Sprintf("%s: created %s", t.Key(), amount)
			if label := t.SpecialMonthLabel(m.Month); label != "" {
				line += " (" + label + ")"
			}
			res.Details = append(res.Details, line)
		default:
			res.Existing++
			res.Details = append(res.Details, fmt.Sprintf("%s: already exists", t.Key()))
		}
	}

	run := model.InstantiationRun{
		Period:   m,
		Created:  res.Created,
		Existing: res.Existing,
		Errors:   res.Errors,
		Details:  strings.Join(res.Details, "\n"),
		RanAt:    s.now(),
	}
	if err := s.store.Update(ctx, func(tx *store.Tx) error {
		return tx.InsertInstantiationRun(ctx, &run)
	}); err != nil {
		s.log.Warn("recording instantiation run", zap.Error(err))
	}

	s.metrics.Instantiated(res.Created, res.Existing, res.Errors)
	s.log.Info("month instantiated", zap.String("period", m.String()),
		zap.Int("created", res.Created), zap.Int("existing", res.Existing), zap.Int("errors", res.Errors))
	return res, nil
}

func (s *Service) instantiateOne(ctx context.Context, t model.Template, m period.Month) (bool, decimal.Decimal, error) {
	amount := ResolveAmount(t, m)
	created := false
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.GetBudgetByKey(ctx, t.Key(), m)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		templateID := t.ID
		b := model.Budget{
			Period:               m,
			Category:             t.Category,
			Tag:                  t.Tag,
			Budgeted:             amount,
			Spent:                decimal.Zero,
			TemplateID:           &templateID,
			CreatedAutomatically: true,
			CreatedAt:            s.now(),
		}
		if err := tx.InsertBudget(ctx, &b); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil
			}
			return err
		}
		created = true
		_, err = s.recompute(ctx, tx, b.Key(), m)
		return err
	})
	return created, amount, err
}

// InstantiationLog returns the most recent instantiation runs.
func (s *Service) InstantiationLog(ctx context.Context, limit int) ([]model.InstantiationRun, error) {
	var out []model.InstantiationRun
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListInstantiationRuns(ctx, limit)
		return err
	})
	return out, err
}
