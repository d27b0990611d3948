package daemon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/books/internal/alerts"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// JSON shapes served by the API. Amounts are decimal strings and dates are
// YYYY-MM-DD.

type discountView struct {
	Deadline string          `json:"deadline"`
	Percent  decimal.Decimal `json:"percent"`
	Amount   decimal.Decimal `json:"amount"`
}

type expenseView struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Category    string          `json:"category"`
	Tag         string          `json:"tag"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	Discount    *discountView   `json:"discount,omitempty"`
	Recurring   bool            `json:"recurring"`
	Frequency   string          `json:"frequency,omitempty"`
	SeriesID    string          `json:"series_id"`
	PaidBy      string          `json:"paid_by,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

func newExpenseView(e model.Expense) expenseView {
	v := expenseView{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		DueDate:     period.FormatDate(e.DueDate),
		Category:    e.Category,
		Tag:         e.Tag,
		Status:      e.Status.String(),
		Notes:       e.Notes,
		Recurring:   e.Recurring,
		Frequency:   e.Frequency.String(),
		SeriesID:    e.SeriesID,
		PaidBy:      e.PaidBy,
		PaidAt:      e.PaidAt,
	}
	if e.Discount != nil {
		v.Discount = &discountView{
			Deadline: period.FormatDate(e.Discount.Deadline),
			Percent:  e.Discount.Percent,
			Amount:   e.Discount.Amount,
		}
	}
	return v
}

type payView struct {
	Expense     expenseView  `json:"expense"`
	Successor   *expenseView `json:"successor,omitempty"`
	AlreadyPaid bool         `json:"already_paid"`
}

func newPayView(r ledger.PayResult) payView {
	v := payView{Expense: newExpenseView(r.Expense), AlreadyPaid: r.AlreadyPaid}
	if r.Successor != nil {
		s := newExpenseView(*r.Successor)
		v.Successor = &s
	}
	return v
}

type dashboardItem struct {
	Expense       expenseView `json:"expense"`
	DaysRemaining int         `json:"days_remaining"`
	Urgency       string      `json:"urgency"`
}

type discountNoticeView struct {
	ExpenseID int64           `json:"expense_id"`
	DaysLeft  int             `json:"days_left"`
	Amount    decimal.Decimal `json:"amount"`
}

type dashboardView struct {
	Today              string               `json:"today"`
	Enabled            bool                 `json:"enabled"`
	HorizonDays        int                  `json:"horizon_days"`
	AnticipatedDays    int                  `json:"anticipated_days"`
	CriticalDays       int                  `json:"critical_days"`
	Counts             map[string]int       `json:"counts"`
	Items              []dashboardItem      `json:"items"`
	ExpiringDiscounts  []discountNoticeView `json:"expiring_discounts"`
	ForfeitedDiscounts []discountNoticeView `json:"forfeited_discounts"`
	TotalPending       decimal.Decimal      `json:"total_pending"`
	AtRisk             decimal.Decimal      `json:"discounts_at_risk"`
	Lost               decimal.Decimal      `json:"discounts_lost"`
}

func newDashboardView(d ledger.Dashboard) dashboardView {
	v := dashboardView{
		Today:              period.FormatDate(d.Today),
		Enabled:            d.Enabled,
		HorizonDays:        d.HorizonDays,
		AnticipatedDays:    d.Thresholds.AnticipatedDays,
		CriticalDays:       d.Thresholds.CriticalDays,
		Counts:             make(map[string]int, len(model.Urgencies)),
		Items:              make([]dashboardItem, 0, len(d.Items)),
		ExpiringDiscounts:  noticeViews(d.ExpiringDiscounts),
		ForfeitedDiscounts: noticeViews(d.ForfeitedDiscounts),
		TotalPending:       d.TotalPending,
		AtRisk:             d.AtRisk,
		Lost:               d.Lost,
	}
	for _, u := range model.Urgencies {
		v.Counts[u.String()] = d.Count(u)
	}
	for _, it := range d.Items {
		v.Items = append(v.Items, dashboardItem{
			Expense:       newExpenseView(it.Expense),
			DaysRemaining: it.DaysRemaining,
			Urgency:       it.Urgency.String(),
		})
	}
	return v
}

func noticeViews(ns []alerts.DiscountNotice) []discountNoticeView {
	out := make([]discountNoticeView, 0, len(ns))
	for _, n := range ns {
		out = append(out, discountNoticeView{ExpenseID: n.Expense.ID, DaysLeft: n.DaysLeft, Amount: n.Amount})
	}
	return out
}

type budgetView struct {
	ID                   int64           `json:"id"`
	Period               string          `json:"period"`
	Category             string          `json:"category"`
	Tag                  string          `json:"tag"`
	Budgeted             decimal.Decimal `json:"budgeted"`
	Spent                decimal.Decimal `json:"spent"`
	Remaining            decimal.Decimal `json:"remaining"`
	UsagePercent         float64         `json:"usage_percent"`
	Level                string          `json:"level"`
	SpecialLabel         string          `json:"special_label,omitempty"`
	TemplateID           *int64          `json:"template_id,omitempty"`
	CreatedAutomatically bool            `json:"created_automatically"`
}

type summaryView struct {
	Budgeted     decimal.Decimal `json:"budgeted"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	UsagePercent float64         `json:"usage_percent"`
	Count        int             `json:"count"`
	OK           int             `json:"ok"`
	Near         int             `json:"near"`
	Exceeded     int             `json:"exceeded"`
}

type budgetsView struct {
	Period  string       `json:"period"`
	Budgets []budgetView `json:"budgets"`
	Summary summaryView  `json:"summary"`
}

func newBudgetsView(m period.Month, views []ledger.BudgetView) budgetsView {
	sum := ledger.Summarize(m, views)
	out := budgetsView{
		Period:  m.String(),
		Budgets: make([]budgetView, 0, len(views)),
		Summary: summaryView{
			Budgeted:     sum.Budgeted,
			Spent:        sum.Spent,
			Remaining:    sum.Remaining,
			UsagePercent: sum.UsagePercent,
			Count:        sum.Count,
			OK:           sum.OK,
			Near:         sum.Near,
			Exceeded:     sum.Exceeded,
		},
	}
	for _, b := range views {
		out.Budgets = append(out.Budgets, budgetView{
			ID:                   b.ID,
			Period:               b.Period.String(),
			Category:             b.Category,
			Tag:                  b.Tag,
			Budgeted:             b.Budgeted,
			Spent:                b.Spent,
			Remaining:            b.Remaining(),
			UsagePercent:         b.UsagePercent,
			Level:                b.Level.String(),
			SpecialLabel:         b.SpecialLabel,
			TemplateID:           b.TemplateID,
			CreatedAutomatically: b.CreatedAutomatically,
		})
	}
	return out
}

type trendView struct {
	ID                 int64      `json:"id"`
	Category           string     `json:"category"`
	Tag                string     `json:"tag"`
	Type               string     `json:"type"`
	Severity           string     `json:"severity"`
	Message            string     `json:"message"`
	ConsecutiveMonths  int        `json:"consecutive_months"`
	AveragePercentUsed float64    `json:"average_percent_used"`
	ExcessPercent      float64    `json:"excess_percent"`
	DetectedAt         time.Time  `json:"detected_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	Active             bool       `json:"active"`
}

func newTrendViews(as []model.TrendAlert) []trendView {
	out := make([]trendView, 0, len(as))
	for _, a := range as {
		out = append(out, trendView{
			ID:                 a.ID,
			Category:           a.Category,
			Tag:                a.Tag,
			Type:               string(a.Type),
			Severity:           string(a.Severity),
			Message:            a.Message,
			ConsecutiveMonths:  a.ConsecutiveMonths,
			AveragePercentUsed: a.AveragePercentUsed,
			ExcessPercent:      a.ExcessPercent,
			DetectedAt:         a.DetectedAt,
			ResolvedAt:         a.ResolvedAt,
			Active:             a.Active,
		})
	}
	return out
}

type scanView struct {
	Checked    int         `json:"checked"`
	Raised     []trendView `json:"raised"`
	Suppressed int         `json:"suppressed"`
}

type templateView struct {
	ID         int64               `json:"id"`
	Category   string              `json:"category"`
	Tag        string              `json:"tag"`
	BaseAmount decimal.Decimal     `json:"base_amount"`
	February   decimal.NullDecimal `json:"february"`
	June       decimal.NullDecimal `json:"june"`
	December   decimal.NullDecimal `json:"december"`
	Active     bool                `json:"active"`
	Notes      string              `json:"notes,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func newTemplateViews(ts []model.Template) []templateView {
	out := make([]templateView, 0, len(ts))
	for _, t := range ts {
		out = append(out, templateView{
			ID:         t.ID,
			Category:   t.Category,
			Tag:        t.Tag,
			BaseAmount: t.BaseAmount,
			February:   t.February,
			June:       t.June,
			December:   t.December,
			Active:     t.Active,
			Notes:      t.Notes,
			UpdatedAt:  t.UpdatedAt,
		})
	}
	return out
}

type instantiateView struct {
	Period   string   `json:"period"`
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Errors   int      `json:"errors"`
	Details  []string `json:"details"`
}
