// Package metrics holds the Prometheus collectors for ledger activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/theirongolddev/books/internal/model"
)

const namespace = "books"

// Metrics is a set of collectors registered on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	expensesPaid     prometheus.Counter
	successors       prometheus.Counter
	budgetsByResult  *prometheus.CounterVec
	trendAlerts      *prometheus.CounterVec
	recomputes       prometheus.Counter
	pendingByUrgency *prometheus.GaugeVec
	snapshotDuration prometheus.Histogram
}

// New builds and registers the collectors, including the Go runtime ones.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		expensesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_paid_total",
			Help:      "Expenses moved from pending to paid.",
		}),
		successors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurrence_successors_total",
			Help:      "Successor expenses generated by paying a recurring expense.",
		}),
		budgetsByResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budgets_instantiated_total",
			Help:      "Template instantiation outcomes by result.",
		}, []string{"result"}),
		trendAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_alerts_raised_total",
			Help:      "Trend alerts raised by severity.",
		}, []string{"severity"}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_recomputes_total",
			Help:      "Budget spent recomputations.",
		}),
		pendingByUrgency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_expenses",
			Help:      "Pending expenses by urgency tier at the last dashboard read.",
		}, []string{"urgency"}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time taken to build a dashboard snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.expensesPaid,
		m.successors,
		m.budgetsByResult,
		m.trendAlerts,
		m.recomputes,
		m.pendingByUrgency,
		m.snapshotDuration,
	)
	return m
}

func (m *Metrics) ExpensePaid(successor bool) {
	if m == nil {
		return
	}
	m.expensesPaid.Inc()
	if successor {
		m.successors.Inc()
	}
}

// Instantiated records the outcome counts of one month instantiation.
func (m *Metrics) Instantiated(created, existing, errors int) {
	if m == nil {
		return
	}
	m.budgetsByResult.WithLabelValues("created").Add(float64(created))
	m.budgetsByResult.WithLabelValues("existing").Add(float64(existing))
	m.budgetsByResult.WithLabelValues("error").Add(float64(errors))
}

func (m *Metrics) TrendAlertRaised(sev model.Severity) {
	if m == nil {
		return
	}
	m.trendAlerts.WithLabelValues(string(sev)).Inc()
}

func (m *Metrics) Recomputed(n int) {
	if m == nil {
		return
	}
	m.recomputes.Add(float64(n))
}

// Pending sets the per-tier gauge from a classifier count function.
func (m *Metrics) Pending(count func(model.Urgency) int) {
	if m == nil {
		return
	}
	for _, u := range model.Urgencies {
		m.pendingByUrgency.WithLabelValues(u.String()).Set(float64(count(u)))
	}
}

func (m *Metrics) ObserveSnapshot(seconds float64) {
	if m == nil {
		return
	}
	m.snapshotDuration.Observe(seconds)
}
