package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/theirongolddev/books/internal/model"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ExpensePaid(true)
	m.ExpensePaid(false)
	m.Instantiated(2, 1, 0)
	m.TrendAlertRaised(model.SeverityCritical)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.expensesPaid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.successors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.budgetsByResult.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.budgetsByResult.WithLabelValues("existing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trendAlerts.WithLabelValues("critical")))
}

func TestPendingGauge(t *testing.T) {
	m := New()
	m.Pending(func(u model.Urgency) int {
		if u == model.UrgencyOverdue {
			return 4
		}
		return 0
	})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pendingByUrgency.WithLabelValues("overdue")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pendingByUrgency.WithLabelValues("normal")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ExpensePaid(true)
		m.Instantiated(1, 1, 1)
		m.Recomputed(3)
		m.ObserveSnapshot(0.1)
	})
}
