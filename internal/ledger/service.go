// Package ledger implements the bookkeeping rules: the expense lifecycle and
// its recurrences, monthly budgets and their cached spend, budget templates,
// overspend trend detection and the payment dashboard.
package ledger

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/auth"
	"github.com/theirongolddev/books/internal/metrics"
	"github.com/theirongolddev/books/internal/store"
)

// TrendConfig tunes the overspend detector.
type TrendConfig struct {
	// Months is how many consecutive months, counting back from the current
	// one, must all exceed the threshold.
	Months int
	// ThresholdPercent is the usage a month must strictly exceed.
	ThresholdPercent float64
}

// DefaultTrendConfig is three months above 110%.
var DefaultTrendConfig = TrendConfig{Months: 3, ThresholdPercent: 110}

// DefaultHorizonDays bounds how far ahead the dashboard looks.
const DefaultHorizonDays = 30

// Service is the entry point for every ledger operation. Each write runs in
// its own store transaction.
type Service struct {
	store   *store.Store
	now     func() time.Time
	log     *zap.Logger
	auth    auth.Authorizer
	metrics *metrics.Metrics
	trends  TrendConfig
	horizon int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuthorizer sets the check consulted before destructive actions.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(s *Service) {
		if a != nil {
			s.auth = a
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTrendConfig overrides the detector tuning. Non-positive fields keep
// their defaults.
func WithTrendConfig(c TrendConfig) Option {
	return func(s *Service) {
		if c.Months > 0 {
			s.trends.Months = c.Months
		}
		if c.ThresholdPercent > 0 {
			s.trends.ThresholdPercent = c.ThresholdPercent
		}
	}
}

// WithHorizonDays sets how many days ahead the dashboard lists pending expenses.
func WithHorizonDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizon = days
		}
	}
}

// New builds a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		now:     time.Now,
		log:     zap.NewNop(),
		auth:    auth.DenyAll,
		trends:  DefaultTrendConfig,
		horizon: DefaultHorizonDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// notFound maps store.ErrNotFound to the taxonomy and passes everything else through.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

// logFailure logs store faults at Error and caller errors at Debug.
func (s *Service) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperr.KindOf(err) == apperr.KindInternal {
		s.log.Error(op+" failed", fields...)
		return
	}
	s.log.Debug(op+" rejected", fields...)
}
