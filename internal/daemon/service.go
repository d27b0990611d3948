// Package daemon provides the long-running bookkeeping service: a polled
// dashboard snapshot, a change-event feed, the month instantiation schedule
// and an HTTP API over the ledger.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/metrics"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr                string
	Interval            time.Duration
	EventsBuffer        int
	InstantiateSchedule string
	// Actor is recorded as the payer for payments made through the API
	// when the request names none.
	Actor string
}

// Snapshot is a compact dashboard state for status/event payloads.
type Snapshot struct {
	At           time.Time       `json:"at"`
	Period       string          `json:"period"`
	Overdue      int             `json:"overdue"`
	DueToday     int             `json:"due_today"`
	Critical     int             `json:"critical"`
	Important    int             `json:"important"`
	Normal       int             `json:"normal"`
	TotalPending decimal.Decimal `json:"total_pending"`
	AtRisk       decimal.Decimal `json:"discounts_at_risk"`
	Budgeted     decimal.Decimal `json:"budgeted"`
	Spent        decimal.Decimal `json:"spent"`
	Exceeded     int             `json:"budgets_exceeded"`
	ActiveTrends int             `json:"active_trend_alerts"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Overdue      int             `json:"overdue"`
	DueToday     int             `json:"due_today"`
	Critical     int             `json:"critical"`
	Important    int             `json:"important"`
	Normal       int             `json:"normal"`
	TotalPending decimal.Decimal `json:"total_pending"`
	Spent        decimal.Decimal `json:"spent"`
	Exceeded     int             `json:"budgets_exceeded"`
	ActiveTrends int             `json:"active_trend_alerts"`
}

func (d Delta) isZero() bool {
	return d.Overdue == 0 &&
		d.DueToday == 0 &&
		d.Critical == 0 &&
		d.Important == 0 &&
		d.Normal == 0 &&
		d.TotalPending.IsZero() &&
		d.Spent.IsZero() &&
		d.Exceeded == 0 &&
		d.ActiveTrends == 0
}

// Event types.
const (
	EventSnapshot       = "snapshot"
	EventDashboardDelta = "dashboard_delta"
	EventInstantiated   = "month_instantiated"
)

// Event is emitted whenever the dashboard snapshot changes or a scheduled
// job completes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	Message   string    `json:"message,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	RunID               string    `json:"run_id"`
	StartedAt           time.Time `json:"started_at"`
	LastPollAt          time.Time `json:"last_poll_at"`
	PollIntervalSec     int       `json:"poll_interval_sec"`
	PollCount           int64     `json:"poll_count"`
	InstantiateSchedule string    `json:"instantiate_schedule"`
	LastInstantiateAt   time.Time `json:"last_instantiate_at"`
	Summary             Snapshot  `json:"summary"`
	LastError           string    `json:"last_error,omitempty"`
	EventCount          int       `json:"event_count"`
	SubscriberCount     int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg     Config
	ledger  *ledger.Service
	metrics *metrics.Metrics
	log     *zap.Logger
	runID   string

	mu                sync.RWMutex
	startedAt         time.Time
	lastPollAt        time.Time
	lastInstantiateAt time.Time
	pollCount         int64
	lastError         string
	hasSnapshot       bool
	snapshot          Snapshot
	nextEventID       int64
	events            []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config. A nil metrics
// gets a private registry so /metrics always has something to serve.
func New(cfg Config, l *ledger.Service, m *metrics.Metrics, log *zap.Logger) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.InstantiateSchedule == "" {
		cfg.InstantiateSchedule = DefaultInstantiateSchedule
	}
	if cfg.Actor == "" {
		cfg.Actor = "daemon"
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		cfg:       cfg,
		ledger:    l,
		metrics:   m,
		log:       log,
		runID:     uuid.NewString(),
		startedAt: l.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints, the instantiation schedule and polling until
// ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	app := s.App()

	sched, err := newScheduler(s.cfg.InstantiateSchedule, s.log, func() { s.instantiateCurrent(ctx) })
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := app.Listen(s.cfg.Addr); err != nil {
			errCh <- err
		}
	}()

	// Create this month's budgets before the first snapshot so it reflects them.
	s.instantiateCurrent(ctx)
	s.pollOnce(ctx)

	sched.Start()
	defer sched.Stop()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info("daemon started",
		zap.String("run_id", s.runID),
		zap.String("addr", s.cfg.Addr),
		zap.Duration("interval", s.cfg.Interval),
		zap.String("instantiate_schedule", sched.schedule),
	)

	for {
		select {
		case <-ctx.Done():
			if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
				return fmt.Errorf("daemon http shutdown: %w", err)
			}
			return nil
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	start := time.Now()
	snap, err := s.buildSnapshot(ctx)
	s.metrics.ObserveSnapshot(time.Since(start).Seconds())
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = s.ledger.Now()
		s.pollCount++
		s.mu.Unlock()
		s.log.Error("daemon poll failed", zap.Error(err))
		return
	}
	s.record(snap)
}

// record stores snap as the current snapshot and publishes a snapshot event
// on the first poll or a delta event when anything changed.
func (s *Service) record(snap Snapshot) {
	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = snap.At
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      EventSnapshot,
			Timestamp: snap.At,
			Snapshot:  snap,
		}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      EventDashboardDelta,
			Timestamp: snap.At,
			Snapshot:  snap,
			Delta:     delta,
		}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) buildSnapshot(ctx context.Context) (Snapshot, error) {
	now := s.ledger.Now()
	dash, err := s.ledger.Dashboard(ctx, now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: %w", err)
	}
	cur := period.Of(now)
	sum, err := s.ledger.BudgetSummary(ctx, cur)
	if err != nil {
		return Snapshot{}, fmt.Errorf("budget summary: %w", err)
	}
	trends, err := s.ledger.ListTrendAlerts(ctx, true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("trend alerts: %w", err)
	}
	return snapshotFrom(now, cur, dash, sum, len(trends)), nil
}

func snapshotFrom(at time.Time, cur period.Month, dash ledger.Dashboard, sum ledger.Summary, activeTrends int) Snapshot {
	return Snapshot{
		At:           at,
		Period:       cur.String(),
		Overdue:      len(dash.Buckets[model.UrgencyOverdue]),
		DueToday:     len(dash.Buckets[model.UrgencyDueToday]),
		Critical:     len(dash.Buckets[model.UrgencyCritical]),
		Important:    len(dash.Buckets[model.UrgencyImportant]),
		Normal:       len(dash.Buckets[model.UrgencyNormal]),
		TotalPending: dash.TotalPending,
		AtRisk:       dash.AtRisk,
		Budgeted:     sum.Budgeted,
		Spent:        sum.Spent,
		Exceeded:     sum.Exceeded,
		ActiveTrends: activeTrends,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Overdue:      curr.Overdue - prev.Overdue,
		DueToday:     curr.DueToday - prev.DueToday,
		Critical:     curr.Critical - prev.Critical,
		Important:    curr.Important - prev.Important,
		Normal:       curr.Normal - prev.Normal,
		TotalPending: curr.TotalPending.Sub(prev.TotalPending),
		Spent:        curr.Spent.Sub(prev.Spent),
		Exceeded:     curr.Exceeded - prev.Exceeded,
		ActiveTrends: curr.ActiveTrends - prev.ActiveTrends,
	}
}

// instantiateCurrent creates the current month's budgets from the active
// templates. It is safe to run repeatedly.
func (s *Service) instantiateCurrent(ctx context.Context) {
	m := period.Of(s.ledger.Now())
	res, err := s.ledger.InstantiateMonth(ctx, m)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.log.Error("month instantiation failed", zap.String("period", m.String()), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastInstantiateAt = s.ledger.Now()
	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      EventInstantiated,
		Timestamp: s.lastInstantiateAt,
		Snapshot:  s.snapshot,
		Message:   fmt.Sprintf("%s: %d created, %d existing, %d errors", m, res.Created, res.Existing, res.Errors),
	}
	s.mu.Unlock()

	s.log.Info("month instantiated",
		zap.String("period", m.String()),
		zap.Int("created", res.Created),
		zap.Int("existing", res.Existing),
		zap.Int("errors", res.Errors),
	)
	if res.Created > 0 || res.Errors > 0 {
		s.publishEvent(ev)
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

// eventsSince returns a copy of the buffered events with ID > since.
func (s *Service) eventsSince(since int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.ID > since {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		RunID:               s.runID,
		StartedAt:           s.startedAt,
		LastPollAt:          s.lastPollAt,
		PollIntervalSec:     int(s.cfg.Interval.Seconds()),
		PollCount:           s.pollCount,
		InstantiateSchedule: s.cfg.InstantiateSchedule,
		LastInstantiateAt:   s.lastInstantiateAt,
		Summary:             s.snapshot,
		LastError:           s.lastError,
		EventCount:          len(s.events),
		SubscriberCount:     len(s.subs),
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
