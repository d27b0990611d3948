package daemon

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultInstantiateSchedule runs month instantiation shortly after midnight
// on the first of every month.
const DefaultInstantiateSchedule = "5 0 1 * *"

// scheduler runs a single job on a standard five-field cron expression.
type scheduler struct {
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

func newScheduler(schedule string, logger *zap.Logger, job func()) (*scheduler, error) {
	if schedule == "" {
		schedule = DefaultInstantiateSchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, fmt.Errorf("invalid instantiate schedule %q: %w", schedule, err)
	}
	return &scheduler{schedule: schedule, cron: c, logger: logger}, nil
}

// Start starts the scheduler. Starting twice is a no-op.
func (s *scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Debug("scheduler started", zap.String("schedule", s.schedule))
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Debug("scheduler stopped")
}

// ValidateSchedule reports whether schedule parses as a five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}
