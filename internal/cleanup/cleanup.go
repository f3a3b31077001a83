// Package cleanup reclaims instances older than the retention window.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/metrics"
)

// Store is the part of the instance registry the scheduler uses.
type Store interface {
	List(ctx context.Context) ([]instance.Instance, error)
	Expire(ctx context.Context, name string) error
}

// Failure is an expired instance whose removal failed. It stays enumerable
// and is retried on the next tick.
type Failure struct {
	Name string
	Err  error
}

// TickResult summarizes one sweep.
type TickResult struct {
	Inspected int
	Expired   []instance.Instance
	Removed   []string
	Failed    []Failure
	DryRun    bool
}

// Scheduler periodically removes expired instances. It keeps no state
// between ticks.
type Scheduler struct {
	interval  time.Duration
	retention time.Duration
	store     Store
	now       func() time.Time
	dryRun    bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source used to compute instance age.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithDryRun reports expired instances without removing them.
func WithDryRun(enabled bool) Option {
	return func(s *Scheduler) { s.dryRun = enabled }
}

// WithMetrics counts ticks by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler.
func New(interval, retention time.Duration, store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval:  interval,
		retention: retention,
		store:     store,
		now:       time.Now,
		logger:    logging.Component("cleanup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then once per interval. It blocks until the
// context is cancelled; runtime errors never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Debug("starting cleanup scheduler", "interval", s.interval, "retention", s.retention)

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("cleanup scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Expired reports whether inst has reached the retention window at now.
func (s *Scheduler) Expired(inst instance.Instance, now time.Time) bool {
	return inst.Age(now) >= s.retention
}

// Tick runs a single sweep.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	result := TickResult{DryRun: s.dryRun}

	instances, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn("cleanup failed to list instances", "error", err)
		s.metrics.CleanupTick("list_error")
		return result
	}
	result.Inspected = len(instances)

	now := s.now()
	for _, inst := range instances {
		if ctx.Err() != nil {
			break
		}
		if !s.Expired(inst, now) {
			continue
		}
		result.Expired = append(result.Expired, inst)

		if s.dryRun {
			continue
		}

		s.logger.Info("removing expired instance", "name", inst.Name, "owner", inst.Owner, "age", inst.Age(now).Round(time.Second))
		if err := s.store.Expire(ctx, inst.Name); err != nil {
			s.logger.Warn("failed to remove expired instance", "name", inst.Name, "error", err)
			result.Failed = append(result.Failed, Failure{Name: inst.Name, Err: err})
			continue
		}
		result.Removed = append(result.Removed, inst.Name)
	}

	if len(result.Failed) > 0 {
		s.metrics.CleanupTick("partial")
	} else {
		s.metrics.CleanupTick("ok")
	}

	return result
}
