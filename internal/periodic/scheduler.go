package periodic

import (
	"context"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/lock"
	"github.com/RezaEskandarii/firejobs/internal/metrics"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
)

// Group is the set of definitions declared for one queue.
type Group struct {
	Queue       string
	Definitions []types.PeriodicDefinition
}

// Scheduler reconciles every Group on a fixed interval, one named-lock
// transaction per group.
type Scheduler struct {
	store       store.JobStore
	groups      []Group
	interval    time.Duration
	lockTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(s store.JobStore, groups []Group, interval, lockTimeout time.Duration, opts ...Option) *Scheduler {
	sch := &Scheduler{
		store:       s,
		groups:      groups,
		interval:    interval,
		lockTimeout: lockTimeout,
		now:         store.UTCNow,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Run ticks immediately and then every interval until ctx ends. A tick in
// progress is finished before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("periodic scheduler started", "interval", s.interval, "groups", len(s.groups))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			s.logger.Info("periodic scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick reconciles every group. A group whose lock or transaction fails is
// rolled back and logged; the remaining groups still run.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, g := range s.groups {
		if len(g.Definitions) == 0 {
			continue
		}
		if err := s.reconcile(ctx, g); err != nil {
			s.metrics.PeriodicTick(g.Queue, "error")
			s.logger.Error("periodic tick failed", "queue", g.Queue, "error", err)
			continue
		}
		s.metrics.PeriodicTick(g.Queue, "ok")
	}
}

func (s *Scheduler) reconcile(ctx context.Context, g Group) error {
	counts := make(map[Action]int)
	err := s.store.WithNamedLock(ctx, lock.PeriodicJobResource, s.lockTimeout, func(tx store.Tx) error {
		now := s.now()
		for _, def := range g.Definitions {
			_, action, err := Ensure(ctx, tx, def, now)
			if err != nil {
				return err
			}
			counts[action]++
			if action != Unchanged {
				s.logger.Debug("periodic job reconciled", "periodic_job_id", def.ID, "queue", g.Queue, "action", action)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("periodic tick",
		"queue", g.Queue,
		"created", counts[Created],
		"updated", counts[Updated],
		"repaired", counts[Repaired],
		"unchanged", counts[Unchanged])
	return nil
}
