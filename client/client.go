// Package client is the host-facing API: enqueue and schedule jobs, manage
// periodic definitions and hint idle runners that work was added.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/lock"
	"github.com/RezaEskandarii/firejobs/internal/periodic"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// Notifier delivers quick-poll hints.
type Notifier interface {
	NotifyJobsAdded(ctx context.Context, queue string)
}

type Client struct {
	store       store.JobStore
	validator   periodic.Validator
	queues      map[string]bool
	notifier    Notifier
	lockTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Client)

// WithNotifier makes Enqueue and NotifyJobsAdded signal runners.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithLockTimeout bounds how long EnsurePeriodic waits for the periodic lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Client) { c.lockTimeout = d }
}

// New returns a Client accepting jobs for the given queues. An empty queue
// argument in any operation means config.DefaultQueue.
func New(s store.JobStore, v periodic.Validator, queues []string, opts ...Option) *Client {
	c := &Client{
		store:       s,
		validator:   v,
		queues:      make(map[string]bool, len(queues)),
		lockTimeout: config.DefaultPeriodicLockTimeout,
		now:         store.UTCNow,
		logger:      slog.Default(),
	}
	for _, q := range queues {
		c.queues[q] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue stores a job due now and signals the runners of its queue.
func (c *Client) Enqueue(ctx context.Context, inv types.Invocation, queue string) (types.Job, error) {
	job, err := c.insert(ctx, inv, c.now(), queue)
	if err != nil {
		return types.Job{}, err
	}
	if c.notifier != nil {
		c.notifier.NotifyJobsAdded(ctx, job.Queue)
	}
	return job, nil
}

// ScheduleAt stores a job due at when.
func (c *Client) ScheduleAt(ctx context.Context, inv types.Invocation, when time.Time, queue string) (types.Job, error) {
	return c.insert(ctx, inv, when.UTC(), queue)
}

// ScheduleIn stores a job due after delay.
func (c *Client) ScheduleIn(ctx context.Context, inv types.Invocation, delay time.Duration, queue string) (types.Job, error) {
	return c.insert(ctx, inv, c.now().Add(delay), queue)
}

func (c *Client) insert(ctx context.Context, inv types.Invocation, scheduledAt time.Time, queue string) (types.Job, error) {
	queue, err := c.queue(queue)
	if err != nil {
		return types.Job{}, err
	}
	args, err := c.validator.Validate(inv)
	if err != nil {
		return types.Job{}, fmt.Errorf("enqueue %s.%s: %w", inv.TypeName, inv.MethodName, err)
	}
	job, err := c.store.Enqueue(ctx, types.Job{
		ScheduledAt: scheduledAt.Truncate(time.Microsecond),
		Queue:       queue,
		TypeName:    inv.TypeName,
		MethodName:  inv.MethodName,
		MethodArgs:  args,
	})
	if err != nil {
		return types.Job{}, err
	}
	c.logger.Debug("job enqueued", "job_id", job.ID, "queue", queue, "scheduled_at", job.ScheduledAt)
	return job, nil
}

// EnsurePeriodic creates or updates the periodic job id. Calling it again
// with the same definition changes nothing.
func (c *Client) EnsurePeriodic(ctx context.Context, inv types.Invocation, id, cronExpression, queue string) (types.PeriodicJob, error) {
	queue, err := c.queue(queue)
	if err != nil {
		return types.PeriodicJob{}, err
	}
	def, err := periodic.NewDefinition(c.validator, id, cronExpression, queue, inv)
	if err != nil {
		return types.PeriodicJob{}, err
	}

	var (
		p      types.PeriodicJob
		action periodic.Action
	)
	err = c.store.WithNamedLock(ctx, lock.PeriodicJobResource, c.lockTimeout, func(tx store.Tx) error {
		var err error
		p, action, err = periodic.Ensure(ctx, tx, def, c.now())
		return err
	})
	if err != nil {
		return types.PeriodicJob{}, fmt.Errorf("ensure periodic job %q: %w", id, err)
	}
	c.logger.Info("periodic job ensured", "periodic_job_id", id, "queue", queue, "action", action, "version", p.Version)
	return p, nil
}

// DeletePeriodic removes the definition. Occurrences already enqueued stay
// and get skipped when they run. It reports whether the definition existed.
func (c *Client) DeletePeriodic(ctx context.Context, id string) (bool, error) {
	deleted, err := c.store.DeletePeriodic(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		c.logger.Info("periodic job deleted", "periodic_job_id", id)
	}
	return deleted, nil
}

// SetPeriodicActive activates or deactivates a definition. Occurrences of an
// inactive definition are skipped and do not spawn successors.
func (c *Client) SetPeriodicActive(ctx context.Context, id string, active bool) error {
	p, err := c.store.FindPeriodic(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", custom_errors.ErrPeriodicNotFound, id)
	}
	return c.store.SetPeriodicActive(ctx, id, active)
}

// NotifyJobsAdded hints the runners of queue that jobs were added by other
// means than Enqueue.
func (c *Client) NotifyJobsAdded(ctx context.Context, queue string) error {
	queue, err := c.queue(queue)
	if err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.NotifyJobsAdded(ctx, queue)
	}
	return nil
}

// Pending lists the jobs of queue that have not reached a terminal state.
func (c *Client) Pending(ctx context.Context, queue string, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	return c.store.ListPending(ctx, queue, page, pageSize)
}

func (c *Client) History(ctx context.Context, filter store.HistoryFilter, page, pageSize int) (*types.PaginationResult[types.JobHistory], error) {
	return c.store.ListHistory(ctx, filter, page, pageSize)
}

func (c *Client) queue(name string) (string, error) {
	if name == "" {
		name = config.DefaultQueue
	}
	if !c.queues[name] {
		return "", fmt.Errorf("%w: %q", custom_errors.ErrUnknownQueue, name)
	}
	return name, nil
}
