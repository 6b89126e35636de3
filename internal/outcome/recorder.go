// Package outcome commits the state transition of one job attempt: the job
// row leaves the pending relation and a history row is appended, in the
// same transaction.
package outcome

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/metrics"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/pgk/parser"
	"github.com/RezaEskandarii/firejobs/pgk/retry"
	"github.com/RezaEskandarii/firejobs/types"
)

type Recorder struct {
	store   store.JobStore
	policy  retry.Policy
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(s store.JobStore, policy retry.Policy, opts ...Option) *Recorder {
	r := &Recorder{
		store:  s,
		policy: policy,
		now:    store.UTCNow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy = retry.NewDefaultPolicy()
	}
	return r
}

// Complete records a successful attempt and, for a periodic job whose
// parent still matches it, schedules the parent's next occurrence.
func (r *Recorder) Complete(ctx context.Context, job types.Job, leaser string) error {
	return r.finish(ctx, job, leaser, types.StatusCompleted)
}

// Skip records a periodic occurrence that was not executed because its
// parent is gone, inactive or redefined.
func (r *Recorder) Skip(ctx context.Context, job types.Job, leaser string) error {
	return r.finish(ctx, job, leaser, types.StatusSkipped)
}

// Fail records a failed attempt. While the retry policy yields a next
// attempt the job is re-inserted with the incremented error count and the
// status is Failed; once it is exhausted the status is Cancelled. Neither
// case schedules a periodic successor.
func (r *Recorder) Fail(ctx context.Context, job types.Job, leaser string, cause error, stack string) (types.JobStatus, error) {
	now := r.now()
	errorCount := job.ErrorCount + 1
	nextAttempt, retrying := r.policy.NextAttempt(errorCount, now)

	status := types.StatusCancelled
	if retrying {
		status = types.StatusFailed
	}

	err := r.store.InTx(ctx, func(tx store.Tx) error {
		if err := r.consume(ctx, tx, job, leaser); err != nil {
			return err
		}

		h := types.NewJobHistory(job, status, now)
		h.ErrorCount = errorCount
		if cause != nil {
			msg := cause.Error()
			h.ErrorMessage = &msg
		}
		if stack != "" {
			h.ErrorStackTrace = &stack
		}
		if err := tx.InsertHistory(ctx, h); err != nil {
			return err
		}

		if !retrying {
			return nil
		}
		again := job
		again.ID = 0
		again.ErrorCount = errorCount
		again.ScheduledAt = nextAttempt
		again.Leaser, again.LeasedUntil = nil, nil
		_, err := tx.InsertJob(ctx, again)
		return err
	})
	if err != nil {
		return "", err
	}

	r.metrics.Outcome(job.Queue, status)
	if retrying {
		r.logger.Warn("job failed, retry scheduled",
			"job_id", job.ID, "queue", job.Queue, "error_count", errorCount,
			"next_attempt", nextAttempt, "error", cause)
	} else {
		r.logger.Error("job failed, retries exhausted",
			"job_id", job.ID, "queue", job.Queue, "error_count", errorCount, "error", cause)
	}
	return status, nil
}

func (r *Recorder) finish(ctx context.Context, job types.Job, leaser string, status types.JobStatus) error {
	now := r.now()
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		if err := r.consume(ctx, tx, job, leaser); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, types.NewJobHistory(job, status, now)); err != nil {
			return err
		}
		if job.IsPeriodic() {
			return r.scheduleNext(ctx, tx, job, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.metrics.Outcome(job.Queue, status)
	r.logger.Debug("job recorded", "job_id", job.ID, "queue", job.Queue, "status", status)
	return nil
}

// consume deletes the job row, failing when the lease was lost to
// another worker in the meantime.
func (r *Recorder) consume(ctx context.Context, tx store.Tx, job types.Job, leaser string) error {
	ok, err := tx.DeleteJob(ctx, job.ID, leaser)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %d is no longer held by %s", custom_errors.ErrLeaseLost, job.ID, leaser)
	}
	return nil
}

// scheduleNext re-reads the parent inside the transaction so that a
// concurrent redefinition is seen.
func (r *Recorder) scheduleNext(ctx context.Context, tx store.Tx, job types.Job, now time.Time) error {
	parent, err := tx.FindPeriodic(ctx, *job.PeriodicJobID)
	if err != nil {
		return err
	}
	if parent == nil || !parent.IsActive || !parent.CompatibleWith(job) {
		r.logger.Debug("periodic successor not scheduled", "job_id", job.ID, "periodic_job_id", *job.PeriodicJobID)
		return nil
	}

	next, err := parser.NextUtc(parent.CronExpression, now)
	if err != nil {
		return err
	}
	_, err = tx.InsertJob(ctx, parent.Occurrence(next))
	return err
}
