package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/types"
)

// JobStore owns the job, job_history and job_periodic relations.
type JobStore interface {
	// Enqueue inserts a pending job and returns it with its assigned ID.
	Enqueue(ctx context.Context, job types.Job) (types.Job, error)

	// ClaimJobs leases up to p.MaxJobs due jobs of p.Queue to p.Leaser and
	// returns them oldest first.
	ClaimJobs(ctx context.Context, p dialect.ClaimParams) ([]types.Job, error)

	// ExtendLeases moves the lease expiry of every row held by leaser.
	ExtendLeases(ctx context.Context, leaser string, until time.Time) (int64, error)

	// ClearLeases releases every row held by leaser.
	ClearLeases(ctx context.Context, leaser string) (int64, error)

	// FindPeriodicJobs loads the periodic jobs with the given IDs in one
	// query. Missing IDs are absent from the map.
	FindPeriodicJobs(ctx context.Context, ids []string) (map[string]types.PeriodicJob, error)

	FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error)

	// DeletePeriodic removes a periodic definition. Occurrences already
	// spawned are left alone and get skipped when they run.
	DeletePeriodic(ctx context.Context, id string) (bool, error)

	// SetPeriodicActive returns custom_errors.ErrPeriodicNotFound for an
	// unknown id.
	SetPeriodicActive(ctx context.Context, id string, active bool) error

	ListPending(ctx context.Context, queue string, page, pageSize int) (*types.PaginationResult[types.Job], error)

	ListHistory(ctx context.Context, filter HistoryFilter, page, pageSize int) (*types.PaginationResult[types.JobHistory], error)

	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// WithNamedLock holds the named cross-process lock while fn runs in a
	// transaction. The lock is released after the transaction ends.
	WithNamedLock(ctx context.Context, name string, timeout time.Duration, fn func(tx Tx) error) error

	Ping(ctx context.Context) error

	Close() error
}

// Tx is the set of operations the outcome recorder and the periodic
// scheduler perform atomically.
type Tx interface {
	InsertJob(ctx context.Context, job types.Job) (types.Job, error)

	// DeleteJob removes the job only while leaser still holds it. It reports
	// false when the row is gone or leased to someone else.
	DeleteJob(ctx context.Context, id int64, leaser string) (bool, error)

	InsertHistory(ctx context.Context, history types.JobHistory) error

	// FindPeriodic returns nil without error when id is unknown.
	FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error)

	InsertPeriodic(ctx context.Context, p types.PeriodicJob) error

	UpdatePeriodic(ctx context.Context, p types.PeriodicJob) error

	// CountPendingForPeriodic counts the pending occurrences of a periodic job.
	CountPendingForPeriodic(ctx context.Context, id string) (int, error)

	DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// HistoryFilter narrows ListHistory. Zero fields match everything.
type HistoryFilter struct {
	Queue         string
	Status        types.JobStatus
	PeriodicJobID string
}

// UTCNow is the clock every component uses by default: UTC, truncated to
// the microsecond precision the databases keep.
func UTCNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
