// Package runner polls queues, claims batches of due jobs and executes
// them under a lease that is kept alive while the batch runs.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/executor"
	"github.com/RezaEskandarii/firejobs/internal/metrics"
	"github.com/RezaEskandarii/firejobs/internal/quickpoll"
	"github.com/RezaEskandarii/firejobs/internal/state"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// maxBackoffSteps caps the failure backoff at five poll intervals.
const maxBackoffSteps = 5

type Executor interface {
	Execute(ctx context.Context, job types.Job) executor.Result
}

type Recorder interface {
	Complete(ctx context.Context, job types.Job, leaser string) error
	Skip(ctx context.Context, job types.Job, leaser string) error
	Fail(ctx context.Context, job types.Job, leaser string, cause error, stack string) (types.JobStatus, error)
}

// Deps are shared by every runner of a process.
type Deps struct {
	Store             store.JobStore
	Executor          Executor
	Recorder          Recorder
	Hub               *quickpoll.Hub
	ClearLeaseTimeout time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Runner is one worker slot of one queue.
type Runner struct {
	Deps
	queue  config.QueueConfig
	index  int
	leaser string
	logger *slog.Logger
	state  atomic.Value // state.RunnerState
}

func New(deps Deps, queue config.QueueConfig, index int, instance string) *Runner {
	if deps.Now == nil {
		deps.Now = store.UTCNow
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = quickpoll.NewHub()
	}
	leaser := fmt.Sprintf("%s:%s:%d:%s", instance, queue.Name, index, uuid.NewString())
	r := &Runner{
		Deps:   deps,
		queue:  queue,
		index:  index,
		leaser: leaser,
		logger: deps.Logger.With("queue", queue.Name, "worker", index, "leaser", leaser),
	}
	r.state.Store(state.StateIdle)
	return r
}

func (r *Runner) Leaser() string {
	return r.leaser
}

func (r *Runner) State() state.RunnerState {
	return r.state.Load().(state.RunnerState)
}

func (r *Runner) transition(to state.RunnerState) {
	from := r.State()
	if !state.IsValidTransition(from, to) {
		r.logger.Warn("invalid runner state transition", "from", from, "to", to)
	}
	r.state.Store(to)
}

// Run polls until ctx ends, then lets the current batch finish and
// releases the leases it still holds.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started")
	defer r.drain()

	if !sleep(ctx, r.startDelay()) {
		return nil
	}

	var (
		origin   = time.Now()
		next     = origin
		failures int
	)
	for ctx.Err() == nil {
		n, err := r.poll(ctx)
		if err != nil {
			failures++
			r.Metrics.BatchFailed(r.queue.Name)
			backoff := r.queue.PollingInterval * time.Duration(min(failures, maxBackoffSteps))
			r.logger.Error("batch failed", "error", err, "consecutive_failures", failures, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			continue
		}
		failures = 0

		if n >= r.queue.BatchSize {
			continue
		}
		next = nextRun(origin, next, r.queue.PollingInterval, time.Now())
		r.waitForWork(ctx, time.Until(next))
	}
	return nil
}

// startDelay spreads the first polls of the workers of a queue evenly over
// one polling interval.
func (r *Runner) startDelay() time.Duration {
	workers := r.queue.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return time.Duration(r.index) * (r.queue.PollingInterval / time.Duration(workers))
}

// nextRun advances the virtual schedule in whole intervals from origin
// until it is past now, so the phase never drifts with batch durations.
func nextRun(origin, next time.Time, interval time.Duration, now time.Time) time.Time {
	if next.Before(origin) {
		next = origin
	}
	if next.After(now) {
		return next
	}
	steps := now.Sub(origin)/interval + 1
	return origin.Add(steps * interval)
}

// waitForWork sleeps for d, returning early on a quick-poll signal.
func (r *Runner) waitForWork(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-r.Hub.C(r.queue.Name):
		r.logger.Debug("woken by quick-poll")
	}
}

// poll claims and executes one batch and returns the number of claimed jobs.
func (r *Runner) poll(ctx context.Context) (int, error) {
	// Database work of a batch outlives cancellation so that the batch
	// is recorded; job functions still see ctx.
	dbCtx := context.WithoutCancel(ctx)

	r.transition(state.StateClaiming)
	defer r.transition(state.StateIdle)

	stopHeartbeat := r.startHeartbeat(dbCtx)
	defer stopHeartbeat()

	jobs, err := r.Store.ClaimJobs(dbCtx, dialect.ClaimParams{
		Queue:         r.queue.Name,
		MaxJobs:       r.queue.BatchSize,
		Leaser:        r.leaser,
		LeaseDuration: r.queue.LeaseDuration,
		Now:           r.Now(),
	})
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	r.Metrics.JobsClaimed(r.queue.Name, len(jobs))
	r.logger.Debug("batch claimed", "jobs", len(jobs))

	parents, err := r.Store.FindPeriodicJobs(dbCtx, periodicIDs(jobs))
	if err != nil {
		r.releaseLeases(dbCtx)
		return 0, err
	}

	r.transition(state.StateExecuting)
	r.execute(ctx, dbCtx, jobs, parents)
	return len(jobs), nil
}

func (r *Runner) execute(ctx, dbCtx context.Context, jobs []types.Job, parents map[string]types.PeriodicJob) {
	dop := r.queue.MaxDegreeOfParallelism
	if dop < 1 {
		dop = 1
	}
	sem := semaphore.NewWeighted(int64(dop))
	var wg sync.WaitGroup

	for _, job := range jobs {
		if err := sem.Acquire(dbCtx, 1); err != nil {
			r.logger.Error("failed to acquire execution slot", "error", err)
			break
		}
		wg.Add(1)
		go func(job types.Job) {
			defer wg.Done()
			defer sem.Release(1)
			r.process(ctx, dbCtx, job, parents)
		}(job)
	}
	wg.Wait()
}

// process runs one job and records its outcome. Errors stay with the job:
// a failed recording leaves the row leased until expiry.
func (r *Runner) process(ctx, dbCtx context.Context, job types.Job, parents map[string]types.PeriodicJob) {
	logger := r.logger.With("job_id", job.ID)

	if job.IsPeriodic() {
		parent, ok := parents[*job.PeriodicJobID]
		if !ok || !parent.IsActive || !parent.CompatibleWith(job) {
			if err := r.Recorder.Skip(dbCtx, job, r.leaser); err != nil {
				logger.Error("failed to record skipped job", "periodic_job_id", *job.PeriodicJobID, "error", err)
				return
			}
			logger.Info("stale periodic occurrence skipped", "periodic_job_id", *job.PeriodicJobID)
			return
		}
	}

	res := r.Executor.Execute(ctx, job)
	r.Metrics.JobDuration(job.Queue, job.TypeName, job.MethodName, res.Duration)

	if res.Succeeded() {
		if err := r.Recorder.Complete(dbCtx, job, r.leaser); err != nil {
			logger.Error("failed to record completed job", "error", err)
		}
		return
	}
	if _, err := r.Recorder.Fail(dbCtx, job, r.leaser, res.Err, res.Stack); err != nil {
		logger.Error("failed to record job failure", "cause", res.Err, "error", err)
	}
}

// startHeartbeat extends the leases of this runner every three quarters of
// the lease duration until the returned function is called.
func (r *Runner) startHeartbeat(ctx context.Context) func() {
	every := r.queue.LeaseDuration * 3 / 4
	if every <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := r.Store.ExtendLeases(ctx, r.leaser, r.Now().Add(r.queue.LeaseDuration))
				if err != nil {
					r.logger.Warn("failed to extend leases", "error", err)
					continue
				}
				r.Metrics.LeasesExtended(r.queue.Name, n)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) drain() {
	r.transition(state.StateDraining)
	r.releaseLeases(context.Background())
	r.logger.Info("runner stopped")
}

func (r *Runner) releaseLeases(ctx context.Context) {
	timeout := r.ClearLeaseTimeout
	if timeout <= 0 {
		timeout = config.DefaultClearLeaseTimeoutSecond * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if n, err := r.Store.ClearLeases(ctx, r.leaser); err != nil {
		r.logger.Warn("failed to clear leases, they will expire", "error", err)
	} else if n > 0 {
		r.logger.Info("leases cleared", "rows", n)
	}
}

func periodicIDs(jobs []types.Job) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, job := range jobs {
		if job.IsPeriodic() && !seen[*job.PeriodicJobID] {
			seen[*job.PeriodicJobID] = true
			ids = append(ids, *job.PeriodicJobID)
		}
	}
	return ids
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
