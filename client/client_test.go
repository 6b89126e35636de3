package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/executor"
	"github.com/RezaEskandarii/firejobs/internal/lock"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/internal/store/mocks"
	"github.com/RezaEskandarii/firejobs/internal/testutil"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	queues []string
}

func (n *recordingNotifier) NotifyJobsAdded(_ context.Context, queue string) {
	n.queues = append(n.queues, queue)
}

func newValidator(t *testing.T) *executor.Executor {
	t.Helper()
	registry := config.NewJobHandler()
	require.NoError(t, registry.Register("Mailer", "Send", func(ctx context.Context, to string, retries int) error { return nil }))
	require.NoError(t, registry.Register("Report", "Build", func() {}))
	return executor.New(registry)
}

func newClient(t *testing.T, s store.JobStore, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(s, newValidator(t), []string{config.DefaultQueue, "reports"}, opts...)
}

func TestClient_EnqueueNotifiesQueue(t *testing.T) {
	var inserted types.Job
	s := &mocks.MockJobStore{
		EnqueueFunc: func(_ context.Context, job types.Job) (types.Job, error) {
			inserted = job
			job.ID = 42
			return job, nil
		},
	}
	n := &recordingNotifier{}
	c := newClient(t, s, WithNotifier(n))

	job, err := c.Enqueue(context.Background(), types.NewInvocation("Mailer", "Send", "a@b.c", 3), "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, config.DefaultQueue, inserted.Queue)
	assert.Equal(t, testNow, inserted.ScheduledAt)
	assert.Equal(t, `["a@b.c",3]`, inserted.MethodArgs)
	assert.Equal(t, []string{config.DefaultQueue}, n.queues)
}

func TestClient_ScheduleDoesNotNotify(t *testing.T) {
	var scheduled []time.Time
	s := &mocks.MockJobStore{
		EnqueueFunc: func(_ context.Context, job types.Job) (types.Job, error) {
			scheduled = append(scheduled, job.ScheduledAt)
			return job, nil
		},
	}
	n := &recordingNotifier{}
	c := newClient(t, s, WithNotifier(n))
	ctx := context.Background()

	when := time.Date(2026, 3, 11, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	_, err := c.ScheduleAt(ctx, types.NewInvocation("Report", "Build"), when, "reports")
	require.NoError(t, err)
	_, err = c.ScheduleIn(ctx, types.NewInvocation("Report", "Build"), time.Hour, "reports")
	require.NoError(t, err)

	require.Len(t, scheduled, 2)
	assert.Equal(t, when.UTC(), scheduled[0])
	assert.Equal(t, time.UTC, scheduled[0].Location())
	assert.Equal(t, testNow.Add(time.Hour), scheduled[1])
	assert.Empty(t, n.queues)
}

func TestClient_EnqueueRejections(t *testing.T) {
	s := &mocks.MockJobStore{
		EnqueueFunc: func(context.Context, types.Job) (types.Job, error) {
			t.Fatal("nothing should be stored")
			return types.Job{}, nil
		},
	}
	c := newClient(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		inv     types.Invocation
		queue   string
		wantErr error
	}{
		{"unknown queue", types.NewInvocation("Report", "Build"), "nowhere", custom_errors.ErrUnknownQueue},
		{"unknown handler", types.NewInvocation("Report", "Delete"), "", custom_errors.ErrHandlerNotFound},
		{"wrong arity", types.NewInvocation("Mailer", "Send", "a@b.c"), "", custom_errors.ErrHandlerNotFound},
		{"wrong argument type", types.NewInvocation("Mailer", "Send", "a@b.c", "three"), "", custom_errors.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Enqueue(ctx, tt.inv, tt.queue)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_EnqueueStoreError(t *testing.T) {
	s := &mocks.MockJobStore{
		EnqueueFunc: func(context.Context, types.Job) (types.Job, error) { return types.Job{}, errors.New("disk full") },
	}
	n := &recordingNotifier{}
	c := newClient(t, s, WithNotifier(n))

	_, err := c.Enqueue(context.Background(), types.NewInvocation("Report", "Build"), "")
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, n.queues)
}

func TestClient_EnsurePeriodicVersioning(t *testing.T) {
	s := testutil.NewSQLiteStore(t, func() time.Time { return testNow })
	c := newClient(t, s)
	ctx := context.Background()
	inv := types.NewInvocation("Report", "Build")

	p, err := c.EnsurePeriodic(ctx, inv, "daily-report", "0 0 0 * * *", "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	pending, err := c.Pending(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, pending.TotalItems)
	first := pending.Items[0]
	require.NotNil(t, first.PeriodicJobID)
	assert.Equal(t, "daily-report", *first.PeriodicJobID)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), first.ScheduledAt)

	// same definition again
	p, err = c.EnsurePeriodic(ctx, inv, "daily-report", "0 0 0 * * *", "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	pending, err = c.Pending(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.TotalItems)

	p, err = c.EnsurePeriodic(ctx, inv, "daily-report", "0 0 6 * * *", "")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)
	pending, err = c.Pending(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, pending.TotalItems)
	assert.Equal(t, first.ID, pending.Items[0].ID, "the stale occurrence is kept")
	assert.Equal(t, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC), pending.Items[1].ScheduledAt)
}

func TestClient_EnsurePeriodicUsesPeriodicLock(t *testing.T) {
	var lockName string
	var lockTimeout time.Duration
	s := &mocks.MockJobStore{
		WithNamedLockFunc: func(_ context.Context, name string, timeout time.Duration) error {
			lockName, lockTimeout = name, timeout
			return custom_errors.ErrLockNotAcquired
		},
	}
	c := newClient(t, s, WithLockTimeout(3*time.Second))

	_, err := c.EnsurePeriodic(context.Background(), types.NewInvocation("Report", "Build"), "nightly", "0 0 * * *", "reports")
	assert.ErrorIs(t, err, custom_errors.ErrLockNotAcquired)
	assert.Equal(t, lock.PeriodicJobResource, lockName)
	assert.Equal(t, 3*time.Second, lockTimeout)
}

func TestClient_EnsurePeriodicRejectsInvalidCron(t *testing.T) {
	c := newClient(t, &mocks.MockJobStore{})
	_, err := c.EnsurePeriodic(context.Background(), types.NewInvocation("Report", "Build"), "bad", "every day", "")
	assert.ErrorIs(t, err, custom_errors.ErrInvalidCron)
}

func TestClient_DeleteAndActivatePeriodic(t *testing.T) {
	s := testutil.NewSQLiteStore(t, func() time.Time { return testNow })
	c := newClient(t, s)
	ctx := context.Background()

	_, err := c.EnsurePeriodic(ctx, types.NewInvocation("Report", "Build"), "hourly", "0 * * * *", "reports")
	require.NoError(t, err)

	require.NoError(t, c.SetPeriodicActive(ctx, "hourly", false))
	p, err := s.FindPeriodic(ctx, "hourly")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.IsActive)

	assert.ErrorIs(t, c.SetPeriodicActive(ctx, "missing", true), custom_errors.ErrPeriodicNotFound)

	deleted, err := c.DeletePeriodic(ctx, "hourly")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = c.DeletePeriodic(ctx, "hourly")
	require.NoError(t, err)
	assert.False(t, deleted)

	pending, err := c.Pending(ctx, "reports", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.TotalItems, "spawned occurrences survive the delete")
}

func TestClient_NotifyJobsAdded(t *testing.T) {
	n := &recordingNotifier{}
	c := newClient(t, &mocks.MockJobStore{}, WithNotifier(n))
	ctx := context.Background()

	require.NoError(t, c.NotifyJobsAdded(ctx, "reports"))
	require.NoError(t, c.NotifyJobsAdded(ctx, ""))
	assert.ErrorIs(t, c.NotifyJobsAdded(ctx, "nowhere"), custom_errors.ErrUnknownQueue)
	assert.Equal(t, []string{"reports", config.DefaultQueue}, n.queues)
}
