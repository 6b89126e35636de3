package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/periodic"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

func newSQLiteConfig(t *testing.T, opts ...config.ContainerOption) *config.Config {
	t.Helper()
	opts = append([]config.ContainerOption{
		config.WithSQLiteConfig(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "app.db")}),
		config.WithPollingInterval(1),
		config.WithIsolatedQueue(config.QueueConfig{Name: "reports"}),
	}, opts...)
	cfg, err := config.NewConfig("app-test", opts...)
	require.NoError(t, err)
	return cfg
}

func TestContainer_RunsEnqueuedJobs(t *testing.T) {
	cfg := newSQLiteConfig(t)
	var sent atomic.Int32
	require.NoError(t, cfg.RegisterHandler(config.MethodHandler{
		TypeName: "Mailer", MethodName: "Send",
		Func: func(ctx context.Context, to string) error {
			sent.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := NewContainer(ctx, cfg, WithMigrations())
	require.NoError(t, err)
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	_, err = c.Client.Enqueue(ctx, types.NewInvocation("Mailer", "Send", "ops@example.com"), "")
	require.NoError(t, err)
	_, err = c.Client.Enqueue(ctx, types.NewInvocation("Mailer", "Send", "bi@example.com"), "reports")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sent.Load() == 2 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		page, err := c.Store.ListHistory(ctx, store.HistoryFilter{Status: types.StatusCompleted}, 1, 10)
		return err == nil && page.TotalItems == 2
	}, 5*time.Second, 20*time.Millisecond)

	purge, err := c.Store.FindPeriodic(ctx, periodic.PurgeHistoryID)
	require.NoError(t, err)
	require.NotNil(t, purge, "the scheduler ticks once on start")
	assert.Equal(t, config.DefaultQueue, purge.Queue)
	assert.Equal(t, `[30]`, purge.MethodArgs)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("container did not stop")
	}
	assert.Len(t, c.Dispatcher.Runners(), 2)
}

func TestContainer_RejectsPeriodicJobWithoutHandler(t *testing.T) {
	cfg := newSQLiteConfig(t, config.WithPeriodicJob(config.PeriodicJobConfig{
		ID:             "nightly-report",
		CronExpression: "0 0 * * *",
		Invocation:     types.NewInvocation("Report", "Build"),
	}, "reports"))

	_, err := NewContainer(context.Background(), cfg, WithMigrations())
	require.Error(t, err)
	assert.ErrorIs(t, err, custom_errors.ErrHandlerNotFound)
}

func TestContainer_AdminServerIsOptional(t *testing.T) {
	cfg := newSQLiteConfig(t)
	c, err := NewContainer(context.Background(), cfg, WithMigrations())
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Admin)
	assert.Nil(t, c.MessageBroker)

	cfg = newSQLiteConfig(t, config.WithMetricsAddr("127.0.0.1:0"))
	c2, err := NewContainer(context.Background(), cfg, WithMigrations())
	require.NoError(t, err)
	defer c2.Close()
	require.NotNil(t, c2.Admin)
	assert.Equal(t, "127.0.0.1:0", c2.Admin.Addr)
}
