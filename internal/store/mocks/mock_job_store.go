package mocks

import (
	"context"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
)

// MockJobStore is a mock implementation of store.JobStore for testing.
// InTx and WithNamedLock hand Tx to the callback; it defaults to a zero
// MockTx.
type MockJobStore struct {
	EnqueueFunc           func(ctx context.Context, job types.Job) (types.Job, error)
	ClaimJobsFunc         func(ctx context.Context, p dialect.ClaimParams) ([]types.Job, error)
	ExtendLeasesFunc      func(ctx context.Context, leaser string, until time.Time) (int64, error)
	ClearLeasesFunc       func(ctx context.Context, leaser string) (int64, error)
	FindPeriodicJobsFunc  func(ctx context.Context, ids []string) (map[string]types.PeriodicJob, error)
	FindPeriodicFunc      func(ctx context.Context, id string) (*types.PeriodicJob, error)
	DeletePeriodicFunc    func(ctx context.Context, id string) (bool, error)
	SetPeriodicActiveFunc func(ctx context.Context, id string, active bool) error
	ListPendingFunc       func(ctx context.Context, queue string, page, pageSize int) (*types.PaginationResult[types.Job], error)
	ListHistoryFunc       func(ctx context.Context, filter store.HistoryFilter, page, pageSize int) (*types.PaginationResult[types.JobHistory], error)
	WithNamedLockFunc     func(ctx context.Context, name string, timeout time.Duration) error
	PingFunc              func(ctx context.Context) error
	CloseFunc             func() error

	Tx store.Tx
}

var _ store.JobStore = (*MockJobStore)(nil)

func (m *MockJobStore) Enqueue(ctx context.Context, job types.Job) (types.Job, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, job)
	}
	job.ID = 1
	return job, nil
}

func (m *MockJobStore) ClaimJobs(ctx context.Context, p dialect.ClaimParams) ([]types.Job, error) {
	if m.ClaimJobsFunc != nil {
		return m.ClaimJobsFunc(ctx, p)
	}
	return nil, nil
}

func (m *MockJobStore) ExtendLeases(ctx context.Context, leaser string, until time.Time) (int64, error) {
	if m.ExtendLeasesFunc != nil {
		return m.ExtendLeasesFunc(ctx, leaser, until)
	}
	return 0, nil
}

func (m *MockJobStore) ClearLeases(ctx context.Context, leaser string) (int64, error) {
	if m.ClearLeasesFunc != nil {
		return m.ClearLeasesFunc(ctx, leaser)
	}
	return 0, nil
}

func (m *MockJobStore) FindPeriodicJobs(ctx context.Context, ids []string) (map[string]types.PeriodicJob, error) {
	if m.FindPeriodicJobsFunc != nil {
		return m.FindPeriodicJobsFunc(ctx, ids)
	}
	return map[string]types.PeriodicJob{}, nil
}

func (m *MockJobStore) FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error) {
	if m.FindPeriodicFunc != nil {
		return m.FindPeriodicFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockJobStore) DeletePeriodic(ctx context.Context, id string) (bool, error) {
	if m.DeletePeriodicFunc != nil {
		return m.DeletePeriodicFunc(ctx, id)
	}
	return true, nil
}

func (m *MockJobStore) SetPeriodicActive(ctx context.Context, id string, active bool) error {
	if m.SetPeriodicActiveFunc != nil {
		return m.SetPeriodicActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *MockJobStore) ListPending(ctx context.Context, queue string, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, queue, page, pageSize)
	}
	return types.NewPaginationResult([]types.Job{}, 0, page, pageSize), nil
}

func (m *MockJobStore) ListHistory(ctx context.Context, filter store.HistoryFilter, page, pageSize int) (*types.PaginationResult[types.JobHistory], error) {
	if m.ListHistoryFunc != nil {
		return m.ListHistoryFunc(ctx, filter, page, pageSize)
	}
	return types.NewPaginationResult([]types.JobHistory{}, 0, page, pageSize), nil
}

func (m *MockJobStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(m.tx())
}

func (m *MockJobStore) WithNamedLock(ctx context.Context, name string, timeout time.Duration, fn func(tx store.Tx) error) error {
	if m.WithNamedLockFunc != nil {
		if err := m.WithNamedLockFunc(ctx, name, timeout); err != nil {
			return err
		}
	}
	return fn(m.tx())
}

func (m *MockJobStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockJobStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockJobStore) tx() store.Tx {
	if m.Tx != nil {
		return m.Tx
	}
	return &MockTx{}
}

// MockTx is a mock implementation of store.Tx for testing.
type MockTx struct {
	InsertJobFunc               func(ctx context.Context, job types.Job) (types.Job, error)
	DeleteJobFunc               func(ctx context.Context, id int64, leaser string) (bool, error)
	InsertHistoryFunc           func(ctx context.Context, history types.JobHistory) error
	FindPeriodicFunc            func(ctx context.Context, id string) (*types.PeriodicJob, error)
	InsertPeriodicFunc          func(ctx context.Context, p types.PeriodicJob) error
	UpdatePeriodicFunc          func(ctx context.Context, p types.PeriodicJob) error
	CountPendingForPeriodicFunc func(ctx context.Context, id string) (int, error)
	DeleteHistoryBeforeFunc     func(ctx context.Context, before time.Time) (int64, error)
}

var _ store.Tx = (*MockTx)(nil)

func (m *MockTx) InsertJob(ctx context.Context, job types.Job) (types.Job, error) {
	if m.InsertJobFunc != nil {
		return m.InsertJobFunc(ctx, job)
	}
	return job, nil
}

func (m *MockTx) DeleteJob(ctx context.Context, id int64, leaser string) (bool, error) {
	if m.DeleteJobFunc != nil {
		return m.DeleteJobFunc(ctx, id, leaser)
	}
	return true, nil
}

func (m *MockTx) InsertHistory(ctx context.Context, history types.JobHistory) error {
	if m.InsertHistoryFunc != nil {
		return m.InsertHistoryFunc(ctx, history)
	}
	return nil
}

func (m *MockTx) FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error) {
	if m.FindPeriodicFunc != nil {
		return m.FindPeriodicFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTx) InsertPeriodic(ctx context.Context, p types.PeriodicJob) error {
	if m.InsertPeriodicFunc != nil {
		return m.InsertPeriodicFunc(ctx, p)
	}
	return nil
}

func (m *MockTx) UpdatePeriodic(ctx context.Context, p types.PeriodicJob) error {
	if m.UpdatePeriodicFunc != nil {
		return m.UpdatePeriodicFunc(ctx, p)
	}
	return nil
}

func (m *MockTx) CountPendingForPeriodic(ctx context.Context, id string) (int, error) {
	if m.CountPendingForPeriodicFunc != nil {
		return m.CountPendingForPeriodicFunc(ctx, id)
	}
	return 0, nil
}

func (m *MockTx) DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteHistoryBeforeFunc != nil {
		return m.DeleteHistoryBeforeFunc(ctx, before)
	}
	return 0, nil
}
