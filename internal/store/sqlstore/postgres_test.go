package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobRowColumns = []string{"id", "scheduled_at", "queue", "type_name", "method_name", "method_args",
	"periodic_job_id", "cron_expression", "error_count", "leaser", "leased_until"}

func newPostgresMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, dialect.NewPostgres(), WithClock(func() time.Time { return baseTime })), mock
}

func TestPostgresStore_Enqueue_UsesReturning(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(`INSERT INTO firejobs.job .* RETURNING id`).
		WithArgs(baseTime, "default", "Mailer", "Send", `["x"]`, nil, nil, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	job, err := s.Enqueue(context.Background(), types.Job{
		ScheduledAt: baseTime, Queue: "default", TypeName: "Mailer", MethodName: "Send", MethodArgs: `["x"]`,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimJobs_SingleStatement(t *testing.T) {
	s, mock := newPostgresMock(t)
	until := baseTime.Add(time.Minute)

	rows := sqlmock.NewRows(jobRowColumns).
		AddRow(2, baseTime, "default", "T", "M", "[]", nil, nil, 0, "w1", until).
		AddRow(1, baseTime.Add(-time.Second), "default", "T", "M", "[]", nil, nil, 0, "w1", until)
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs("default", baseTime, baseTime, 10, "w1", until).
		WillReturnRows(rows)

	jobs, err := s.ClaimJobs(context.Background(), dialect.ClaimParams{
		Queue: "default", MaxJobs: 10, Leaser: "w1", LeaseDuration: time.Minute, Now: baseTime,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(1), jobs[0].ID)
	assert.Equal(t, "w1", *jobs[1].Leaser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimJobs_Error(t *testing.T) {
	s, mock := newPostgresMock(t)
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).WillReturnError(assert.AnError)

	_, err := s.ClaimJobs(context.Background(), dialect.ClaimParams{Queue: "default", MaxJobs: 1, Leaser: "w1", Now: baseTime})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to claim jobs")
}

func TestPostgresStore_FindPeriodicJobs_SingleQuery(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(`SELECT .* FROM firejobs.job_periodic WHERE id IN \(\$1, \$2\)`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cron_expression", "type_name", "method_name", "method_args",
			"queue", "is_active", "version", "created_at", "updated_at"}).
			AddRow("a", "* * * * *", "T", "M", "[]", "default", true, 3, baseTime, baseTime))

	found, err := s.FindPeriodicJobs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Contains(t, found, "a")
	assert.Equal(t, 3, found["a"].Version)
	assert.NotContains(t, found, "b")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithNamedLock_ReleasesAfterCommit(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`SELECT pg_advisory_lock\(hashtext\(\$1\)\)`).WithArgs("tick").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM firejobs.job_history WHERE processed_at < \$1`).WithArgs(baseTime).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()
	mock.ExpectExec(`SELECT pg_advisory_unlock\(hashtext\(\$1\)\)`).WithArgs("tick").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.WithNamedLock(context.Background(), "tick", time.Second, func(tx store.Tx) error {
		n, err := tx.DeleteHistoryBefore(context.Background(), baseTime)
		assert.Equal(t, int64(4), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithNamedLock_RollsBackOnError(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`pg_advisory_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectExec(`pg_advisory_unlock`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.WithNamedLock(context.Background(), "tick", time.Second, func(store.Tx) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetPeriodicActive(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`UPDATE firejobs.job_periodic SET is_active = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(false, baseTime, "daily").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetPeriodicActive(context.Background(), "daily", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
