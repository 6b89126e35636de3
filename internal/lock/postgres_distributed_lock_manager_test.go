package lock

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDistributedLockManager_Acquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager()

	mock.ExpectExec("SELECT pg_advisory_lock\\(hashtext\\(\\$1\\)\\)").
		WithArgs(PeriodicJobResource).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = mgr.Acquire(context.Background(), db, PeriodicJobResource, time.Second)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Acquire_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager()

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs("resource").
		WillReturnError(sql.ErrConnDone)

	err = mgr.Acquire(context.Background(), db, "resource", time.Second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire lock")
	assert.NotErrorIs(t, err, custom_errors.ErrLockNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Acquire_Timeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"lib/pq lock not available", &pq.Error{Code: pgLockNotAvailable}},
		{"lib/pq query canceled", &pq.Error{Code: pgQueryCanceled}},
		{"pgx lock not available", &pgconn.PgError{Code: pgLockNotAvailable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec("SELECT pg_advisory_lock").
				WithArgs("resource").
				WillReturnError(tt.err)

			err = NewPostgresDistributedLockManager().Acquire(context.Background(), db, "resource", time.Second)
			assert.ErrorIs(t, err, custom_errors.ErrLockNotAcquired)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresDistributedLockManager_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager()

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs("resource").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = mgr.Release(context.Background(), db, "resource")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Release_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager()

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs("resource").
		WillReturnError(sql.ErrConnDone)

	err = mgr.Release(context.Background(), db, "resource")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to release lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}
