// Package lock provides the cross-process named lock used to serialize
// periodic-job reconciliation between processes sharing one database.
package lock

import (
	"context"
	"database/sql"
	"time"
)

// Conn is the part of *sql.Conn, *sql.Tx and *sql.DB the lock managers use.
// Session-scoped locks must be acquired and released on the same *sql.Conn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DistributedLockManager acquires and releases exclusive locks scoped to a
// resource name. Acquire blocks for at most timeout.
type DistributedLockManager interface {
	Acquire(ctx context.Context, conn Conn, name string, timeout time.Duration) error
	Release(ctx context.Context, conn Conn, name string) error
}

// PeriodicJobResource is the name of the lock held during one periodic
// scheduler tick.
const PeriodicJobResource = "firejobs:job_periodic"
