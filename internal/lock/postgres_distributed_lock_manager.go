package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

// PostgresDistributedLockManager maps named locks to session-level advisory
// locks keyed by hashtext(name). Advisory locks are reentrant within a
// session, so the same connection may acquire a name twice.
type PostgresDistributedLockManager struct{}

func NewPostgresDistributedLockManager() *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{}
}

func (l *PostgresDistributedLockManager) Acquire(ctx context.Context, conn Conn, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", name)
	if err != nil {
		if ctx.Err() != nil || isLockTimeout(err) {
			return fmt.Errorf("%w: %s after %s", custom_errors.ErrLockNotAcquired, name, timeout)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	return nil
}

func (l *PostgresDistributedLockManager) Release(ctx context.Context, conn Conn, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}

// isLockTimeout recognizes lock_timeout and statement cancellation errors
// from both lib/pq and pgx.
func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgLockNotAvailable || pqErr.Code == pgQueryCanceled
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgQueryCanceled
	}
	return false
}
