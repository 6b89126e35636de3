package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/google/uuid"
)

// TableDistributedLockManager implements named locks as rows of a lock
// table, for databases without advisory locks. A row is owned until it is
// deleted or its expiry passes, so a crashed owner cannot hold it forever.
// The lock is not reentrant: a second Acquire of a held name waits, also
// from the same process.
type TableDistributedLockManager struct {
	table      string
	owner      string
	ttl        time.Duration
	retryEvery time.Duration
	now        func() time.Time
}

func NewTableDistributedLockManager(table string, ttl time.Duration) *TableDistributedLockManager {
	return &TableDistributedLockManager{
		table:      table,
		owner:      uuid.NewString(),
		ttl:        ttl,
		retryEvery: 100 * time.Millisecond,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Owner returns the identity written into lock rows held by this manager.
func (l *TableDistributedLockManager) Owner() string {
	return l.owner
}

func (l *TableDistributedLockManager) Acquire(ctx context.Context, conn Conn, name string, timeout time.Duration) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (resource, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (resource) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE %s.expires_at < ?`, l.table, l.table)

	deadline := l.now().Add(timeout)
	for {
		now := l.now()
		res, err := conn.ExecContext(ctx, query, name, l.owner, now.Add(l.ttl), now)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		if !l.now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", custom_errors.ErrLockNotAcquired, name, timeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", custom_errors.ErrLockNotAcquired, name, ctx.Err())
		case <-time.After(l.retryEvery):
		}
	}
}

func (l *TableDistributedLockManager) Release(ctx context.Context, conn Conn, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE resource = ? AND owner = ?`, l.table)
	if _, err := conn.ExecContext(ctx, query, name, l.owner); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
