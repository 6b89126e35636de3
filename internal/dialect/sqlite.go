package dialect

import (
	"fmt"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/lock"
)

// lockTTL bounds how long a crashed process keeps the periodic lock.
const lockTTL = 5 * time.Minute

type SQLite struct {
	tables Tables
	locks  *lock.TableDistributedLockManager
}

func NewSQLite() *SQLite {
	tables := Tables{
		Job:      "job",
		History:  "job_history",
		Periodic: "job_periodic",
		Lock:     "job_lock",
	}
	return &SQLite{
		tables: tables,
		locks:  lock.NewTableDistributedLockManager(tables.Lock, lockTTL),
	}
}

func (d *SQLite) Name() string    { return "sqlite" }
func (d *SQLite) Tables() Tables  { return d.tables }
func (d *SQLite) Returning() bool { return false }

func (d *SQLite) Rebind(query string) string {
	return query
}

// ClaimJobs stamps the oldest due rows with the leaser, then reads back the
// rows carrying exactly this claim's stamp. Rows the leaser still holds from
// an earlier claim wait for their lease to expire, as on Postgres.
// The stamp identifies the claim: two claims by one leaser at the same
// instant would merge, which runners avoid by claiming one batch at a time
// under a unique leaser id.
func (d *SQLite) ClaimJobs(p ClaimParams) ClaimQuery {
	claim := fmt.Sprintf(`
		UPDATE %[1]s
		SET leaser = ?, leased_until = ?
		WHERE id IN (
			SELECT id FROM %[1]s
			WHERE queue = ?
			  AND scheduled_at <= ?
			  AND (leased_until IS NULL OR leased_until < ?)
			ORDER BY scheduled_at ASC
			LIMIT ?
		)`, d.tables.Job)

	fetch := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE leaser = ? AND queue = ? AND leased_until = ?
		ORDER BY scheduled_at ASC`, JobColumns, d.tables.Job)

	return ClaimQuery{
		Claim: Statement{
			Query: claim,
			Args:  []any{p.Leaser, p.LeasedUntil(), p.Queue, p.Now, p.Now, p.MaxJobs},
		},
		Fetch: &Statement{
			Query: fetch,
			Args:  []any{p.Leaser, p.Queue, p.LeasedUntil()},
		},
	}
}

func (d *SQLite) ExtendLeases(leaser string, until time.Time) Statement {
	return extendLeases(d, leaser, until)
}

func (d *SQLite) ClearLeases(leaser string) Statement {
	return clearLeases(d, leaser)
}

func (d *SQLite) LockManager() lock.DistributedLockManager {
	return d.locks
}
