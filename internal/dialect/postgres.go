package dialect

import (
	"fmt"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/lock"
)

const postgresSchema = "firejobs"

type Postgres struct {
	tables Tables
	locks  *lock.PostgresDistributedLockManager
}

func NewPostgres() *Postgres {
	return &Postgres{
		tables: Tables{
			Job:      postgresSchema + ".job",
			History:  postgresSchema + ".job_history",
			Periodic: postgresSchema + ".job_periodic",
		},
		locks: lock.NewPostgresDistributedLockManager(),
	}
}

func (d *Postgres) Name() string    { return "postgres" }
func (d *Postgres) Tables() Tables  { return d.tables }
func (d *Postgres) Returning() bool { return true }

func (d *Postgres) Rebind(query string) string {
	return rebindDollar(query)
}

// ClaimJobs locks the oldest due rows with SKIP LOCKED and leases them in
// the same statement.
func (d *Postgres) ClaimJobs(p ClaimParams) ClaimQuery {
	query := fmt.Sprintf(`
		WITH next AS (
			SELECT id FROM %[1]s
			WHERE queue = ?
			  AND scheduled_at <= ?
			  AND (leased_until IS NULL OR leased_until < ?)
			ORDER BY scheduled_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %[1]s
		SET leaser = ?, leased_until = ?
		WHERE id IN (SELECT id FROM next)
		RETURNING %[2]s`, d.tables.Job, JobColumns)

	return ClaimQuery{
		Claim: Statement{
			Query: d.Rebind(query),
			Args:  []any{p.Queue, p.Now, p.Now, p.MaxJobs, p.Leaser, p.LeasedUntil()},
		},
	}
}

func (d *Postgres) ExtendLeases(leaser string, until time.Time) Statement {
	return extendLeases(d, leaser, until)
}

func (d *Postgres) ClearLeases(leaser string) Statement {
	return clearLeases(d, leaser)
}

func (d *Postgres) LockManager() lock.DistributedLockManager {
	return d.locks
}
