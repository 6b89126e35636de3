// Package dialect generates the backend-specific SQL for claiming,
// extending and clearing job leases, and supplies the backend's named lock.
//
// Two claim strategies exist. Postgres claims in one UPDATE ... RETURNING
// statement whose row selection uses FOR UPDATE SKIP LOCKED. SQLite has no
// update-and-return path the store relies on, so it claims in two phases:
// an UPDATE that stamps the leaser, then a SELECT of the rows the leaser now
// holds. Both phases run inside one write transaction (BEGIN IMMEDIATE),
// which keeps every other writer out between them.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/lock"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// JobColumns is the column list every job query selects, in scan order.
const JobColumns = "id, scheduled_at, queue, type_name, method_name, method_args, " +
	"periodic_job_id, cron_expression, error_count, leaser, leased_until"

// Statement is a query ready to be executed.
type Statement struct {
	Query string
	Args  []any
}

// ClaimParams describes one claim attempt.
type ClaimParams struct {
	Queue         string
	MaxJobs       int
	Leaser        string
	LeaseDuration time.Duration
	Now           time.Time
}

// LeasedUntil is the expiry written by the claim.
func (p ClaimParams) LeasedUntil() time.Time {
	return p.Now.Add(p.LeaseDuration)
}

// ClaimQuery is the claim of one strategy. When Fetch is nil, Claim returns
// the claimed rows itself; otherwise Claim only stamps them and Fetch reads
// them back, and both must run in the same transaction.
type ClaimQuery struct {
	Claim Statement
	Fetch *Statement
}

// TwoPhase reports whether the claim needs its Fetch statement.
func (q ClaimQuery) TwoPhase() bool {
	return q.Fetch != nil
}

// Tables holds the qualified table names of one backend.
type Tables struct {
	Job      string
	History  string
	Periodic string
	Lock     string
}

type Dialect interface {
	Name() string
	Tables() Tables
	// Rebind rewrites '?' placeholders into the backend's placeholder syntax.
	Rebind(query string) string
	// Returning reports whether INSERT ... RETURNING id is used to obtain
	// generated ids instead of LastInsertId.
	Returning() bool
	ClaimJobs(p ClaimParams) ClaimQuery
	ExtendLeases(leaser string, until time.Time) Statement
	ClearLeases(leaser string) Statement
	LockManager() lock.DistributedLockManager
}

// New returns the dialect of a storage driver.
func New(driver config.StorageDriver) (Dialect, error) {
	switch driver {
	case config.Postgres:
		return NewPostgres(), nil
	case config.SQLite:
		return NewSQLite(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %v", driver)
	}
}

func extendLeases(d Dialect, leaser string, until time.Time) Statement {
	return Statement{
		Query: d.Rebind(fmt.Sprintf(`UPDATE %s SET leased_until = ? WHERE leaser = ?`, d.Tables().Job)),
		Args:  []any{until, leaser},
	}
}

func clearLeases(d Dialect, leaser string) Statement {
	return Statement{
		Query: d.Rebind(fmt.Sprintf(`UPDATE %s SET leaser = NULL, leased_until = NULL WHERE leaser = ?`, d.Tables().Job)),
		Args:  []any{leaser},
	}
}

// rebindDollar turns the n-th '?' into $n.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
