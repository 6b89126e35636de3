package dialect

import (
	"testing"
	"time"

	"github.com/RezaEskandarii/firejobs/types/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	pg, err := New(config.Postgres)
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Name())

	lite, err := New(config.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", lite.Name())

	_, err = New(config.StorageDriver(99))
	assert.Error(t, err)
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2 OR c = $3", rebindDollar("a = ? AND b = ? OR c = ?"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
}

func TestPostgres_ClaimJobs(t *testing.T) {
	d := NewPostgres()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	q := d.ClaimJobs(ClaimParams{Queue: "default", MaxJobs: 10, Leaser: "w1", LeaseDuration: time.Minute, Now: now})

	assert.False(t, q.TwoPhase())
	assert.Contains(t, q.Claim.Query, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, q.Claim.Query, "RETURNING "+JobColumns)
	assert.Contains(t, q.Claim.Query, "firejobs.job")
	assert.NotContains(t, q.Claim.Query, "?")
	assert.Equal(t, []any{"default", now, now, 10, "w1", now.Add(time.Minute)}, q.Claim.Args)
}

func TestSQLite_ClaimJobs(t *testing.T) {
	d := NewSQLite()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	q := d.ClaimJobs(ClaimParams{Queue: "emails", MaxJobs: 3, Leaser: "w2", LeaseDuration: 5 * time.Minute, Now: now})

	require.True(t, q.TwoPhase())
	assert.Contains(t, q.Claim.Query, "LIMIT ?")
	assert.NotContains(t, q.Claim.Query, "RETURNING")
	assert.Equal(t, []any{"w2", now.Add(5 * time.Minute), "emails", now, now, 3}, q.Claim.Args)
	assert.Contains(t, q.Fetch.Query, "leased_until = ?")
	assert.Equal(t, []any{"w2", "emails", now.Add(5 * time.Minute)}, q.Fetch.Args)
}

func TestLeaseStatements(t *testing.T) {
	until := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	pg := NewPostgres()
	ext := pg.ExtendLeases("w1", until)
	assert.Equal(t, "UPDATE firejobs.job SET leased_until = $1 WHERE leaser = $2", ext.Query)
	assert.Equal(t, []any{until, "w1"}, ext.Args)

	lite := NewSQLite()
	clr := lite.ClearLeases("w1")
	assert.Equal(t, "UPDATE job SET leaser = NULL, leased_until = NULL WHERE leaser = ?", clr.Query)
	assert.Equal(t, []any{"w1"}, clr.Args)
}

func TestLockManagers(t *testing.T) {
	assert.NotNil(t, NewPostgres().LockManager())
	assert.NotNil(t, NewSQLite().LockManager())
	assert.Empty(t, NewPostgres().Tables().Lock)
	assert.Equal(t, "job_lock", NewSQLite().Tables().Lock)
}
