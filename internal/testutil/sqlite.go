// Package testutil holds helpers shared by tests that need a real database.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/db"
	"github.com/RezaEskandarii/firejobs/internal/store/sqlstore"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// Clock is a settable clock for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewSQLiteStore migrates a fresh SQLite database under t.TempDir.
func NewSQLiteStore(t *testing.T, now func() time.Time) *sqlstore.Store {
	t.Helper()
	cfg, err := config.NewConfig("test", config.WithSQLiteConfig(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "firejobs.db"),
	}))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	sqlDB, d, err := db.Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	return sqlstore.New(sqlDB, d, sqlstore.WithClock(now))
}
