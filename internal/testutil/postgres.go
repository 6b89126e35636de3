package testutil

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/RezaEskandarii/firejobs/internal/db"
	"github.com/RezaEskandarii/firejobs/internal/store/sqlstore"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// NewPostgresStore starts a Postgres testcontainer, applies the migrations
// and returns a store connected through driverName ("postgres" or "pgx").
// The container is terminated via t.Cleanup.
func NewPostgresStore(t *testing.T, driverName string, now func() time.Time) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	pgCtr, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("firejobs_test"),
		tcpostgres.WithUsername("firejobs_test"),
		tcpostgres.WithPassword("testpassword"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCtr.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := pgCtr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	cfg, err := config.NewConfig("test", config.WithPostgresConfig(config.PostgresConfig{
		ConnectionUrl: connStr,
		DriverName:    driverName,
	}))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	sqlDB, d, err := db.Init(ctx, cfg)
	if err != nil {
		t.Fatalf("init postgres: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	return sqlstore.New(sqlDB, d, sqlstore.WithClock(now))
}
