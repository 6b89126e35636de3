package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/migrations"
	"github.com/RezaEskandarii/firejobs/types/config"
)

const migrationsTable = "firejobs_schema_migrations"

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, dialect.Dialect, error) {
	d, err := dialect.New(cfg.StorageDriver)
	if err != nil {
		return nil, nil, err
	}

	var db *sql.DB
	switch cfg.StorageDriver {
	case config.Postgres:
		driverName := cfg.PostgresConfig.DriverName
		if driverName == "" {
			driverName = config.DefaultPostgresDriverName
		}
		db, err = sql.Open(driverName, cfg.PostgresConfig.ConnectionUrl)
	case config.SQLite:
		db, err = sql.Open("sqlite3", SQLiteDSN(cfg.SQLiteConfig.Path))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", d.Name(), err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping %s database: %w", d.Name(), err)
	}
	return db, d, nil
}

// SQLiteDSN builds the connection string the SQLite dialect relies on:
// write transactions start with BEGIN IMMEDIATE so the two claim phases
// cannot interleave with another writer.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "10000")
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

// Migrate applies the embedded schema of the dialect. golang-migrate holds
// its own database lock, so concurrent processes may all call it.
func Migrate(db *sql.DB, d dialect.Dialect) error {
	var (
		driver database.Driver
		src    fs.FS
		dir    string
		err    error
	)
	switch d.(type) {
	case *dialect.Postgres:
		driver, err = migratepg.WithInstance(db, &migratepg.Config{
			MigrationsTable:       migrationsTable,
			MultiStatementEnabled: true,
		})
		src, dir = migrations.Postgres, "postgres"
	case *dialect.SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{
			MigrationsTable: migrationsTable,
		})
		src, dir = migrations.SQLite, "sqlite"
	default:
		return fmt.Errorf("no migrations for dialect %s", d.Name())
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(src, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Name(), driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Init opens the database and applies the schema.
func Init(ctx context.Context, cfg *config.Config) (*sql.DB, dialect.Dialect, error) {
	db, d, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := Migrate(db, d); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, d, nil
}
