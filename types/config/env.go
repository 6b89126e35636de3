package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is the environment-variable view of Config, used by the CLI.
type EnvConfig struct {
	// ── Storage ──────────────────────────────────────────────────────────────────
	Instance       string `env:"FIREJOBS_INSTANCE"        envDefault:"firejobs"`
	StorageDriver  string `env:"FIREJOBS_STORAGE_DRIVER"  envDefault:"postgres"`
	DatabaseURL    string `env:"FIREJOBS_DATABASE_URL"`
	PostgresDriver string `env:"FIREJOBS_POSTGRES_DRIVER" envDefault:"postgres"`
	SQLitePath     string `env:"FIREJOBS_SQLITE_PATH"     envDefault:"firejobs.db"`

	// ── Default queue ────────────────────────────────────────────────────────────
	BatchSize                int `env:"FIREJOBS_BATCH_SIZE"                   envDefault:"10"`
	WorkerCount              int `env:"FIREJOBS_WORKER_COUNT"                 envDefault:"1"`
	MaxDegreeOfParallelism   int `env:"FIREJOBS_MAX_DEGREE_OF_PARALLELISM"`
	LeaseDurationSeconds     int `env:"FIREJOBS_LEASE_DURATION_SECONDS"       envDefault:"300"`
	PollingIntervalInSeconds int `env:"FIREJOBS_POLLING_INTERVAL_IN_SECONDS"  envDefault:"15"`

	// ── Lifecycle ────────────────────────────────────────────────────────────────
	ClearLeaseTimeoutInSeconds int           `env:"FIREJOBS_CLEAR_LEASE_TIMEOUT_IN_SECONDS" envDefault:"10"`
	HistoryRetentionDays       int           `env:"FIREJOBS_HISTORY_RETENTION_DAYS"         envDefault:"30"`
	PeriodicInterval           time.Duration `env:"FIREJOBS_PERIODIC_INTERVAL"              envDefault:"1m"`
	PeriodicLockTimeout        time.Duration `env:"FIREJOBS_PERIODIC_LOCK_TIMEOUT"          envDefault:"30s"`

	// ── Quick-poll fan-out ───────────────────────────────────────────────────────
	RedisAddress  string `env:"FIREJOBS_REDIS_ADDRESS"`
	RedisPassword string `env:"FIREJOBS_REDIS_PASSWORD"`
	RedisDB       int    `env:"FIREJOBS_REDIS_DB" envDefault:"0"`
	RabbitMQURL   string `env:"FIREJOBS_RABBITMQ_URL"`

	// ── Observability ────────────────────────────────────────────────────────────
	MetricsAddr string `env:"FIREJOBS_METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadEnv parses EnvConfig from the process environment.
func LoadEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options translates the environment into Config options.
func (e *EnvConfig) Options() ([]ContainerOption, error) {
	driver, ok := ParseStorageDriver(e.StorageDriver)
	if !ok {
		return nil, fmt.Errorf("unsupported storage driver %q", e.StorageDriver)
	}

	opts := []ContainerOption{
		WithBatchSize(e.BatchSize),
		WithWorkerCount(e.WorkerCount),
		WithLeaseDuration(e.LeaseDurationSeconds),
		WithPollingInterval(e.PollingIntervalInSeconds),
		WithClearLeaseTimeout(e.ClearLeaseTimeoutInSeconds),
		WithHistoryRetentionDays(e.HistoryRetentionDays),
		WithPeriodicInterval(e.PeriodicInterval),
		WithPeriodicLockTimeout(e.PeriodicLockTimeout),
		WithMetricsAddr(e.MetricsAddr),
	}
	if e.MaxDegreeOfParallelism > 0 {
		opts = append(opts, WithMaxDegreeOfParallelism(e.MaxDegreeOfParallelism))
	}

	switch driver {
	case Postgres:
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: e.DatabaseURL, DriverName: e.PostgresDriver}))
	case SQLite:
		opts = append(opts, WithSQLiteConfig(SQLiteConfig{Path: e.SQLitePath}))
	}

	if e.RedisAddress != "" {
		opts = append(opts, WithRedisConfig(RedisConfig{Address: e.RedisAddress, Password: e.RedisPassword, DB: e.RedisDB}))
	} else if e.RabbitMQURL != "" {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{URL: e.RabbitMQURL}))
	}
	return opts, nil
}
