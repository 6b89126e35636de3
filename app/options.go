package app

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject custom DB instead of creating from config
	db      *sql.DB
	redis   *redis.Client
	logger  *slog.Logger
	migrate bool
}

// WithDB injects a database connection matching cfg.StorageDriver. The
// caller keeps ownership of it.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithRedis injects a custom Redis client for quick-poll fan-out.
func WithRedis(redis *redis.Client) ContainerOption {
	return func(c *containerConfig) {
		c.redis = redis
	}
}

func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = logger
	}
}

// WithMigrations applies the embedded schema before anything else runs.
func WithMigrations() ContainerOption {
	return func(c *containerConfig) {
		c.migrate = true
	}
}
