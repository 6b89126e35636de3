// Command firejobs runs job workers against a Postgres or SQLite database.
//
// Subcommands:
//
//	worker   runners, periodic scheduler and the optional admin endpoint
//	migrate  apply the embedded schema and exit
//	enqueue  add one job for a handler known to this binary
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RezaEskandarii/firejobs/app"
	"github.com/RezaEskandarii/firejobs/internal/db"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

func main() {
	root := &cobra.Command{
		Use:           "firejobs",
		Short:         "Durable database-backed job queue and scheduler",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if err := godotenv.Load(); err != nil {
				slog.Debug("no .env file loaded", "error", err)
			}
		},
	}
	root.AddCommand(workerCmd(), migrateCmd(), enqueueCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Poll the configured queues until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			c, err := newContainer(ctx, app.WithMigrations())
			if err != nil {
				return err
			}
			defer c.Close()

			slog.Info("worker started", "instance", c.Config.Instance, "storage", c.Config.StorageDriver, "queues", len(c.Config.Queues()))
			if err := c.Start(ctx); err != nil {
				return err
			}
			slog.Info("worker stopped")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			sqlDB, d, err := db.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := db.Migrate(sqlDB, d); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", "dialect", d.Name())
			return nil
		},
	}
}

func enqueueCmd() *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:     "enqueue TYPE METHOD [ARGS_JSON]",
		Short:   "Enqueue one job due now",
		Example: `  firejobs enqueue Sms Send '["+15550100", "hello"]'`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobArgs []any
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &jobArgs); err != nil {
					return fmt.Errorf("arguments must be a JSON array: %w", err)
				}
			}

			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			job, err := c.Client.Enqueue(cmd.Context(), types.NewInvocation(args[0], args[1], jobArgs...), queue)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %d on queue %s\n", job.ID, job.Queue)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "queue name (default queue when empty)")
	return cmd
}

func newContainer(ctx context.Context, opts ...app.ContainerOption) (*app.Container, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RegisterHandlers(demoHandlers(logger)); err != nil {
		return nil, err
	}
	return app.NewContainer(ctx, cfg, append(opts, app.WithLogger(logger))...)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := newLogger(env.LogLevel, env.LogFormat)
	slog.SetDefault(logger)

	opts, err := env.Options()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := config.NewConfig(env.Instance, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger, nil
}

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
