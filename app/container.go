package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/RezaEskandarii/firejobs/client"
	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/admin"
	"github.com/RezaEskandarii/firejobs/internal/db"
	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/executor"
	"github.com/RezaEskandarii/firejobs/internal/message_broaker"
	"github.com/RezaEskandarii/firejobs/internal/metrics"
	"github.com/RezaEskandarii/firejobs/internal/outcome"
	"github.com/RezaEskandarii/firejobs/internal/periodic"
	"github.com/RezaEskandarii/firejobs/internal/quickpoll"
	"github.com/RezaEskandarii/firejobs/internal/runner"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/internal/store/sqlstore"
	"github.com/RezaEskandarii/firejobs/types/config"
)

const shutdownTimeout = 5 * time.Second

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.Config

	// Storage connections (created once, shared by all components)
	DB    *sql.DB
	Redis *redis.Client
	Store *sqlstore.Store

	Registry      *config.JobHandler
	Executor      *executor.Executor
	Recorder      *outcome.Recorder
	Hub           *quickpoll.Hub
	MessageBroker message_broaker.MessageBroker
	Notifier      *quickpoll.Notifier
	Metrics       *metrics.Metrics

	Dispatcher *runner.Dispatcher
	Scheduler  *periodic.Scheduler
	Client     *client.Client
	Admin      *http.Server

	logger    *slog.Logger
	ownsDB    bool
	ownsRedis bool
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle.
// Pass optional WithDB, WithRedis to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (_ *Container, err error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}
	logger := opt.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{Config: cfg, Redis: opt.redis, logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	var d dialect.Dialect
	if opt.db != nil {
		c.DB = opt.db
		if d, err = dialect.New(cfg.StorageDriver); err != nil {
			return nil, err
		}
	} else {
		if c.DB, d, err = db.Open(ctx, cfg); err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.ownsDB = true
	}
	if opt.migrate {
		if err = db.Migrate(c.DB, d); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	c.Metrics = metrics.New()
	c.Store = sqlstore.New(c.DB, d, sqlstore.WithLogger(logger))

	c.Registry = config.NewJobHandler()
	for _, h := range cfg.Handlers {
		if err = c.Registry.Register(h.TypeName, h.MethodName, h.Func); err != nil {
			return nil, err
		}
	}
	if err = c.Registry.Register(periodic.MaintenanceType, periodic.PurgeHistoryMethod,
		periodic.PurgeHistory(c.Store, store.UTCNow, logger)); err != nil {
		return nil, err
	}
	c.Executor = executor.New(c.Registry)
	c.Recorder = outcome.NewRecorder(c.Store, cfg.RetryPolicy,
		outcome.WithLogger(logger), outcome.WithMetrics(c.Metrics))

	if c.MessageBroker, err = c.createMessageBroker(ctx); err != nil {
		return nil, err
	}
	c.Hub = quickpoll.NewHub()
	c.Notifier = quickpoll.NewNotifier(c.Hub, c.MessageBroker, cfg.Instance, logger)

	queues := cfg.Queues()
	c.Dispatcher = runner.NewDispatcher(runner.Deps{
		Store:             c.Store,
		Executor:          c.Executor,
		Recorder:          c.Recorder,
		Hub:               c.Hub,
		ClearLeaseTimeout: cfg.ClearLeaseTimeout,
		Logger:            logger,
		Metrics:           c.Metrics,
	}, cfg.Instance, queues)

	groups, err := periodicGroups(c.Executor, cfg)
	if err != nil {
		return nil, err
	}
	c.Scheduler = periodic.NewScheduler(c.Store, groups, cfg.PeriodicInterval, cfg.PeriodicLockTimeout,
		periodic.WithLogger(logger), periodic.WithMetrics(c.Metrics))

	names := make([]string, 0, len(queues))
	for _, q := range queues {
		names = append(names, q.Name)
	}
	c.Client = client.New(c.Store, c.Executor, names,
		client.WithNotifier(c.Notifier),
		client.WithLogger(logger),
		client.WithLockTimeout(cfg.PeriodicLockTimeout))

	if cfg.MetricsAddr != "" {
		c.Admin = admin.NewServer(cfg.MetricsAddr, admin.NewRouter(c.Store, c.Metrics, logger))
	}
	return c, nil
}

func (c *Container) createMessageBroker(ctx context.Context) (message_broaker.MessageBroker, error) {
	cfg := c.Config
	switch cfg.MQDriver {
	case config.Redis:
		if c.Redis == nil {
			c.Redis = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisConfig.Address,
				Password: cfg.RedisConfig.Password,
				DB:       cfg.RedisConfig.DB,
			})
			c.ownsRedis = true
		}
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		return message_broaker.NewRedis(c.Redis, cfg.RedisConfig.Channel), nil
	case config.RabbitMQ:
		broker, err := message_broaker.NewRabbitMQ(cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Exchange)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		return broker, nil
	}
	return nil, nil
}

// periodicGroups builds one reconciliation group per queue. The history
// purge job belongs to the default queue.
func periodicGroups(v periodic.Validator, cfg *config.Config) ([]periodic.Group, error) {
	errs := &custom_errors.ValidationError{}
	var groups []periodic.Group
	for _, q := range cfg.Queues() {
		g := periodic.Group{Queue: q.Name}
		for _, p := range q.PeriodicJobs {
			def, err := periodic.NewDefinition(v, p.ID, p.CronExpression, q.Name, p.Invocation)
			if err != nil {
				errs.Add(err)
				continue
			}
			g.Definitions = append(g.Definitions, def)
		}
		if q.Name == cfg.Queue.Name {
			def, err := periodic.NewDefinition(v, periodic.PurgeHistoryID, periodic.PurgeHistoryCron, q.Name,
				periodic.PurgeHistoryInvocation(cfg.HistoryRetentionDays))
			if err != nil {
				errs.Add(err)
			} else {
				g.Definitions = append(g.Definitions, def)
			}
		}
		groups = append(groups, g)
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}
	return groups, nil
}

// Start runs the runners, the periodic scheduler, the quick-poll bridge and
// the admin server until ctx ends or one of them fails.
func (c *Container) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.Dispatcher.Run(ctx) })
	g.Go(func() error { return c.Scheduler.Run(ctx) })
	g.Go(func() error {
		if err := c.Notifier.Bridge(ctx); err != nil {
			// runners still poll on their own schedule
			c.logger.Warn("quick-poll bridge stopped", "error", err)
		}
		return nil
	})

	if c.Admin != nil {
		g.Go(func() error {
			c.logger.Info("admin server listening", "addr", c.Admin.Addr)
			if err := c.Admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return c.Admin.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// Close releases the connections the container opened.
func (c *Container) Close() error {
	var errs []error
	if c.MessageBroker != nil {
		errs = append(errs, c.MessageBroker.Close())
	}
	if c.ownsRedis && c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.ownsDB && c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
