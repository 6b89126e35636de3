// Package jobmanager embeds firejobs in a host process with one call.
package jobmanager

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/RezaEskandarii/firejobs/app"
	"github.com/RezaEskandarii/firejobs/client"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// New initializes the whole system from cfg and returns the client used to
// enqueue and schedule jobs.
//
// The function performs the following steps:
//  1. Connects to the storage backend selected by cfg.StorageDriver and applies the schema.
//  2. Registers cfg.Handlers and the built-in maintenance job.
//  3. Starts the runners of every queue, the periodic scheduler, the quick-poll
//     bridge and, when cfg.MetricsAddr is set, the admin endpoint.
//
// Everything stops and the connections are closed once ctx ends. The
// returned channel yields the result of the background services and is
// closed afterwards.
func New(ctx context.Context, cfg *config.Config, opts ...app.ContainerOption) (*client.Client, <-chan error, error) {
	slog.Debug("starting firejobs", "instance", cfg.Instance, "gomaxprocs", runtime.GOMAXPROCS(0))

	c, err := app.NewContainer(ctx, cfg, append([]app.ContainerOption{app.WithMigrations()}, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := c.Start(ctx)
		if cerr := c.Close(); err == nil {
			err = cerr
		}
		done <- err
	}()
	return c.Client, done, nil
}
