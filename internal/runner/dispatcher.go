package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/RezaEskandarii/firejobs/internal/quickpoll"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// Dispatcher starts WorkerCount runners for every configured queue and
// returns once all of them have stopped.
type Dispatcher struct {
	deps     Deps
	queues   []config.QueueConfig
	instance string
	logger   *slog.Logger
	runners  []*Runner
}

func NewDispatcher(deps Deps, instance string, queues []config.QueueConfig) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = quickpoll.NewHub()
	}
	return &Dispatcher{deps: deps, queues: queues, instance: instance, logger: logger}
}

// start builds the runners. Queues with invalid settings are logged and
// skipped; the rest still run.
func (d *Dispatcher) start() {
	for _, q := range d.queues {
		if err := q.Validate(); err != nil {
			d.logger.Warn("queue skipped", "queue", q.Name, "error", err)
			continue
		}
		d.deps.Hub.Register(q.Name, q.WorkerCount)
		for i := 0; i < q.WorkerCount; i++ {
			d.runners = append(d.runners, New(d.deps, q, i, d.instance))
		}
	}
}

// Run blocks until every runner has stopped, which happens after ctx ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.start()
	d.logger.Info("dispatcher started", "queues", len(d.queues), "runners", len(d.runners))

	var g errgroup.Group
	for _, r := range d.runners {
		r := r
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					d.logger.Error("runner crashed", "leaser", r.Leaser(), "panic", p, "stack", string(debug.Stack()))
					err = fmt.Errorf("runner %s crashed: %v", r.Leaser(), p)
				}
			}()
			return r.Run(ctx)
		})
	}
	err := g.Wait()
	d.logger.Info("dispatcher stopped")
	return err
}

func (d *Dispatcher) Runners() []*Runner {
	return d.runners
}
