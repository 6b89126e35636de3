// Package periodic reconciles declared periodic definitions with the
// job_periodic relation and keeps one chain of occurrences alive per
// definition.
package periodic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/pgk/parser"
	"github.com/RezaEskandarii/firejobs/types"
)

// Action tells what Ensure changed.
type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
	// Repaired means the definition was unchanged but had no pending
	// occurrence, so a new one was enqueued.
	Repaired Action = "repaired"
)

// Validator encodes the arguments of an invocation after checking that it
// resolves to a registered job function.
type Validator interface {
	Validate(inv types.Invocation) (string, error)
}

// NewDefinition builds a validated PeriodicDefinition.
func NewDefinition(v Validator, id, cronExpression, queue string, inv types.Invocation) (types.PeriodicDefinition, error) {
	if id == "" {
		return types.PeriodicDefinition{}, errors.New("periodic job id is required")
	}
	if err := parser.Validate(cronExpression); err != nil {
		return types.PeriodicDefinition{}, fmt.Errorf("periodic job %q: %w", id, err)
	}
	args, err := v.Validate(inv)
	if err != nil {
		return types.PeriodicDefinition{}, fmt.Errorf("periodic job %q: %w", id, err)
	}
	return types.PeriodicDefinition{
		ID:             id,
		CronExpression: cronExpression,
		TypeName:       inv.TypeName,
		MethodName:     inv.MethodName,
		MethodArgs:     args,
		Queue:          queue,
	}, nil
}

// Ensure upserts def. A new or changed definition gets a fresh occurrence
// at the next cron time after now; stale occurrences are left in place and
// get skipped when they run. The definition is always (re)activated.
func Ensure(ctx context.Context, tx store.Tx, def types.PeriodicDefinition, now time.Time) (types.PeriodicJob, Action, error) {
	existing, err := tx.FindPeriodic(ctx, def.ID)
	if err != nil {
		return types.PeriodicJob{}, "", err
	}

	var (
		p      types.PeriodicJob
		action Action
	)
	switch {
	case existing == nil:
		p = types.PeriodicJob{ID: def.ID, IsActive: true, Version: 1, CreatedAt: now, UpdatedAt: now}
		p.Apply(def)
		if err := tx.InsertPeriodic(ctx, p); err != nil {
			return types.PeriodicJob{}, "", err
		}
		action = Created

	case !existing.SameDefinition(def):
		p = *existing
		p.Apply(def)
		p.Version++
		p.IsActive = true
		p.UpdatedAt = now
		if err := tx.UpdatePeriodic(ctx, p); err != nil {
			return types.PeriodicJob{}, "", err
		}
		action = Updated

	default:
		p = *existing
		if !p.IsActive {
			p.IsActive = true
			p.UpdatedAt = now
			if err := tx.UpdatePeriodic(ctx, p); err != nil {
				return types.PeriodicJob{}, "", err
			}
		}
		pending, err := tx.CountPendingForPeriodic(ctx, p.ID)
		if err != nil {
			return types.PeriodicJob{}, "", err
		}
		if pending > 0 {
			return p, Unchanged, nil
		}
		action = Repaired
	}

	next, err := parser.NextUtc(p.CronExpression, now)
	if err != nil {
		return types.PeriodicJob{}, "", err
	}
	if _, err := tx.InsertJob(ctx, p.Occurrence(next)); err != nil {
		return types.PeriodicJob{}, "", err
	}
	return p, action, nil
}
