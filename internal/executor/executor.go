// Package executor turns a stored job row back into a call of a registered
// job function.
package executor

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Result is the outcome of one invocation. A nil Err means Completed.
type Result struct {
	Err      error
	Stack    string
	Duration time.Duration
}

func (r Result) Succeeded() bool {
	return r.Err == nil
}

// resolved is a job function prepared for repeated calls.
type resolved struct {
	fn       reflect.Value
	params   []reflect.Type // stored parameters, in order
	ctxIndex int            // position of the context.Context parameter, -1 if none
	numIn    int
}

type Executor struct {
	registry *config.JobHandler
	cache    sync.Map // config.HandlerKey -> *resolved
}

func New(registry *config.JobHandler) *Executor {
	return &Executor{registry: registry}
}

// Execute runs job and never panics: a panicking job function yields a
// failed Result carrying the goroutine stack.
func (e *Executor) Execute(ctx context.Context, job types.Job) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Err:   fmt.Errorf("job %s.%s panicked: %v", job.TypeName, job.MethodName, r),
				Stack: string(debug.Stack()),
			}
		}
		res.Duration = time.Since(start)
	}()

	raw, err := splitArgs(job.MethodArgs)
	if err != nil {
		return Result{Err: err}
	}
	target, err := e.resolve(config.HandlerKey{TypeName: job.TypeName, MethodName: job.MethodName, ArgCount: len(raw)})
	if err != nil {
		return Result{Err: err}
	}
	args, err := decodeArgs(raw, target.params)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Err: target.call(ctx, args)}
}

// Validate checks at enqueue time that inv resolves to a registered
// function and that its arguments survive the round trip through storage.
func (e *Executor) Validate(inv types.Invocation) (string, error) {
	encoded, err := EncodeArgs(inv.Args)
	if err != nil {
		return "", err
	}
	raw, err := splitArgs(encoded)
	if err != nil {
		return "", err
	}
	target, err := e.resolve(config.HandlerKey{TypeName: inv.TypeName, MethodName: inv.MethodName, ArgCount: len(raw)})
	if err != nil {
		return "", err
	}
	if _, err := decodeArgs(raw, target.params); err != nil {
		return "", err
	}
	return encoded, nil
}

func (e *Executor) resolve(key config.HandlerKey) (*resolved, error) {
	if cached, ok := e.cache.Load(key); ok {
		return cached.(*resolved), nil
	}

	h, ok := e.registry.Lookup(key)
	if !ok {
		if e.registry.Exists(key.TypeName, key.MethodName) {
			return nil, fmt.Errorf("%w: %s.%s has no overload taking %d arguments",
				custom_errors.ErrHandlerNotFound, key.TypeName, key.MethodName, key.ArgCount)
		}
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrHandlerNotFound, key)
	}

	fn := reflect.ValueOf(h.Func)
	t := fn.Type()
	target := &resolved{fn: fn, ctxIndex: -1, numIn: t.NumIn()}
	for i := 0; i < t.NumIn(); i++ {
		if t.In(i) == contextType {
			target.ctxIndex = i
			continue
		}
		target.params = append(target.params, t.In(i))
	}

	actual, _ := e.cache.LoadOrStore(key, target)
	return actual.(*resolved), nil
}

func (r *resolved) call(ctx context.Context, args []reflect.Value) error {
	in := make([]reflect.Value, 0, r.numIn)
	for i, next := 0, 0; i < r.numIn; i++ {
		if i == r.ctxIndex {
			in = append(in, reflect.ValueOf(&ctx).Elem())
			continue
		}
		in = append(in, args[next])
		next++
	}

	out := r.fn.Call(in)
	if len(out) == 1 && out[0].Type() == errorType && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
