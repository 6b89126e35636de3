package config

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/RezaEskandarii/firejobs/custom_errors"
)

// HandlerKey identifies a registered job function. Functions sharing a type
// and method name are told apart by the number of stored arguments.
type HandlerKey struct {
	TypeName   string
	MethodName string
	ArgCount   int
}

func (k HandlerKey) String() string {
	return fmt.Sprintf("%s.%s/%d", k.TypeName, k.MethodName, k.ArgCount)
}

// Handler is one entry of the dispatch table.
type Handler struct {
	Key  HandlerKey
	Func any
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// JobHandler is the process-wide dispatch table from (type, method, arity)
// to job functions. A job function may take one context.Context parameter,
// which is supplied at execution time and never stored, and must return
// either nothing or a single error.
type JobHandler struct {
	handlers map[HandlerKey]Handler
	mutex    sync.RWMutex
}

func NewJobHandler() *JobHandler {
	return &JobHandler{
		handlers: make(map[HandlerKey]Handler),
	}
}

// Register adds fn under typeName.methodName.
func (jh *JobHandler) Register(typeName, methodName string, fn any) error {
	if typeName == "" || methodName == "" {
		return fmt.Errorf("handler must have a type name and a method name")
	}
	argCount, err := StoredArgCount(fn)
	if err != nil {
		return fmt.Errorf("handler %s.%s: %w", typeName, methodName, err)
	}
	key := HandlerKey{TypeName: typeName, MethodName: methodName, ArgCount: argCount}

	jh.mutex.Lock()
	defer jh.mutex.Unlock()

	if _, exists := jh.handlers[key]; exists {
		return fmt.Errorf("%w: %s", custom_errors.ErrAmbiguousHandler, key)
	}
	jh.handlers[key] = Handler{Key: key, Func: fn}
	return nil
}

// Lookup returns the handler registered under the exact key.
func (jh *JobHandler) Lookup(key HandlerKey) (Handler, bool) {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	h, ok := jh.handlers[key]
	return h, ok
}

// Exists reports whether any arity of typeName.methodName is registered.
func (jh *JobHandler) Exists(typeName, methodName string) bool {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	for key := range jh.handlers {
		if key.TypeName == typeName && key.MethodName == methodName {
			return true
		}
	}
	return false
}

func (jh *JobHandler) List() []HandlerKey {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	keys := make([]HandlerKey, 0, len(jh.handlers))
	for key := range jh.handlers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// StoredArgCount validates fn as a job function and returns how many of its
// parameters are persisted with the job.
func StoredArgCount(fn any) (int, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return 0, fmt.Errorf("%w: handler is not a function", custom_errors.ErrUnsupportedParameter)
	}
	if t.IsVariadic() {
		return 0, fmt.Errorf("%w: variadic functions have no fixed arity", custom_errors.ErrUnsupportedParameter)
	}
	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) != errorType {
			return 0, fmt.Errorf("%w: only error may be returned, got %s", custom_errors.ErrUnsupportedParameter, t.Out(0))
		}
	default:
		return 0, fmt.Errorf("%w: only error may be returned", custom_errors.ErrUnsupportedParameter)
	}

	stored := 0
	contexts := 0
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		if in == contextType {
			contexts++
			continue
		}
		if !supportedParam(in) {
			return 0, fmt.Errorf("%w: parameter %d has type %s", custom_errors.ErrUnsupportedParameter, i, in)
		}
		stored++
	}
	if contexts > 1 {
		return 0, fmt.Errorf("%w: at most one context.Context parameter", custom_errors.ErrUnsupportedParameter)
	}
	return stored, nil
}

func supportedParam(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Struct:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return supportedParam(t.Elem())
	case reflect.Map:
		return t.Key().Kind() == reflect.String && supportedParam(t.Elem())
	case reflect.Interface:
		return t.NumMethod() == 0
	default:
		return false
	}
}
