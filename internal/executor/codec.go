package executor

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/RezaEskandarii/firejobs/custom_errors"
)

// EncodeArgs stores already-evaluated arguments as a JSON array, one
// element per argument.
func EncodeArgs(args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", custom_errors.ErrInvalidArguments, err)
	}
	return string(b), nil
}

// splitArgs returns the raw elements of a stored JSON array.
func splitArgs(methodArgs string) ([]json.RawMessage, error) {
	if methodArgs == "" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(methodArgs), &raw); err != nil {
		return nil, fmt.Errorf("%w: method args are not a JSON array: %v", custom_errors.ErrInvalidArguments, err)
	}
	return raw, nil
}

// decodeArgs converts raw elements positionally into the parameter types.
func decodeArgs(raw []json.RawMessage, params []reflect.Type) ([]reflect.Value, error) {
	if len(raw) != len(params) {
		return nil, fmt.Errorf("%w: got %d arguments, want %d", custom_errors.ErrInvalidArguments, len(raw), len(params))
	}
	values := make([]reflect.Value, len(params))
	for i, t := range params {
		v := reflect.New(t)
		if err := json.Unmarshal(raw[i], v.Interface()); err != nil {
			return nil, fmt.Errorf("%w: argument %d into %s: %v", custom_errors.ErrInvalidArguments, i, t, err)
		}
		values[i] = v.Elem()
	}
	return values, nil
}
