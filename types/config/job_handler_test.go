package config

import (
	"context"
	"errors"
	"testing"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func TestJobHandler_Register(t *testing.T) {
	jh := NewJobHandler()

	err := jh.Register("Sms", "Send", func(to, body string) error { return nil })
	require.NoError(t, err)

	err = jh.Register("Sms", "Send", func(a, b string) error { return nil })
	assert.ErrorIs(t, err, custom_errors.ErrAmbiguousHandler)

	// Different arity is a different overload.
	err = jh.Register("Sms", "Send", func(ctx context.Context, p smsPayload) error { return nil })
	assert.NoError(t, err)

	_, ok := jh.Lookup(HandlerKey{TypeName: "Sms", MethodName: "Send", ArgCount: 1})
	assert.True(t, ok)
	_, ok = jh.Lookup(HandlerKey{TypeName: "Sms", MethodName: "Send", ArgCount: 2})
	assert.True(t, ok)
	_, ok = jh.Lookup(HandlerKey{TypeName: "Sms", MethodName: "Send", ArgCount: 3})
	assert.False(t, ok)
}

func TestJobHandler_RegisterRejectsUnsupported(t *testing.T) {
	jh := NewJobHandler()

	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"variadic", func(args ...any) error { return nil }},
		{"channel parameter", func(ch chan int) {}},
		{"function parameter", func(f func()) {}},
		{"non-error return", func() int { return 1 }},
		{"two returns", func() (int, error) { return 0, nil }},
		{"two contexts", func(a, b context.Context) {}},
		{"non-empty interface", func(e error) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := jh.Register("T", "M", tt.fn)
			assert.ErrorIs(t, err, custom_errors.ErrUnsupportedParameter)
		})
	}

	assert.Error(t, jh.Register("", "M", func() {}))
}

func TestJobHandler_ExistsAndList(t *testing.T) {
	jh := NewJobHandler()
	assert.False(t, jh.Exists("Reports", "Daily"))

	require.NoError(t, jh.Register("Reports", "Daily", func(ctx context.Context) error { return errors.New("x") }))
	require.NoError(t, jh.Register("Reports", "Weekly", func(week int, tags []string, opts map[string]any) {}))
	assert.True(t, jh.Exists("Reports", "Daily"))

	list := jh.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Reports.Daily/0", list[0].String())
	assert.Equal(t, "Reports.Weekly/3", list[1].String())
}
