package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffTable_NextAttempt(t *testing.T) {
	policy := NewDefaultPolicy()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		errorCount int
		delay      time.Duration
	}{
		{1, 2 * time.Second},
		{2, 2 * time.Second},
		{3, 5 * time.Second},
		{4, 10 * time.Second},
		{5, 30 * time.Second},
		{6, time.Minute},
		{7, 5 * time.Minute},
		{8, 15 * time.Minute},
		{9, 30 * time.Minute},
	}
	for _, tt := range tests {
		next, ok := policy.NextAttempt(tt.errorCount, now)
		assert.True(t, ok, "attempt %d", tt.errorCount)
		assert.Equal(t, now.Add(tt.delay), next, "attempt %d", tt.errorCount)
	}

	_, ok := policy.NextAttempt(10, now)
	assert.False(t, ok)
	_, ok = policy.NextAttempt(11, now)
	assert.False(t, ok)
}

func TestBackoffTable_DelayClampsToLastEntry(t *testing.T) {
	policy := &BackoffTable{Delays: []time.Duration{time.Second, time.Minute}, MaxAttempts: 100}
	assert.Equal(t, time.Second, policy.Delay(0))
	assert.Equal(t, time.Minute, policy.Delay(2))
	assert.Equal(t, time.Minute, policy.Delay(50))
}

func TestNever(t *testing.T) {
	_, ok := Never{}.NextAttempt(1, time.Now())
	assert.False(t, ok)
}
