// Package retry decides when a failed job runs again.
package retry

import (
	"time"
)

// Policy maps the error count of a job to the time of its next attempt.
// A false second return value means the job has exhausted its attempts.
type Policy interface {
	NextAttempt(errorCount int, now time.Time) (time.Time, bool)
}

// DefaultBackoff is the delay table used by the default policy, indexed by
// error count minus one and clamped to the last entry.
var DefaultBackoff = []time.Duration{
	2 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

// DefaultMaxAttempts is the number of failed attempts after which the
// default policy stops retrying.
const DefaultMaxAttempts = 10

// BackoffTable retries with the delays in Delays until MaxAttempts failures
// have been recorded.
type BackoffTable struct {
	Delays      []time.Duration
	MaxAttempts int
}

// NewDefaultPolicy returns the default backoff table policy.
func NewDefaultPolicy() *BackoffTable {
	return &BackoffTable{Delays: DefaultBackoff, MaxAttempts: DefaultMaxAttempts}
}

// Delay returns the backoff for the given error count.
func (b *BackoffTable) Delay(errorCount int) time.Duration {
	if len(b.Delays) == 0 {
		return 0
	}
	i := errorCount - 1
	if i < 0 {
		i = 0
	}
	if i >= len(b.Delays) {
		i = len(b.Delays) - 1
	}
	return b.Delays[i]
}

func (b *BackoffTable) NextAttempt(errorCount int, now time.Time) (time.Time, bool) {
	if errorCount >= b.MaxAttempts {
		return time.Time{}, false
	}
	return now.UTC().Add(b.Delay(errorCount)), true
}

// Never is a policy that does not retry.
type Never struct{}

func (Never) NextAttempt(int, time.Time) (time.Time, bool) {
	return time.Time{}, false
}
