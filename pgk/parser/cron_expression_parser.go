// Package parser turns cron expressions into next-occurrence timestamps.
//
// Both the classic 5-field form ("*/5 * * * *") and the 6-field form with a
// leading seconds field ("0 0 0 * * *") are accepted, as are descriptors
// such as "@hourly".
package parser

import (
	"fmt"
	"sync"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var schedules sync.Map // expression -> cron.Schedule

func parse(expr string) (cron.Schedule, error) {
	if s, ok := schedules.Load(expr); ok {
		return s.(cron.Schedule), nil
	}
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", custom_errors.ErrInvalidCron, expr, err)
	}
	schedules.Store(expr, s)
	return s, nil
}

// Validate reports whether expr can be parsed.
func Validate(expr string) error {
	_, err := parse(expr)
	return err
}

// NextUtc returns the first occurrence of expr strictly after after, in UTC.
func NextUtc(expr string, after time.Time) (time.Time, error) {
	s, err := parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := s.Next(after.UTC())
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w %q: no occurrence after %s", custom_errors.ErrInvalidCron, expr, after.UTC().Format(time.RFC3339))
	}
	return next.UTC(), nil
}
