// Package schedule validates standard cron expressions and resolves the
// processing window a cron-driven job should cover.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrInvalidExpression = errors.New("invalid cron expression")
	ErrNoPreviousTrigger = errors.New("no previous trigger found")
)

// maxLookback bounds the backwards search. Leap-day schedules need eight years.
const maxLookback = 16 * 365 * 24 * time.Hour

// Standard five-field grammar: minute hour day-of-month month day-of-week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse parses a five-field cron expression. Seconds and descriptors such as
// @hourly are rejected.
func Parse(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return s, nil
}

// Validate reports whether expr is a valid five-field cron expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// PreviousTriggers returns the n most recent activations of s strictly before
// now, oldest first.
func PreviousTriggers(s cron.Schedule, now time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}

	for lookback := time.Minute; lookback <= maxLookback; lookback *= 2 {
		triggers := make([]time.Time, 0, n)
		for t := s.Next(now.Add(-lookback)); !t.IsZero() && t.Before(now); t = s.Next(t) {
			if len(triggers) == n {
				triggers = append(triggers[1:], t)
			} else {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == n {
			return triggers, nil
		}
	}

	return nil, fmt.Errorf("%w within %s", ErrNoPreviousTrigger, maxLookback)
}

// ResolveInterval returns the two most recent activations of expr before now.
// The window [since, until) is one schedule period wide.
func ResolveInterval(expr string, now time.Time) (since, until time.Time, err error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	triggers, err := PreviousTriggers(s, now, 2)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("resolving %q: %w", expr, err)
	}
	return triggers[0], triggers[1], nil
}
