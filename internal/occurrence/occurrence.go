// Package occurrence computes schedule firing times. Frequencies form a
// closed enum; arithmetic is anchored on the previous occurrence so drift
// never accumulates across firings.
package occurrence

import (
	"fmt"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
)

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	t, _ := time.Parse("15:04", s)
	return t.Hour(), t.Minute(), nil
}

// ValidFrequency reports whether f is a known schedule frequency.
func ValidFrequency(f string) bool {
	switch f {
	case api.FrequencyOnce, api.FrequencyDaily, api.FrequencyWeekly, api.FrequencyMonthly, api.FrequencyQuarterly:
		return true
	default:
		return false
	}
}

// Next returns the first occurrence strictly after the given instant.
// Used on schedule creation and on resume, so paused periods are skipped
// rather than backfilled.
func Next(frequency string, after time.Time, timezone, timeOfDay string) (*time.Time, error) {
	loc, err := location(timezone)
	if err != nil {
		return nil, err
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}

	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	for !candidate.After(after) {
		next, err := step(frequency, candidate, loc, hour, minute)
		if err != nil {
			return nil, err
		}
		if next == nil {
			// "once" in the past: first occurrence is tomorrow's slot
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, hour, minute, 0, 0, loc)
			continue
		}
		candidate = *next
	}

	utc := candidate.UTC()
	return &utc, nil
}

// Advance returns the occurrence one period after prev. Returns nil for
// "once": a one-shot schedule deactivates after firing.
func Advance(frequency string, prev time.Time, timezone, timeOfDay string) (*time.Time, error) {
	loc, err := location(timezone)
	if err != nil {
		return nil, err
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}

	next, err := step(frequency, prev.In(loc), loc, hour, minute)
	if err != nil || next == nil {
		return nil, err
	}
	utc := next.UTC()
	return &utc, nil
}

// step adds one period in local time, re-pinning the time of day so DST
// shifts don't move the firing hour.
func step(frequency string, from time.Time, loc *time.Location, hour, minute int) (*time.Time, error) {
	var shifted time.Time
	switch frequency {
	case api.FrequencyOnce:
		return nil, nil
	case api.FrequencyDaily:
		shifted = from.AddDate(0, 0, 1)
	case api.FrequencyWeekly:
		shifted = from.AddDate(0, 0, 7)
	case api.FrequencyMonthly:
		shifted = from.AddDate(0, 1, 0)
	case api.FrequencyQuarterly:
		shifted = from.AddDate(0, 3, 0)
	default:
		return nil, fmt.Errorf("unknown frequency %q", frequency)
	}

	pinned := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), hour, minute, 0, 0, loc)
	return &pinned, nil
}

func location(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}
