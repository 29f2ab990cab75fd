// Package recurrence computes next occurrences for DAILY/WEEKLY/MONTHLY
// schedules. All functions are pure: they take already-localized instants
// and never consult the wall clock.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	None    Kind = "NONE"
	Daily   Kind = "DAILY"
	Weekly  Kind = "WEEKLY"
	Monthly Kind = "MONTHLY"
)

// DefaultHour/DefaultMinute apply when TimeOfDay is absent or unparseable.
const (
	DefaultHour   = 9
	DefaultMinute = 0
)

// Rule describes a recurrence pattern.
//
// Day means weekday (0=Sunday..6=Saturday) for WEEKLY and day-of-month
// (1..31) for MONTHLY; it is ignored otherwise.
type Rule struct {
	Kind      Kind
	Day       int
	TimeOfDay string // "HH:MM" local; defaults to 09:00
}

func (r Rule) IsRecurring() bool { return r.Kind != "" && r.Kind != None }

// ParseKind normalizes a stored recurrence kind; unknown values map to NONE.
func ParseKind(s string) Kind {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case Daily:
		return Daily
	case Weekly:
		return Weekly
	case Monthly:
		return Monthly
	default:
		return None
	}
}

// ParseHHMM parses "HH:MM". Invalid input falls back to 09:00; the engine
// would rather fire a reminder at the default hour than drop the series.
func ParseHHMM(s string) (hour, minute int) {
	h, m, err := parseHHMMStrict(s)
	if err != nil {
		return DefaultHour, DefaultMinute
	}
	return h, m
}

func parseHHMMStrict(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(s[:i])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[i+1:])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// Next returns the first occurrence strictly after now, re-anchored on now.
// This is the reminder semantics: a recurring reminder dispatched late drifts
// with the dispatch instant rather than accumulating missed slots.
//
// Returns the zero time for non-recurring rules.
func (r Rule) Next(now time.Time) time.Time {
	hour, minute := ParseHHMM(r.TimeOfDay)

	switch r.Kind {
	case Daily:
		cand := at(now, now.Day(), hour, minute)
		if !cand.After(now) {
			cand = cand.AddDate(0, 0, 1)
		}
		return cand

	case Weekly:
		target := r.Day % 7
		if target < 0 {
			target += 7
		}
		delta := (target - int(now.Weekday()) + 7) % 7
		cand := at(now, now.Day(), hour, minute).AddDate(0, 0, delta)
		if delta == 0 && !cand.After(now) {
			cand = cand.AddDate(0, 0, 7)
		}
		return cand

	case Monthly:
		day := r.Day
		if day < 1 {
			day = 1
		}
		cand := monthlyAt(now.Year(), now.Month(), day, hour, minute, now.Location())
		if !cand.After(now) {
			y, m := now.Year(), now.Month()+1
			cand = monthlyAt(y, m, day, hour, minute, now.Location())
		}
		return cand
	}
	return time.Time{}
}

// NextAfter returns the occurrence one period after prev, re-applying the
// configured time-of-day. This is the payment semantics: the series stays
// strictly periodic regardless of how late a tick processed the previous
// occurrence.
//
// Returns the zero time for non-recurring rules.
func (r Rule) NextAfter(prev time.Time) time.Time {
	hour, minute := ParseHHMM(r.TimeOfDay)

	switch r.Kind {
	case Daily:
		n := prev.AddDate(0, 0, 1)
		return at(n, n.Day(), hour, minute)
	case Weekly:
		n := prev.AddDate(0, 0, 7)
		return at(n, n.Day(), hour, minute)
	case Monthly:
		// Anchor on the configured day-of-month so a series clamped in a
		// short month (31 -> Feb 28) returns to day 31 afterwards.
		day := r.Day
		if day < 1 {
			day = prev.Day()
		}
		y, m := prev.Year(), prev.Month()+1
		return monthlyAt(y, m, day, hour, minute, prev.Location())
	}
	return time.Time{}
}

// at builds a wall-clock instant in ref's month with the given day and time.
func at(ref time.Time, day, hour, minute int) time.Time {
	return time.Date(ref.Year(), ref.Month(), day, hour, minute, 0, 0, ref.Location())
}

// monthlyAt clamps day to the last day of the target month (the 31st in a
// 30-day month fires on the 30th; Jan 31 recurs on Feb 28/29).
func monthlyAt(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of next month normalizes to the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
