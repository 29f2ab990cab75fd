// Package clock abstracts "now" and the assistant's local timezone.
//
// The engine deliberately runs against one fixed-offset location instead of
// a full tzdata lookup: the bot serves a single household, and a fixed offset
// keeps recurrence math testable without a real clock.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Clock interface {
	// Now returns the current instant already localized to the
	// assistant's fixed-offset location.
	Now() time.Time
	// Location returns the fixed-offset location used by Now.
	Location() *time.Location
}

type fixedClock struct {
	loc *time.Location
}

// NewFixed builds a Clock pinned to a "+HH:MM"/"-HH:MM" UTC offset.
// An empty offset means UTC.
func NewFixed(offset string) (Clock, error) {
	loc, err := ParseOffset(offset)
	if err != nil {
		return nil, err
	}
	return &fixedClock{loc: loc}, nil
}

func (c *fixedClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *fixedClock) Location() *time.Location { return c.loc }

// ParseOffset parses "-03:00", "+05:30", "02:00" or "" (UTC) into a
// fixed-offset location named after the offset itself.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.UTC, nil
	}

	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}

	hh, mm := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h > 14 {
		return nil, fmt.Errorf("invalid utc offset %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return nil, fmt.Errorf("invalid utc offset %q", s)
	}

	secs := sign * (h*3600 + m*60)
	if secs == 0 {
		return time.UTC, nil
	}
	name := fmt.Sprintf("UTC%+03d:%02d", sign*h, m)
	return time.FixedZone(name, secs), nil
}

// Fake is a manually driven clock for tests.
type Fake struct {
	T time.Time
}

func (f *Fake) Now() time.Time           { return f.T }
func (f *Fake) Location() *time.Location { return f.T.Location() }

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) { f.T = f.T.Add(d) }
