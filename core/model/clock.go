package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds every Clock value.
const MinutesPerDay = 24 * 60

// Clock is a time of day expressed in minutes after midnight.
type Clock int

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Minutes returns the number of minutes after midnight.
func (c Clock) Minutes() int { return int(c) }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText renders the clock as HH:MM.
func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses HH:MM.
func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Window is an inclusive range of departure times.
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Contains reports whether c lies inside the window bounds.
func (w Window) Contains(c Clock) bool { return c >= w.Start && c <= w.End }

// Slots is the ordered, finite set of candidate departure times.
type Slots []Clock

// Validate checks that the slot set is non-empty and strictly increasing.
func (s Slots) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("time slot set is empty")
	}
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return fmt.Errorf("time slots not strictly increasing at %s", s[i])
		}
	}
	return nil
}

// Every generates slots from start to end inclusive every step minutes.
func Every(start, end Clock, step int) Slots {
	if step <= 0 {
		return nil
	}
	var out Slots
	for c := start; c <= end; c += Clock(step) {
		out = append(out, c)
	}
	return out
}
