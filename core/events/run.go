package events

import "time"

// RunEvent is published once per optimization run.
type RunEvent struct {
	RunID     string
	Trigger   string
	Status    string
	Objective float64
	Flights   int
	Changes   []string
	// Accepted is false when the run left the previous baseline in place.
	Accepted bool
	Duration time.Duration
	Err      error
}
