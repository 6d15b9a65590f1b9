package model

import "fmt"

// priorityMultipliers maps the cargo priority score to its objective multiplier.
var priorityMultipliers = map[int]float64{
	10: 3.0, // medical / emergency
	9:  2.5, // next-day air
	8:  2.0,
	7:  1.5,
	6:  1.2,
	5:  1.0, // standard
	4:  0.8,
	3:  0.6,
	2:  0.4,
	1:  0.2, // ground
}

// PriorityMultiplier returns the multiplier for a priority score between 1 and 10.
func PriorityMultiplier(score int) (float64, error) {
	m, ok := priorityMultipliers[score]
	if !ok {
		return 0, fmt.Errorf("cargo priority %d outside 1-10", score)
	}
	return m, nil
}

// Flight is one cargo leg to schedule. Flights are immutable once loaded.
type Flight struct {
	ID                 string
	Origin             string
	Destination        string
	CargoType          string
	Priority           int
	PriorityMultiplier float64
	ScheduledDeparture Clock
	SLADeadline        Clock
	DurationMinutes    int
	// CargoVolume is expressed in cubic feet; zero means unknown.
	CargoVolume float64
	Hazmat      bool
}

// NewFlight builds a flight and derives its priority multiplier.
func NewFlight(id, origin, dest, cargo string, priority int, dep, sla Clock, duration int) (Flight, error) {
	mult, err := PriorityMultiplier(priority)
	if err != nil {
		return Flight{}, fmt.Errorf("flight %s: %w", id, err)
	}
	if duration < 0 {
		return Flight{}, fmt.Errorf("flight %s: negative duration", id)
	}
	return Flight{
		ID:                 id,
		Origin:             origin,
		Destination:        dest,
		CargoType:          cargo,
		Priority:           priority,
		PriorityMultiplier: mult,
		ScheduledDeparture: dep,
		SLADeadline:        sla,
		DurationMinutes:    duration,
	}, nil
}

// DelayAt returns the departure delay in minutes when leaving at c, clamped at zero.
func (f Flight) DelayAt(c Clock) int {
	d := c.Minutes() - f.ScheduledDeparture.Minutes()
	if d < 0 {
		return 0
	}
	return d
}

// MissesSLA reports whether departing at c is strictly later than the SLA deadline.
func (f Flight) MissesSLA(c Clock) bool { return c > f.SLADeadline }
