// Package diff renders the human-readable change list between two schedules.
package diff

import (
	"fmt"

	"github.com/kilianp07/cargoplan/core/model"
)

// NoChanges is the single line reported when two schedules match.
const NoChanges = "No changes detected"

// Compare matches flights by identifier and lists what moved from prev to next.
// Lines follow the order of next, then flights only present in prev.
func Compare(prev, next model.Schedule) []string {
	before := prev.ByFlight()
	var lines []string
	seen := make(map[string]bool, len(next))
	for _, n := range next {
		seen[n.FlightID] = true
		o, ok := before[n.FlightID]
		if !ok {
			lines = append(lines, fmt.Sprintf("Flight %s: added at %s on %s with crew %s", n.FlightID, n.TimeSlot, n.AircraftID, n.CrewID))
			continue
		}
		lines = append(lines, flightChanges(o, n)...)
	}
	for _, o := range prev {
		if !seen[o.FlightID] {
			seen[o.FlightID] = true
			lines = append(lines, fmt.Sprintf("Flight %s: removed", o.FlightID))
		}
	}
	if len(lines) == 0 {
		return []string{NoChanges}
	}
	return lines
}

func flightChanges(o, n model.Assignment) []string {
	var lines []string
	if o.AircraftID != n.AircraftID {
		lines = append(lines, fmt.Sprintf("Flight %s: Aircraft changed from %s to %s", n.FlightID, o.AircraftID, n.AircraftID))
	}
	if o.CrewID != n.CrewID {
		lines = append(lines, fmt.Sprintf("Flight %s: Crew changed from %s to %s", n.FlightID, o.CrewID, n.CrewID))
	}
	switch delta := n.DelayMinutes - o.DelayMinutes; {
	case delta > 0:
		lines = append(lines, fmt.Sprintf("Flight %s: delayed by %dm", n.FlightID, delta))
	case delta < 0:
		lines = append(lines, fmt.Sprintf("Flight %s: reduced delay by %dm", n.FlightID, -delta))
	}
	return lines
}

// IsNoChange reports whether lines is the single no-change marker.
func IsNoChange(lines []string) bool {
	return len(lines) == 1 && lines[0] == NoChanges
}
