// Package validate re-checks an extracted schedule against the hard rules of
// the dataset it was built from.
package validate

import (
	"fmt"
	"sort"

	"github.com/kilianp07/cargoplan/core/model"
)

// ConflictType names the rule a schedule breaks.
type ConflictType string

const (
	ConflictMissing       ConflictType = "missing"       // flight absent or listed twice
	ConflictAircraftClash ConflictType = "aircraft"      // aircraft inside turnaround
	ConflictCrewClash     ConflictType = "crew"          // crew inside turnaround
	ConflictGrounded      ConflictType = "grounded"      // aircraft in maintenance
	ConflictOffDuty       ConflictType = "off_duty"      // crew not on duty
	ConflictCertification ConflictType = "certification" // crew not certified on aircraft
	ConflictWindow        ConflictType = "window"        // slot outside the operating window
	ConflictDelay         ConflictType = "delay"         // delay or SLA flag inconsistent with slot
)

// Conflict is one broken rule.
type Conflict struct {
	Type    ConflictType `json:"type"`
	Flights []string     `json:"flights"`
	Message string       `json:"message"`
}

// Rules are the parameters the schedule is checked against.
type Rules struct {
	Turnaround int
	Window     model.Window
}

// Check returns every conflict found; an empty slice means the schedule is valid.
func Check(s model.Schedule, d model.Dataset, r Rules) []Conflict {
	var out []Conflict
	seen := map[string]int{}
	for _, a := range s {
		seen[a.FlightID]++
	}
	for _, f := range d.Flights {
		if n := seen[f.ID]; n != 1 {
			out = append(out, Conflict{Type: ConflictMissing, Flights: []string{f.ID},
				Message: fmt.Sprintf("flight %s appears %d times", f.ID, n)})
		}
	}

	for _, a := range s {
		if f, ok := d.FlightByID(a.FlightID); ok {
			if a.DelayMinutes != f.DelayAt(a.TimeSlot) || a.SLAMissed != f.MissesSLA(a.TimeSlot) {
				out = append(out, Conflict{Type: ConflictDelay, Flights: []string{a.FlightID},
					Message: fmt.Sprintf("flight %s delay or SLA flag does not match slot %s", a.FlightID, a.TimeSlot)})
			}
		}
		if !r.Window.Contains(a.TimeSlot) {
			out = append(out, Conflict{Type: ConflictWindow, Flights: []string{a.FlightID},
				Message: fmt.Sprintf("flight %s departs at %s outside %s-%s", a.FlightID, a.TimeSlot, r.Window.Start, r.Window.End)})
		}
		if ac, ok := d.AircraftByID(a.AircraftID); !ok || !ac.Usable() {
			out = append(out, Conflict{Type: ConflictGrounded, Flights: []string{a.FlightID},
				Message: fmt.Sprintf("aircraft %s is not usable", a.AircraftID)})
		}
		if cr, ok := d.CrewByID(a.CrewID); !ok || !cr.OnDuty {
			out = append(out, Conflict{Type: ConflictOffDuty, Flights: []string{a.FlightID},
				Message: fmt.Sprintf("crew %s is not on duty", a.CrewID)})
		}
		if !d.Certification.Allowed(a.AircraftID, a.CrewID) {
			out = append(out, Conflict{Type: ConflictCertification, Flights: []string{a.FlightID},
				Message: fmt.Sprintf("crew %s is not certified on %s", a.CrewID, a.AircraftID)})
		}
	}

	out = append(out, clashes(s, r.Turnaround, ConflictAircraftClash, func(a model.Assignment) string { return a.AircraftID })...)
	out = append(out, clashes(s, r.Turnaround, ConflictCrewClash, func(a model.Assignment) string { return a.CrewID })...)
	return out
}

// clashes groups assignments by resource and flags pairs closer than turnaround.
func clashes(s model.Schedule, turnaround int, kind ConflictType, key func(model.Assignment) string) []Conflict {
	groups := map[string][]model.Assignment{}
	for _, a := range s {
		groups[key(a)] = append(groups[key(a)], a)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Conflict
	for _, id := range ids {
		list := groups[id]
		sort.Slice(list, func(i, j int) bool { return list[i].TimeSlot < list[j].TimeSlot })
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				gap := list[j].TimeSlot.Minutes() - list[i].TimeSlot.Minutes()
				if gap == 0 || gap < turnaround {
					out = append(out, Conflict{Type: kind, Flights: []string{list[i].FlightID, list[j].FlightID},
						Message: fmt.Sprintf("%s %s flies %s at %s and %s at %s", kind, id,
							list[i].FlightID, list[i].TimeSlot, list[j].FlightID, list[j].TimeSlot)})
				}
			}
		}
	}
	return out
}
