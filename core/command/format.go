package command

import (
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/cargoplan/core/model"
)

// StatusLabel renders a run status for operators.
func StatusLabel(r model.Result) string {
	switch {
	case r.Certified:
		return "Optimal"
	case r.Status == "feasible":
		return "Feasible (not certified optimal)"
	case r.Status == "":
		return "Unknown"
	default:
		return strings.ToUpper(r.Status[:1]) + r.Status[1:]
	}
}

// FormatMutation renders the reply to a data change: the first flights of
// the new schedule and the change list.
func FormatMutation(head string, r model.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", head)
	b.WriteString("Optimization Results:\n")
	fmt.Fprintf(&b, "- Objective Value: %.0f\n", math.Round(r.ObjectiveValue))
	fmt.Fprintf(&b, "- Status: %s\n\n", StatusLabel(r))

	changes := r.Changes.Lines
	if r.Changes.Initial {
		changes = []string{model.InitialChanges}
	}
	if len(changes) > 0 {
		b.WriteString("Changes Made:\n")
		for _, c := range changes {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	b.WriteString("Updated Schedule:\n")
	n := len(r.Schedule)
	for _, a := range r.Schedule[:min(n, mutationPreview)] {
		fmt.Fprintf(&b, "- Flight %s (%s): %s - Aircraft: %s, Crew: %s%s\n",
			a.FlightID, a.CargoType, a.TimeSlot, a.AircraftID, a.CrewID, delayNote(a))
	}
	if n > mutationPreview {
		fmt.Fprintf(&b, "... and %d more flights\n", n-mutationPreview)
	}
	return b.String()
}

// FormatSchedule renders every assignment of r.
func FormatSchedule(head string, r model.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", head)
	b.WriteString("Current Status:\n")
	fmt.Fprintf(&b, "- Objective Value: %.0f\n", math.Round(r.ObjectiveValue))
	fmt.Fprintf(&b, "- Status: %s\n\n", StatusLabel(r))
	b.WriteString("Current Schedule:\n")
	for _, a := range r.Schedule {
		fmt.Fprintf(&b, "- Flight %s (%s, Priority %d): %s - Aircraft: %s, Crew: %s%s\n",
			a.FlightID, a.CargoType, a.Priority, a.TimeSlot, a.AircraftID, a.CrewID, delayNote(a))
	}
	return b.String()
}

func delayNote(a model.Assignment) string {
	var parts []string
	if a.DelayMinutes > 0 {
		parts = append(parts, fmt.Sprintf("Delayed %d min", a.DelayMinutes))
	}
	if a.SLAMissed {
		parts = append(parts, "SLA missed")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
