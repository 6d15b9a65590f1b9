// Package command maps structured operator commands onto the
// reoptimization controller and renders the replies.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Actions understood by the dispatcher.
const (
	ActionCrewUnavailable = "crew_unavailable"
	ActionMaintenance     = "maintenance_alert"
	ActionShowSchedule    = "show_schedule"
	// ActionUnknown is what an upstream interpreter emits when it cannot classify a request.
	ActionUnknown = "unknown"
)

// FallbackText is returned for an unknown command without an explanation.
const FallbackText = "I didn't understand that request. Try: 'Crew C02 is sick' or 'Aircraft A101 needs maintenance in 3 hours'"

// Command is one structured operator request.
type Command struct {
	Action     string   `json:"action"`
	CrewID     string   `json:"crew_id,omitempty"`
	AircraftID string   `json:"aircraft_id,omitempty"`
	Hours      *float64 `json:"hours,omitempty"`
	// Explanation is only used to head the reply.
	Explanation string `json:"explanation,omitempty"`
}

// Decode parses a JSON command. Unknown fields are ignored and surrounding
// markdown code fences are stripped.
func Decode(b []byte) (Command, error) {
	b = bytes.TrimSpace(b)
	b = bytes.TrimPrefix(b, []byte("```json"))
	b = bytes.TrimPrefix(b, []byte("```"))
	b = bytes.TrimSuffix(b, []byte("```"))
	var c Command
	if err := json.Unmarshal(bytes.TrimSpace(b), &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	c.Action = strings.TrimSpace(c.Action)
	c.CrewID = strings.TrimSpace(c.CrewID)
	c.AircraftID = strings.TrimSpace(c.AircraftID)
	return c, nil
}

// CrewUnavailable builds a crew_unavailable command.
func CrewUnavailable(crewID string) Command {
	return Command{Action: ActionCrewUnavailable, CrewID: crewID}
}

// MaintenanceAlert builds a maintenance_alert command.
func MaintenanceAlert(aircraftID string, hours float64) Command {
	return Command{Action: ActionMaintenance, AircraftID: aircraftID, Hours: &hours}
}

// ShowSchedule builds a show_schedule command.
func ShowSchedule() Command { return Command{Action: ActionShowSchedule} }
