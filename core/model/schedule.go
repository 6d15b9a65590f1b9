package model

import (
	"encoding/json"
	"fmt"
)

// Assignment is the extracted plan for one flight.
type Assignment struct {
	FlightID     string `json:"flight_id" csv:"flight_id"`
	TimeSlot     Clock  `json:"time_slot" csv:"time_slot"`
	AircraftID   string `json:"aircraft_id" csv:"aircraft_id"`
	CrewID       string `json:"crew_id" csv:"crew_id"`
	DelayMinutes int    `json:"delay_minutes" csv:"delay_minutes"`
	SLAMissed    bool   `json:"sla_missed" csv:"sla_missed"`
	CargoType    string `json:"cargo_type" csv:"cargo_type"`
	Priority     int    `json:"priority" csv:"priority"`
}

// Schedule is an ordered list of assignments, one per scheduled flight.
type Schedule []Assignment

// ByFlight indexes the schedule by flight identifier.
func (s Schedule) ByFlight() map[string]Assignment {
	out := make(map[string]Assignment, len(s))
	for _, a := range s {
		out[a.FlightID] = a
	}
	return out
}

// TotalDelay sums every assignment delay.
func (s Schedule) TotalDelay() int {
	total := 0
	for _, a := range s {
		total += a.DelayMinutes
	}
	return total
}

// SLAMisses counts the assignments departing after their deadline.
func (s Schedule) SLAMisses() int {
	n := 0
	for _, a := range s {
		if a.SLAMissed {
			n++
		}
	}
	return n
}

// InitialChanges is reported in place of a change list on the first run.
const InitialChanges = "Initial optimization"

// Changes is either the literal initial marker or a list of difference lines.
// It marshals as a JSON string in the first case and an array otherwise.
type Changes struct {
	Initial bool
	Lines   []string
}

// InitialRun returns the marker used for the first optimization.
func InitialRun() Changes { return Changes{Initial: true} }

// ChangeLines wraps a list of difference lines.
func ChangeLines(lines []string) Changes { return Changes{Lines: lines} }

func (c Changes) String() string {
	if c.Initial {
		return InitialChanges
	}
	return fmt.Sprintf("%v", c.Lines)
}

// MarshalJSON implements json.Marshaler.
func (c Changes) MarshalJSON() ([]byte, error) {
	if c.Initial {
		return json.Marshal(InitialChanges)
	}
	lines := c.Lines
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(lines)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Changes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != InitialChanges {
			return fmt.Errorf("unexpected changes marker %q", s)
		}
		*c = InitialRun()
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return fmt.Errorf("decode changes: %w", err)
	}
	*c = ChangeLines(lines)
	return nil
}

// Result is the payload returned by every optimization run.
type Result struct {
	Schedule       Schedule `json:"schedule"`
	ObjectiveValue float64  `json:"objective_value"`
	Changes        Changes  `json:"changes"`
	// Certified is false when the engine stopped before proving optimality.
	Certified bool   `json:"certified"`
	Status    string `json:"status,omitempty"`
}
