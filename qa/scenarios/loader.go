package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/cargoplan/core/model"
)

type FlightDef struct {
	ID          string  `yaml:"id"`
	Origin      string  `yaml:"origin"`
	Destination string  `yaml:"destination"`
	CargoType   string  `yaml:"cargo_type"`
	Priority    int     `yaml:"priority"`
	Departure   string  `yaml:"departure"`
	SLA         string  `yaml:"sla"`
	Duration    int     `yaml:"duration"`
	Volume      float64 `yaml:"volume,omitempty"`
	Hazmat      bool    `yaml:"hazmat,omitempty"`
}

func (f FlightDef) ToModel() (model.Flight, error) {
	dep, err := model.ParseClock(f.Departure)
	if err != nil {
		return model.Flight{}, fmt.Errorf("flight %s departure: %w", f.ID, err)
	}
	sla, err := model.ParseClock(f.SLA)
	if err != nil {
		return model.Flight{}, fmt.Errorf("flight %s sla: %w", f.ID, err)
	}
	fl, err := model.NewFlight(f.ID, f.Origin, f.Destination, f.CargoType, f.Priority, dep, sla, f.Duration)
	if err != nil {
		return model.Flight{}, err
	}
	fl.CargoVolume = f.Volume
	fl.Hazmat = f.Hazmat
	return fl, nil
}

type AircraftDef struct {
	ID             string  `yaml:"id"`
	Type           string  `yaml:"type,omitempty"`
	InMaintenance  bool    `yaml:"in_maintenance,omitempty"`
	MaintenanceDue float64 `yaml:"maintenance_due"`
	ReadyTime      string  `yaml:"ready_time,omitempty"`
}

type CrewDef struct {
	ID           string  `yaml:"id"`
	OnDuty       bool    `yaml:"on_duty"`
	MaxDutyHours float64 `yaml:"max_duty_hours"`
	HoursWorked  float64 `yaml:"hours_worked,omitempty"`
	DutyStart    string  `yaml:"duty_start,omitempty"`
}

// AssignmentExp checks one flight of the resulting schedule. Empty fields are
// not checked.
type AssignmentExp struct {
	Aircraft  string `yaml:"aircraft,omitempty"`
	Crew      string `yaml:"crew,omitempty"`
	Delay     *int   `yaml:"delay,omitempty"`
	SLAMissed *bool  `yaml:"sla_missed,omitempty"`
}

type Expected struct {
	// Error is a planerr kind such as infeasible_model, or empty.
	Error          string                   `yaml:"error,omitempty"`
	Flights        *int                     `yaml:"flights,omitempty"`
	Status         string                   `yaml:"status,omitempty"`
	Objective      *float64                 `yaml:"objective,omitempty"`
	Initial        bool                     `yaml:"initial,omitempty"`
	ChangesContain []string                 `yaml:"changes_contain,omitempty"`
	Assignments    map[string]AssignmentExp `yaml:"assignments,omitempty"`
	AircraftUnused []string                 `yaml:"aircraft_unused,omitempty"`
	CrewUnused     []string                 `yaml:"crew_unused,omitempty"`
	ReplyContains  []string                 `yaml:"reply_contains,omitempty"`
}

// Step is one action applied to the running controller.
type Step struct {
	Action     string   `yaml:"action"`
	CrewID     string   `yaml:"crew_id,omitempty"`
	AircraftID string   `yaml:"aircraft_id,omitempty"`
	Hours      *float64 `yaml:"hours,omitempty"`
	Expect     Expected `yaml:"expect"`
}

type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	StrictIDs   bool          `yaml:"strict_ids,omitempty"`
	Slots       []string      `yaml:"slots"`
	Flights     []FlightDef   `yaml:"flights"`
	Aircraft    []AircraftDef `yaml:"aircraft"`
	Crew        []CrewDef     `yaml:"crew"`
	// Certification lists the crews allowed on each aircraft; "*" allows all.
	Certification map[string][]string `yaml:"certification"`
	// Gateways lists the airports each aircraft may serve; "*" allows all.
	Gateways map[string][]string `yaml:"gateways"`
	Steps    []Step              `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}

// Dataset builds the model dataset described by the scenario.
func (sc *Scenario) Dataset() (model.Dataset, error) {
	d := model.Dataset{
		Certification: model.CertificationMatrix{},
		Gateways:      model.GatewayMatrix{},
		Specs:         map[string]model.AircraftSpec{},
	}
	for _, s := range sc.Slots {
		c, err := model.ParseClock(s)
		if err != nil {
			return d, err
		}
		d.Slots = append(d.Slots, c)
	}
	airports := map[string]bool{}
	for _, fd := range sc.Flights {
		f, err := fd.ToModel()
		if err != nil {
			return d, err
		}
		airports[f.Origin], airports[f.Destination] = true, true
		d.Flights = append(d.Flights, f)
	}
	for _, ad := range sc.Aircraft {
		a := model.Aircraft{ID: ad.ID, Type: ad.Type, InMaintenance: ad.InMaintenance, MaintenanceDue: ad.MaintenanceDue}
		if ad.ReadyTime != "" {
			c, err := model.ParseClock(ad.ReadyTime)
			if err != nil {
				return d, err
			}
			a.ReadyTime = c
		}
		d.Aircraft = append(d.Aircraft, a)
	}
	for _, cd := range sc.Crew {
		c := model.Crew{ID: cd.ID, OnDuty: cd.OnDuty, MaxDutyHours: cd.MaxDutyHours, HoursWorked: cd.HoursWorked}
		if cd.DutyStart != "" {
			clk, err := model.ParseClock(cd.DutyStart)
			if err != nil {
				return d, err
			}
			c.DutyStart = clk
		}
		d.Crew = append(d.Crew, c)
	}
	for aid, crews := range sc.Certification {
		for _, cid := range expand(crews, crewIDs(d)) {
			d.Certification.Set(aid, cid, true)
		}
	}
	all := make([]string, 0, len(airports))
	for a := range airports {
		all = append(all, a)
	}
	for aid, gws := range sc.Gateways {
		for _, g := range expand(gws, all) {
			d.Gateways.Set(aid, g, true)
		}
	}
	return d, nil
}

func crewIDs(d model.Dataset) []string {
	out := make([]string, len(d.Crew))
	for i, c := range d.Crew {
		out[i] = c.ID
	}
	return out
}

func expand(ids, all []string) []string {
	if len(ids) == 1 && ids[0] == "*" {
		return all
	}
	return ids
}
