package planner

import (
	"fmt"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/solver"
)

// Utilization summarises resource usage of an extracted schedule.
type Utilization struct {
	AircraftUsed      int                `json:"aircraft_used"`
	AircraftAvailable int                `json:"aircraft_available"`
	CrewUsed          int                `json:"crew_used"`
	CrewAvailable     int                `json:"crew_available"`
	OvertimeMinutes   map[string]float64 `json:"overtime_minutes,omitempty"`
	GatewayViolations int                `json:"gateway_violations"`
	HazmatViolations  int                `json:"hazmat_violations"`
	VolumeViolations  int                `json:"volume_violations"`
}

// Extraction is the schedule read back from a solved plan.
type Extraction struct {
	Schedule    model.Schedule
	Objective   float64
	Status      solver.Status
	Utilization Utilization
}

// Certified reports whether the schedule is proven optimal.
func (e Extraction) Certified() bool { return e.Status == solver.StatusOptimal }

// Extract turns an engine result into a schedule. Infeasible results yield an
// InfeasibleModel error. Results that are not proven optimal yield a
// SolverTimeout error; the extraction still carries the best-found schedule
// when the engine had one.
func (p *Plan) Extract(res solver.Result) (Extraction, error) {
	const op = "planner.extract"
	out := Extraction{Status: res.Status}
	switch res.Status {
	case solver.StatusInfeasible:
		return out, planerr.Infeasible(op, nil)
	case solver.StatusTimeout:
		return out, planerr.SolverTimeout(op, string(res.Status))
	case solver.StatusOptimal, solver.StatusFeasible:
	default:
		return out, fmt.Errorf("%s: unknown engine status %q", op, res.Status)
	}
	if len(res.Values) != p.Model.NumVars() {
		return out, fmt.Errorf("%s: engine returned %d values for %d variables", op, len(res.Values), p.Model.NumVars())
	}

	d := p.Dataset
	sched := make(model.Schedule, 0, len(d.Flights))
	usedAircraft := map[string]bool{}
	usedCrew := map[string]bool{}
	for i, f := range d.Flights {
		t := pick(res, p.slot[i])
		a := pick(res, p.aircraft[i])
		c := pick(res, p.crew[i])
		if t < 0 || a < 0 || c < 0 {
			return out, fmt.Errorf("%s: flight %s has no complete assignment in the solution", op, f.ID)
		}
		slot := d.Slots[t]
		sched = append(sched, model.Assignment{
			FlightID:     f.ID,
			TimeSlot:     slot,
			AircraftID:   d.Aircraft[a].ID,
			CrewID:       d.Crew[c].ID,
			DelayMinutes: f.DelayAt(slot),
			SLAMissed:    f.MissesSLA(slot),
			CargoType:    f.CargoType,
			Priority:     f.Priority,
		})
		usedAircraft[d.Aircraft[a].ID] = true
		usedCrew[d.Crew[c].ID] = true
		if res.IsOne(p.gateway[i]) {
			out.Utilization.GatewayViolations++
		}
		if p.hazmat[i] != noVar && res.IsOne(p.hazmat[i]) {
			out.Utilization.HazmatViolations++
		}
		if p.volume[i] != noVar && res.IsOne(p.volume[i]) {
			out.Utilization.VolumeViolations++
		}
	}
	out.Schedule = sched
	out.Objective = res.Objective
	out.Utilization.AircraftUsed = len(usedAircraft)
	out.Utilization.CrewUsed = len(usedCrew)
	for _, ac := range d.Aircraft {
		if ac.Usable() {
			out.Utilization.AircraftAvailable++
		}
	}
	for c, cr := range d.Crew {
		if cr.OnDuty {
			out.Utilization.CrewAvailable++
		}
		if ot := res.Value(p.overtime[c]); ot > 1e-6 {
			if out.Utilization.OvertimeMinutes == nil {
				out.Utilization.OvertimeMinutes = map[string]float64{}
			}
			out.Utilization.OvertimeMinutes[cr.ID] = ot
		}
	}
	if res.Status == solver.StatusFeasible {
		return out, planerr.SolverTimeout(op, string(res.Status))
	}
	return out, nil
}

// pick returns the index of the selected binary in a one-hot group.
func pick(res solver.Result, group []solver.VarID) int {
	for i, id := range group {
		if res.IsOne(id) {
			return i
		}
	}
	return -1
}
