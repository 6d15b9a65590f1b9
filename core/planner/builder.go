package planner

import (
	"fmt"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/solver"
	"github.com/kilianp07/cargoplan/infra/logger"
)

const noVar solver.VarID = -1

// Plan is a built model together with the index needed to read a solution back.
type Plan struct {
	Model   *solver.Model
	Dataset model.Dataset
	Params  Params

	slot     [][]solver.VarID // flight × slot
	aircraft [][]solver.VarID // flight × aircraft
	crew     [][]solver.VarID // flight × crew
	delay    []solver.VarID
	sla      []solver.VarID
	gateway  []solver.VarID
	hazmat   []solver.VarID
	volume   []solver.VarID
	fuel     []solver.VarID
	overtime []solver.VarID // per crew
}

// Builder translates a dataset snapshot into an optimization model.
type Builder struct {
	params Params
	log    logger.Logger
}

// NewBuilder returns a builder using p.
func NewBuilder(p Params, log logger.Logger) *Builder {
	return &Builder{params: p, log: logger.OrNop(log)}
}

// Params returns the parameters used by the builder.
func (b *Builder) Params() Params { return b.params }

// Build produces the complete model for the snapshot d. The snapshot is
// retained by the plan and must not be mutated afterwards.
func (b *Builder) Build(d model.Dataset) (*Plan, error) {
	if err := b.params.Validate(); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	p := &Plan{Model: solver.NewModel(), Dataset: d, Params: b.params}
	if err := p.addVariables(); err != nil {
		return nil, err
	}
	p.addAssignmentRows()
	p.addAvailability()
	p.addTurnaround()
	p.addCrewRules()
	p.addCertification()
	p.addDelayAndSLA()
	p.addSoftPenalties()
	b.log.Debugw("model built", map[string]any{
		"flights":     len(d.Flights),
		"slots":       len(d.Slots),
		"variables":   p.Model.NumVars(),
		"constraints": len(p.Model.Constraints()),
	})
	return p, nil
}

func (p *Plan) addVariables() error {
	d, m := p.Dataset, p.Model
	nf := len(d.Flights)
	p.slot = make([][]solver.VarID, nf)
	p.aircraft = make([][]solver.VarID, nf)
	p.crew = make([][]solver.VarID, nf)
	p.delay = make([]solver.VarID, nf)
	p.sla = make([]solver.VarID, nf)
	p.gateway = make([]solver.VarID, nf)
	p.hazmat = make([]solver.VarID, nf)
	p.volume = make([]solver.VarID, nf)
	p.fuel = make([]solver.VarID, nf)
	for i, f := range d.Flights {
		mult := f.PriorityMultiplier
		if mult == 0 {
			var err error
			if mult, err = model.PriorityMultiplier(f.Priority); err != nil {
				return fmt.Errorf("planner: flight %s: %w", f.ID, err)
			}
		}
		p.slot[i] = make([]solver.VarID, len(d.Slots))
		for t, s := range d.Slots {
			p.slot[i][t] = m.AddBinary(fmt.Sprintf("is_time[%s,%s]", f.ID, s))
		}
		p.aircraft[i] = make([]solver.VarID, len(d.Aircraft))
		for a, ac := range d.Aircraft {
			p.aircraft[i][a] = m.AddBinary(fmt.Sprintf("aircraft_used[%s,%s]", f.ID, ac.ID))
		}
		p.crew[i] = make([]solver.VarID, len(d.Crew))
		for c, cr := range d.Crew {
			p.crew[i][c] = m.AddBinary(fmt.Sprintf("crew_assigned[%s,%s]", f.ID, cr.ID))
		}
		p.delay[i] = m.AddContinuous(fmt.Sprintf("minutes_delayed[%s]", f.ID), 0)
		m.AddObjective(p.delay[i], p.Params.DelayPenalty*mult)
		p.sla[i] = m.AddBinary(fmt.Sprintf("sla_missed[%s]", f.ID))
		m.AddObjective(p.sla[i], p.Params.SLAPenalty*mult)
		p.gateway[i] = m.AddBinary(fmt.Sprintf("gateway_violation[%s]", f.ID))
		m.AddObjective(p.gateway[i], p.Params.GatewayPenalty)
		p.hazmat[i], p.volume[i], p.fuel[i] = noVar, noVar, noVar
	}
	p.overtime = make([]solver.VarID, len(d.Crew))
	for c, cr := range d.Crew {
		p.overtime[c] = m.AddContinuous(fmt.Sprintf("overtime[%s]", cr.ID), 0)
		m.AddObjective(p.overtime[c], p.Params.OvertimeWeight)
	}
	return nil
}

// addAssignmentRows enforces exactly one slot, aircraft and crew per flight.
// Slots outside the operating window are closed by their upper bound.
func (p *Plan) addAssignmentRows() {
	d, m := p.Dataset, p.Model
	for i, f := range d.Flights {
		m.AddConstraint("one_slot["+f.ID+"]", solver.EQ, 1, ones(p.slot[i])...)
		m.AddConstraint("one_aircraft["+f.ID+"]", solver.EQ, 1, ones(p.aircraft[i])...)
		m.AddConstraint("one_crew["+f.ID+"]", solver.EQ, 1, ones(p.crew[i])...)
		for t, s := range d.Slots {
			if !p.Params.Window.Contains(s) {
				m.SetUpper(p.slot[i][t], 0)
			}
		}
	}
}

// addAvailability grounds aircraft under maintenance and off-duty crew.
func (p *Plan) addAvailability() {
	d, m := p.Dataset, p.Model
	for i := range d.Flights {
		for a, ac := range d.Aircraft {
			if !ac.Usable() {
				m.SetUpper(p.aircraft[i][a], 0)
			}
		}
		for c, cr := range d.Crew {
			if !cr.OnDuty {
				m.SetUpper(p.crew[i][c], 0)
			}
		}
	}
}

func (p *Plan) slotOpen(t int) bool { return p.Params.Window.Contains(p.Dataset.Slots[t]) }

// openSlots returns the indexes of the slots inside the operating window.
func (p *Plan) openSlots() []int {
	var out []int
	for t := range p.Dataset.Slots {
		if p.slotOpen(t) {
			out = append(out, t)
		}
	}
	return out
}

// resource describes one family of flight resources for addOccupancy.
type resource struct {
	kind  string
	ids   []string
	pick  [][]solver.VarID // flight × resource
	ready func(r int, s model.Clock) bool
}

// addOccupancy links the resource and slot choices of every flight through
// occupancy variables occ[f,r,t] with Σt occ = pick[f,r] and Σr occ = slot[f,t],
// then allows each resource at most one flight per turnaround window. Pairs
// that are not ready at a slot get no occupancy variable.
func (p *Plan) addOccupancy(res resource) {
	d, m := p.Dataset, p.Model
	open := p.openSlots()
	occ := make([][][]solver.VarID, len(res.ids)) // resource × slot × flights
	for r := range res.ids {
		occ[r] = make([][]solver.VarID, len(d.Slots))
	}
	for i, f := range d.Flights {
		bySlot := make([][]solver.Term, len(d.Slots))
		for r, id := range res.ids {
			if m.Var(res.pick[i][r]).Upper == 0 {
				continue
			}
			link := []solver.Term{solver.T(res.pick[i][r], -1)}
			for _, t := range open {
				s := d.Slots[t]
				if !res.ready(r, s) {
					continue
				}
				v := m.AddVar(fmt.Sprintf("%s_at[%s,%s,%s]", res.kind, f.ID, id, s), solver.Continuous, 0, 1)
				link = append(link, solver.T(v, 1))
				bySlot[t] = append(bySlot[t], solver.T(v, 1))
				occ[r][t] = append(occ[r][t], v)
			}
			m.AddConstraint(fmt.Sprintf("%s_link[%s,%s]", res.kind, f.ID, id), solver.EQ, 0, link...)
		}
		for _, t := range open {
			m.AddConstraint(fmt.Sprintf("%s_slot[%s,%s]", res.kind, f.ID, d.Slots[t]), solver.EQ, 0,
				append(bySlot[t], solver.T(p.slot[i][t], -1))...)
		}
	}

	turn := p.Params.Turnaround
	for r, id := range res.ids {
		prevEnd := -1
		for k, t := range open {
			end := k + 1
			for end < len(open) && d.Slots[open[end]].Minutes()-d.Slots[t].Minutes() < turn {
				end++
			}
			if end == prevEnd {
				continue
			}
			prevEnd = end
			var terms []solver.Term
			for _, u := range open[k:end] {
				terms = append(terms, ones(occ[r][u])...)
			}
			if len(terms) < 2 {
				continue
			}
			m.AddConstraint(fmt.Sprintf("%s_turnaround[%s,%s]", res.kind, id, d.Slots[t]), solver.LE, 1, terms...)
		}
	}
}

// addTurnaround keeps every aircraft on at most one flight per turnaround
// window and off flights departing before it is ready.
func (p *Plan) addTurnaround() {
	d := p.Dataset
	ids := make([]string, len(d.Aircraft))
	for a, ac := range d.Aircraft {
		ids[a] = ac.ID
	}
	p.addOccupancy(resource{
		kind: "aircraft",
		ids:  ids,
		pick: p.aircraft,
		ready: func(a int, s model.Clock) bool {
			return d.Aircraft[a].Usable() && s >= d.Aircraft[a].ReadyTime
		},
	})
}

// addCrewRules applies the same window rule to crew, keeps them off flights
// before their duty starts and captures duty beyond the remaining budget as
// overtime minutes.
func (p *Plan) addCrewRules() {
	d, m := p.Dataset, p.Model
	ids := make([]string, len(d.Crew))
	for c, cr := range d.Crew {
		ids[c] = cr.ID
	}
	p.addOccupancy(resource{
		kind: "crew",
		ids:  ids,
		pick: p.crew,
		ready: func(c int, s model.Clock) bool {
			return d.Crew[c].OnDuty && s >= d.Crew[c].DutyStart
		},
	})
	for c, cr := range d.Crew {
		if !cr.OnDuty {
			continue
		}
		terms := []solver.Term{solver.T(p.overtime[c], 1)}
		for i, f := range d.Flights {
			terms = append(terms, solver.T(p.crew[i][c], -float64(f.DurationMinutes+p.Params.Turnaround)))
		}
		m.AddConstraint("crew_overtime["+cr.ID+"]", solver.GE, -cr.RemainingDutyMinutes(p.Params.MaxDutyHours), terms...)
	}
}

// addCertification forbids uncertified aircraft and crew pairs on one flight.
func (p *Plan) addCertification() {
	d, m := p.Dataset, p.Model
	for a, ac := range d.Aircraft {
		if !ac.Usable() {
			continue
		}
		for c, cr := range d.Crew {
			if !cr.OnDuty || d.Certification.Allowed(ac.ID, cr.ID) {
				continue
			}
			for i, f := range d.Flights {
				m.AddConstraint(fmt.Sprintf("cert[%s,%s,%s]", f.ID, ac.ID, cr.ID), solver.LE, 1,
					solver.T(p.aircraft[i][a], 1), solver.T(p.crew[i][c], 1))
			}
		}
	}
}

// addDelayAndSLA links the chosen departure minute to the delay quantity and
// to the SLA indicator through a big-M pair sized per flight.
func (p *Plan) addDelayAndSLA() {
	d, m := p.Dataset, p.Model
	if len(d.Slots) == 0 {
		return
	}
	minDep := d.Slots[0].Minutes()
	maxDep := d.Slots[len(d.Slots)-1].Minutes()
	for i, f := range d.Flights {
		dep := p.departure(i, 1)
		m.AddConstraint("delay["+f.ID+"]", solver.GE, -float64(f.ScheduledDeparture.Minutes()),
			append([]solver.Term{solver.T(p.delay[i], 1)}, p.departure(i, -1)...)...)

		sla := f.SLADeadline.Minutes()
		bigM := float64(max(maxDep-sla, sla+1-minDep, 1))
		m.AddConstraint("sla_upper["+f.ID+"]", solver.LE, float64(sla),
			append(dep, solver.T(p.sla[i], -bigM))...)
		m.AddConstraint("sla_lower["+f.ID+"]", solver.GE, float64(sla+1)-bigM,
			append(p.departure(i, 1), solver.T(p.sla[i], -bigM))...)
	}
}

// departure returns sign·Σ minute(t)·is_time[f,t].
func (p *Plan) departure(i int, sign float64) []solver.Term {
	terms := make([]solver.Term, 0, len(p.Dataset.Slots))
	for t, s := range p.Dataset.Slots {
		if s.Minutes() == 0 {
			continue
		}
		terms = append(terms, solver.T(p.slot[i][t], sign*float64(s.Minutes())))
	}
	return terms
}

// addSoftPenalties wires the gateway, hazmat, volume and fuel indicators.
func (p *Plan) addSoftPenalties() {
	d, m := p.Dataset, p.Model
	for i, f := range d.Flights {
		hazmat := p.Params.IsHazmat(f)
		for a, ac := range d.Aircraft {
			if !ac.Usable() {
				continue
			}
			used := solver.T(p.aircraft[i][a], 1)
			if !d.Gateways.Compatible(ac.ID, f.Origin) || !d.Gateways.Compatible(ac.ID, f.Destination) {
				m.AddConstraint(fmt.Sprintf("gateway[%s,%s]", f.ID, ac.ID), solver.LE, 0,
					used, solver.T(p.gateway[i], -1))
			}
			spec, hasSpec := d.Specs[ac.ID]
			if hazmat && (!hasSpec || !spec.HazmatCertified) {
				if p.hazmat[i] == noVar {
					p.hazmat[i] = m.AddBinary(fmt.Sprintf("hazmat_violation[%s]", f.ID))
					m.AddObjective(p.hazmat[i], p.Params.HazmatPenalty)
				}
				m.AddConstraint(fmt.Sprintf("hazmat[%s,%s]", f.ID, ac.ID), solver.LE, 0,
					used, solver.T(p.hazmat[i], -1))
			}
			if f.CargoVolume > 0 && hasSpec && spec.MaxCargoVolume > 0 && f.CargoVolume > spec.MaxCargoVolume {
				if p.volume[i] == noVar {
					p.volume[i] = m.AddBinary(fmt.Sprintf("volume_violation[%s]", f.ID))
					m.AddObjective(p.volume[i], p.Params.VolumePenalty)
				}
				m.AddConstraint(fmt.Sprintf("volume[%s,%s]", f.ID, ac.ID), solver.LE, 0,
					used, solver.T(p.volume[i], -1))
			}
		}
		if p.Params.FuelPenalty > 0 {
			p.fuel[i] = m.AddContinuous(fmt.Sprintf("fuel_cost[%s]", f.ID), 0)
			m.AddObjective(p.fuel[i], p.Params.FuelPenalty)
			terms := []solver.Term{solver.T(p.fuel[i], 1), solver.T(p.delay[i], -1)}
			for a, ac := range d.Aircraft {
				burn := DefaultFuelBurn
				if spec, ok := d.Specs[ac.ID]; ok && spec.FuelBurnPerMinute > 0 {
					burn = spec.FuelBurnPerMinute
				}
				terms = append(terms, solver.T(p.aircraft[i][a], -burn*float64(f.DurationMinutes)))
			}
			m.AddConstraint("fuel["+f.ID+"]", solver.GE, 0, terms...)
		}
	}
}

func ones(ids []solver.VarID) []solver.Term {
	out := make([]solver.Term, len(ids))
	for i, id := range ids {
		out[i] = solver.T(id, 1)
	}
	return out
}
