// Package reopt runs the apply change, rebuild, solve, extract, diff and
// persist cycle, and keeps the accepted baseline schedule.
package reopt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cargoplan/core/diff"
	"github.com/kilianp07/cargoplan/core/events"
	"github.com/kilianp07/cargoplan/core/history"
	"github.com/kilianp07/cargoplan/core/logger"
	"github.com/kilianp07/cargoplan/core/metrics"
	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/monitoring"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/core/solver"
	"github.com/kilianp07/cargoplan/core/store"
	"github.com/kilianp07/cargoplan/core/validate"
	infralog "github.com/kilianp07/cargoplan/infra/logger"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

// State of the controller.
type State int32

const (
	Idle State = iota
	Optimizing
)

func (s State) String() string {
	if s == Optimizing {
		return "optimizing"
	}
	return "idle"
}

// Triggers recorded with every run.
const (
	TriggerRecompute   = "recompute"
	TriggerShow        = "show_schedule"
	TriggerCrew        = "crew_availability"
	TriggerMaintenance = "maintenance"
)

// ErrInvalidSchedule is returned when an extracted schedule breaks a hard rule.
var ErrInvalidSchedule = errors.New("extracted schedule failed validation")

// Options carries the optional collaborators of a Controller.
type Options struct {
	Budget  solver.Budget
	Logger  logger.Logger
	Metrics metrics.Sink
	Bus     eventbus.EventBus
	History history.Store
	Monitor monitoring.Monitor
	Now     func() time.Time
	NewID   func() string
}

// Outcome is the full record of one accepted run.
type Outcome struct {
	RunID       string
	Trigger     string
	Result      model.Result
	Utilization planner.Utilization
	Nodes       int
	Duration    time.Duration
	// Mutation is set when the run followed a data store change.
	Mutation *store.Mutation
}

// Payload returns the response body shared by every caller.
func (o Outcome) Payload() model.Result { return o.Result }

// HasSchedule reports whether the outcome carries an extracted schedule.
func (o Outcome) HasSchedule() bool { return o.Result.Schedule != nil }

// Usable reports whether a run produced a schedule callers may present: it
// either succeeded or stopped on its budget with a best-found schedule. A
// SolverTimeout without a schedule is a failure.
func Usable(out Outcome, err error) bool {
	return err == nil || (planerr.IsKind(err, planerr.KindSolverTimeout) && out.HasSchedule())
}

// Controller serialises every mutation and rebuild behind one lock.
type Controller struct {
	mu       sync.Mutex
	state    atomic.Int32
	store    *store.Store
	builder  *planner.Builder
	engine   solver.Engine
	budget   solver.Budget
	baseline *Outcome
	previous *Outcome

	log     logger.Logger
	sink    metrics.Sink
	bus     eventbus.EventBus
	history history.Store
	monitor monitoring.Monitor
	now     func() time.Time
	newID   func() string
}

// New wires a controller around an opened store, a builder and an engine.
func New(st *store.Store, b *planner.Builder, eng solver.Engine, opts Options) (*Controller, error) {
	if st == nil || b == nil || eng == nil {
		return nil, fmt.Errorf("reopt: store, builder and engine are required")
	}
	c := &Controller{
		store:   st,
		builder: b,
		engine:  eng,
		budget:  opts.Budget,
		log:     infralog.OrNop(opts.Logger),
		sink:    opts.Metrics,
		bus:     opts.Bus,
		history: opts.History,
		monitor: monitoring.OrNop(opts.Monitor),
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if c.sink == nil {
		c.sink = metrics.NopSink{}
	}
	if c.history == nil {
		c.history = history.NopStore{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// State reports whether a run is in progress.
func (c *Controller) State() State { return State(c.state.Load()) }

// Baseline returns the last accepted run, if any.
func (c *Controller) Baseline() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline == nil {
		return Outcome{}, false
	}
	return *c.baseline, true
}

// Previous returns the run the baseline replaced, if any.
func (c *Controller) Previous() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previous == nil {
		return Outcome{}, false
	}
	return *c.previous, true
}

// Snapshot returns the dataset the next run would be built from.
func (c *Controller) Snapshot() model.Dataset { return c.store.Snapshot() }

// Recompute rebuilds and solves the current dataset.
func (c *Controller) Recompute(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(ctx, TriggerRecompute, nil)
}

// CurrentSchedule returns the baseline, optimizing first when there is none.
func (c *Controller) CurrentSchedule(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline != nil {
		return *c.baseline, nil
	}
	return c.run(ctx, TriggerShow, nil)
}

// SetCrewAvailability updates a crew member and recomputes.
func (c *Controller) SetCrewAvailability(ctx context.Context, crewID string, available bool) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.store.SetCrewAvailability(ctx, crewID, available)
	c.publishMutation(events.EntityCrew, crewID, m, err)
	if err != nil {
		return Outcome{}, err
	}
	return c.run(ctx, TriggerCrew, &m)
}

// MarkCrewUnavailable takes a crew member off duty and recomputes.
func (c *Controller) MarkCrewUnavailable(ctx context.Context, crewID string) (Outcome, error) {
	return c.SetCrewAvailability(ctx, crewID, false)
}

// SetMaintenanceDue updates an aircraft's hours to maintenance and recomputes.
func (c *Controller) SetMaintenanceDue(ctx context.Context, aircraftID string, hours float64) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.store.SetAircraftMaintenance(ctx, aircraftID, hours)
	c.publishMutation(events.EntityAircraft, aircraftID, m, err)
	if err != nil {
		return Outcome{}, err
	}
	return c.run(ctx, TriggerMaintenance, &m)
}

func (c *Controller) publishMutation(entity, id string, m store.Mutation, err error) {
	if err != nil {
		c.log.Warnf("%s %s mutation rejected: %v", entity, id, err)
		return
	}
	c.log.Infow("mutation", map[string]any{"entity": entity, "id": id, "applied": m.Applied})
	if c.bus != nil {
		c.bus.Publish(events.MutationEvent{Entity: entity, ID: id, Description: m.Description, Applied: m.Applied})
	}
}

// run executes one cycle. Callers hold c.mu.
//
// A result that is feasible but not proven optimal becomes the new baseline
// and is returned together with a SolverTimeout error. Any other failure
// leaves the baseline untouched.
func (c *Controller) run(ctx context.Context, trigger string, m *store.Mutation) (Outcome, error) {
	c.state.Store(int32(Optimizing))
	optimizing.Set(1)
	defer func() {
		c.state.Store(int32(Idle))
		optimizing.Set(0)
	}()

	start := c.now()
	runID := c.newID()
	snap := c.store.Snapshot()

	ex, res, err := c.solve(ctx, snap)
	timedOut := err != nil && planerr.IsKind(err, planerr.KindSolverTimeout) && ex.Schedule != nil
	if err == nil || timedOut {
		if conflicts := validate.Check(ex.Schedule, snap, validate.Rules{
			Turnaround: c.builder.Params().Turnaround,
			Window:     c.builder.Params().Window,
		}); len(conflicts) > 0 {
			validationErrors.Add(float64(len(conflicts)))
			for _, cf := range conflicts {
				c.log.Errorf("run %s: %s conflict: %s", runID, cf.Type, cf.Message)
			}
			err = fmt.Errorf("reopt: %w (%d conflicts)", ErrInvalidSchedule, len(conflicts))
			timedOut = false
		}
	}
	elapsed := c.now().Sub(start)
	if err != nil && !timedOut {
		c.fail(runID, trigger, res, elapsed, err)
		return Outcome{}, err
	}

	out := Outcome{
		RunID:       runID,
		Trigger:     trigger,
		Utilization: ex.Utilization,
		Nodes:       res.Nodes,
		Duration:    elapsed,
		Mutation:    m,
		Result: model.Result{
			Schedule:       ex.Schedule,
			ObjectiveValue: ex.Objective,
			Certified:      ex.Certified(),
			Status:         string(ex.Status),
		},
	}
	if c.baseline == nil {
		out.Result.Changes = model.InitialRun()
	} else {
		out.Result.Changes = model.ChangeLines(diff.Compare(c.baseline.Result.Schedule, ex.Schedule))
	}
	c.previous, c.baseline = c.baseline, &out
	c.accept(ctx, out, start)
	return out, err
}

func (c *Controller) solve(ctx context.Context, snap model.Dataset) (planner.Extraction, solver.Result, error) {
	plan, err := c.builder.Build(snap)
	if err != nil {
		return planner.Extraction{}, solver.Result{}, err
	}
	res, err := c.engine.Solve(ctx, plan.Model, c.budget)
	if err != nil {
		return planner.Extraction{}, res, fmt.Errorf("reopt: engine %s: %w", c.engine.Name(), err)
	}
	ex, err := plan.Extract(res)
	return ex, res, err
}

func (c *Controller) accept(ctx context.Context, out Outcome, start time.Time) {
	r := out.Result
	fields := map[string]any{
		"run_id":    out.RunID,
		"trigger":   out.Trigger,
		"status":    r.Status,
		"objective": r.ObjectiveValue,
		"nodes":     out.Nodes,
		"duration":  out.Duration.String(),
	}
	if !r.Certified {
		c.log.Warnf("run %s accepted without optimality proof (status %s)", out.RunID, r.Status)
	}
	c.log.Infow("optimization run accepted", fields)

	overtime := 0.0
	for _, v := range out.Utilization.OvertimeMinutes {
		overtime += v
	}
	u := out.Utilization
	if err := c.sink.RecordRun(metrics.RunReport{
		RunID: out.RunID, Trigger: out.Trigger, Status: r.Status, Accepted: true,
		Objective: r.ObjectiveValue, Nodes: out.Nodes, Duration: out.Duration,
		Flights: len(r.Schedule), TotalDelay: r.Schedule.TotalDelay(), SLAMisses: r.Schedule.SLAMisses(),
		Changes:      len(r.Changes.Lines),
		AircraftUsed: u.AircraftUsed, AircraftAvailable: u.AircraftAvailable,
		CrewUsed: u.CrewUsed, CrewAvailable: u.CrewAvailable,
		OvertimeMinutes: overtime,
		Violations:      u.GatewayViolations + u.HazmatViolations + u.VolumeViolations,
		Time:            start,
	}); err != nil {
		c.log.Errorf("metrics: %v", err)
	}
	if err := c.history.Append(ctx, history.Record{
		RunID: out.RunID, Timestamp: start, Trigger: out.Trigger, Status: r.Status,
		Certified: r.Certified, Objective: r.ObjectiveValue, Changes: r.Changes, Schedule: r.Schedule,
	}); err != nil {
		c.log.Errorf("history append: %v", err)
		c.monitor.CaptureException(err, map[string]string{"component": "history"})
	}
	if c.bus != nil {
		lines := r.Changes.Lines
		if r.Changes.Initial {
			lines = []string{model.InitialChanges}
		}
		c.bus.Publish(events.RunEvent{
			RunID: out.RunID, Trigger: out.Trigger, Status: r.Status, Objective: r.ObjectiveValue,
			Flights: len(r.Schedule), Changes: lines, Accepted: true, Duration: out.Duration,
		})
	}
}

func (c *Controller) fail(runID, trigger string, res solver.Result, elapsed time.Duration, err error) {
	kind := "other"
	var pe *planerr.Error
	if errors.As(err, &pe) {
		kind = string(pe.Kind)
	} else if errors.Is(err, ErrInvalidSchedule) {
		kind = "invalid_schedule"
	}
	runFailures.WithLabelValues(kind).Inc()
	c.log.Errorf("run %s (%s) kept previous baseline: %v", runID, trigger, err)
	c.monitor.CaptureException(err, map[string]string{"trigger": trigger, "kind": kind})

	status := string(res.Status)
	if status == "" {
		status = "error"
	}
	if serr := c.sink.RecordRun(metrics.RunReport{
		RunID: runID, Trigger: trigger, Status: status, Nodes: res.Nodes,
		Duration: elapsed, Time: c.now(),
	}); serr != nil {
		c.log.Errorf("metrics: %v", serr)
	}
	if c.bus != nil {
		c.bus.Publish(events.RunEvent{RunID: runID, Trigger: trigger, Status: status, Duration: elapsed, Err: err})
	}
}
