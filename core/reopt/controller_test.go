package reopt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cargoplan/core/diff"
	"github.com/kilianp07/cargoplan/core/events"
	"github.com/kilianp07/cargoplan/core/history"
	"github.com/kilianp07/cargoplan/core/metrics"
	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/core/solver"
	"github.com/kilianp07/cargoplan/core/solver/simplex"
	"github.com/kilianp07/cargoplan/core/store"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

type memHistory struct {
	mu   sync.Mutex
	recs []history.Record
}

func (h *memHistory) Append(_ context.Context, r history.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, r)
	return nil
}

func (h *memHistory) Query(context.Context, history.Query) ([]history.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Record(nil), h.recs...), nil
}

func (h *memHistory) Close() error { return nil }

type countSink struct {
	mu   sync.Mutex
	runs []metrics.RunReport
}

func (s *countSink) RecordRun(r metrics.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func dataset(t *testing.T, slots ...string) model.Dataset {
	t.Helper()
	f1, err := model.NewFlight("F1", "MEM", "ORD", "General", 10, model.MustClock("06:00"), model.MustClock("09:00"), 60)
	require.NoError(t, err)
	f2, err := model.NewFlight("F2", "MEM", "ORD", "General", 5, model.MustClock("06:00"), model.MustClock("09:00"), 60)
	require.NoError(t, err)
	if len(slots) == 0 {
		slots = []string{"06:00", "06:30", "07:00", "07:30"}
	}
	d := model.Dataset{
		Flights: []model.Flight{f1, f2},
		Aircraft: []model.Aircraft{
			{ID: "A1", Type: "B767", MaintenanceDue: 50},
			{ID: "A2", Type: "B767", MaintenanceDue: 50},
		},
		Crew: []model.Crew{
			{ID: "C1", MaxDutyHours: 10, OnDuty: true},
			{ID: "C2", MaxDutyHours: 10, OnDuty: true},
		},
		Certification: model.CertificationMatrix{},
		Gateways:      model.GatewayMatrix{},
		Specs:         map[string]model.AircraftSpec{},
	}
	for _, s := range slots {
		d.Slots = append(d.Slots, model.MustClock(s))
	}
	for _, a := range []string{"A1", "A2"} {
		for _, c := range []string{"C1", "C2"} {
			d.Certification.Set(a, c, true)
		}
		d.Gateways.Set(a, "MEM", true)
		d.Gateways.Set(a, "ORD", true)
	}
	return d
}

type harness struct {
	ctrl  *Controller
	sink  *countSink
	hist  *memHistory
	audit *store.MemoryAuditor
	bus   *eventbus.Bus
	reg   *prometheus.Registry
}

func newHarness(t *testing.T, d model.Dataset, strict bool, eng solver.Engine) harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	t.Cleanup(func() { ResetMetrics(prometheus.NewRegistry()) })

	audit := &store.MemoryAuditor{}
	st, err := store.Open(context.Background(), store.NewMemoryRepository(d), audit, store.Options{StrictIDs: strict})
	require.NoError(t, err)
	if eng == nil {
		eng = simplex.New(simplex.Config{})
	}
	h := harness{sink: &countSink{}, hist: &memHistory{}, audit: audit, bus: eventbus.New(), reg: reg}
	t.Cleanup(h.bus.Close)
	n := 0
	h.ctrl, err = New(st, planner.NewBuilder(planner.DefaultParams(), nil), eng, Options{
		Metrics: h.sink,
		History: h.hist,
		Bus:     h.bus,
		NewID: func() string {
			n++
			return "run-" + string(rune('0'+n))
		},
	})
	require.NoError(t, err)
	return h
}

func assertValid(t *testing.T, s model.Schedule, flights int) {
	t.Helper()
	require.Len(t, s, flights)
	seen := map[string]bool{}
	for _, a := range s {
		assert.False(t, seen[a.FlightID], "flight %s listed twice", a.FlightID)
		seen[a.FlightID] = true
		assert.GreaterOrEqual(t, a.DelayMinutes, 0)
		assert.NotEmpty(t, a.AircraftID)
		assert.NotEmpty(t, a.CrewID)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestRecomputeInitialThenIdempotent(t *testing.T) {
	h := newHarness(t, dataset(t), false, nil)
	ctx := context.Background()

	first, err := h.ctrl.Recompute(ctx)
	require.NoError(t, err)
	assert.True(t, first.Result.Changes.Initial)
	assert.True(t, first.Result.Certified)
	assert.Equal(t, "optimal", first.Result.Status)
	assertValid(t, first.Result.Schedule, 2)

	second, err := h.ctrl.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Result.Schedule, second.Result.Schedule)
	assert.Equal(t, []string{diff.NoChanges}, second.Result.Changes.Lines)

	prev, ok := h.ctrl.Previous()
	require.True(t, ok)
	assert.Equal(t, first.RunID, prev.RunID)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Len(t, h.hist.recs, 2)
	assert.Len(t, h.sink.runs, 2)
	assert.True(t, h.sink.runs[0].Accepted)
}

func TestMarkCrewUnavailable(t *testing.T) {
	h := newHarness(t, dataset(t), false, nil)
	ctx := context.Background()
	_, err := h.ctrl.Recompute(ctx)
	require.NoError(t, err)

	out, err := h.ctrl.MarkCrewUnavailable(ctx, "C1")
	require.NoError(t, err)
	for _, a := range out.Result.Schedule {
		assert.NotEqual(t, "C1", a.CrewID)
	}
	require.NotNil(t, out.Mutation)
	assert.True(t, out.Mutation.Applied)
	assert.Equal(t, TriggerCrew, out.Trigger)
	assert.False(t, out.Result.Changes.Initial)
	assert.Equal(t, []string{"Crew C1 availability changed to false"}, h.audit.Lines())

	restored, err := h.ctrl.SetCrewAvailability(ctx, "C1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Utilization.CrewAvailable)
}

func TestMaintenanceGroundsAircraft(t *testing.T) {
	h := newHarness(t, dataset(t), false, nil)
	ctx := context.Background()
	_, err := h.ctrl.Recompute(ctx)
	require.NoError(t, err)

	out, err := h.ctrl.SetMaintenanceDue(ctx, "A2", 0)
	require.NoError(t, err)
	s := out.Result.Schedule.ByFlight()
	assert.Equal(t, "A1", s["F1"].AircraftID)
	assert.Equal(t, "A1", s["F2"].AircraftID)
	assert.Equal(t, 60, s["F2"].DelayMinutes)
	assert.Contains(t, out.Result.Changes.Lines, "Flight F2: delayed by 60m")
	assert.InDelta(t, 60, out.Result.ObjectiveValue, 1e-6)
}

func TestInfeasibleKeepsBaseline(t *testing.T) {
	h := newHarness(t, dataset(t, "06:00"), false, nil)
	ctx := context.Background()
	first, err := h.ctrl.Recompute(ctx)
	require.NoError(t, err)

	_, err = h.ctrl.SetMaintenanceDue(ctx, "A2", 0)
	require.Error(t, err)
	assert.True(t, planerr.IsKind(err, planerr.KindInfeasibleModel))

	base, ok := h.ctrl.Baseline()
	require.True(t, ok)
	assert.Equal(t, first.RunID, base.RunID)
	assert.Equal(t, 1.0, testutil.ToFloat64(runFailures.WithLabelValues(string(planerr.KindInfeasibleModel))))
	assert.Len(t, h.hist.recs, 1)
	require.Len(t, h.sink.runs, 2)
	assert.False(t, h.sink.runs[1].Accepted)
	assert.Equal(t, "infeasible", h.sink.runs[1].Status)
}

func TestUnknownEntityPolicies(t *testing.T) {
	ctx := context.Background()

	strict := newHarness(t, dataset(t), true, nil)
	_, err := strict.ctrl.MarkCrewUnavailable(ctx, "C9")
	assert.True(t, planerr.IsKind(err, planerr.KindUnknownEntity))
	assert.Empty(t, strict.sink.runs, "strict ids reject before any run")
	assert.Empty(t, strict.audit.Lines())

	lax := newHarness(t, dataset(t), false, nil)
	out, err := lax.ctrl.SetMaintenanceDue(ctx, "A9", 0)
	require.NoError(t, err)
	require.NotNil(t, out.Mutation)
	assert.False(t, out.Mutation.Applied)
	assert.True(t, out.Result.Changes.Initial)
	assert.Len(t, lax.sink.runs, 1)
}

func TestUnprovenResultIsAcceptedUncertified(t *testing.T) {
	inner := simplex.New(simplex.Config{})
	eng := solver.EngineFunc(func(ctx context.Context, m *solver.Model, b solver.Budget) (solver.Result, error) {
		res, err := inner.Solve(ctx, m, b)
		res.Status = solver.StatusFeasible
		return res, err
	})
	h := newHarness(t, dataset(t), false, eng)

	out, err := h.ctrl.Recompute(context.Background())
	require.Error(t, err)
	assert.True(t, planerr.IsKind(err, planerr.KindSolverTimeout))
	assert.False(t, out.Result.Certified)
	assert.Equal(t, "feasible", out.Result.Status)
	assertValid(t, out.Result.Schedule, 2)

	base, ok := h.ctrl.Baseline()
	require.True(t, ok)
	assert.Equal(t, out.RunID, base.RunID)
	assert.False(t, h.hist.recs[0].Certified)
}

func TestTimeoutWithoutSolutionFails(t *testing.T) {
	eng := solver.EngineFunc(func(context.Context, *solver.Model, solver.Budget) (solver.Result, error) {
		return solver.Result{Status: solver.StatusTimeout, Nodes: 7}, nil
	})
	h := newHarness(t, dataset(t), false, eng)
	_, err := h.ctrl.Recompute(context.Background())
	assert.True(t, planerr.IsKind(err, planerr.KindSolverTimeout))
	_, ok := h.ctrl.Baseline()
	assert.False(t, ok)
}

func TestCurrentScheduleRunsOnce(t *testing.T) {
	inner := simplex.New(simplex.Config{})
	calls := 0
	var during State
	var h harness
	eng := solver.EngineFunc(func(ctx context.Context, m *solver.Model, b solver.Budget) (solver.Result, error) {
		calls++
		during = h.ctrl.State()
		return inner.Solve(ctx, m, b)
	})
	h = newHarness(t, dataset(t), false, eng)

	a, err := h.ctrl.CurrentSchedule(context.Background())
	require.NoError(t, err)
	b, err := h.ctrl.CurrentSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, TriggerShow, a.Trigger)
	assert.Equal(t, Optimizing, during)
	assert.Equal(t, Idle, h.ctrl.State())
}

func TestEventsPublished(t *testing.T) {
	h := newHarness(t, dataset(t), false, nil)
	sub := h.bus.Subscribe()

	_, err := h.ctrl.MarkCrewUnavailable(context.Background(), "C2")
	require.NoError(t, err)

	var got []any
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-sub:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("expected two events, got %d", len(got))
		}
	}
	mut, ok := got[0].(events.MutationEvent)
	require.True(t, ok)
	assert.Equal(t, events.EntityCrew, mut.Entity)
	assert.Equal(t, "C2", mut.ID)
	run, ok := got[1].(events.RunEvent)
	require.True(t, ok)
	assert.True(t, run.Accepted)
	assert.Equal(t, []string{model.InitialChanges}, run.Changes)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, solver.Budget{TimeLimit: DefaultTimeLimit, NodeLimit: DefaultNodeLimit}, c.Budget())
	assert.Error(t, Config{NodeLimit: -1}.Validate())
	assert.Equal(t, "optimizing", Optimizing.String())
}

func TestUsable(t *testing.T) {
	timeout := planerr.SolverTimeout("simplex.solve", "budget")
	withSchedule := Outcome{Result: model.Result{Schedule: model.Schedule{}}}

	assert.True(t, Usable(Outcome{}, nil))
	assert.True(t, Usable(withSchedule, timeout))
	assert.False(t, Usable(Outcome{}, timeout))
	assert.False(t, Usable(withSchedule, planerr.Infeasible("planner.extract", nil)))
}
