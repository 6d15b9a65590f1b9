package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/core/reopt"
	"github.com/kilianp07/cargoplan/core/solver/simplex"
	"github.com/kilianp07/cargoplan/core/store"
	"github.com/kilianp07/cargoplan/infra/logger"
	"github.com/kilianp07/cargoplan/infra/metrics"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

// Step actions beyond the dispatcher's own.
const (
	actionRecompute     = "recompute"
	actionCrewAvailable = "crew_available"
)

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	d, err := sc.Dataset()
	require.NoError(t, err)
	audit := &store.MemoryAuditor{}
	st, err := store.Open(context.Background(), store.NewMemoryRepository(d), audit, store.Options{StrictIDs: sc.StrictIDs, Logger: logger.NopLogger{}})
	require.NoError(t, err)

	bus := eventbus.New()
	defer bus.Close()
	var budget reopt.Config
	budget.SetDefaults()
	ctrl, err := reopt.New(st, planner.NewBuilder(planner.DefaultParams(), nil), simplex.New(simplex.Config{}), reopt.Options{
		Budget:  budget.Budget(),
		Logger:  logger.NopLogger{},
		Metrics: sink,
		Bus:     bus,
	})
	require.NoError(t, err)
	disp := command.New(ctrl, logger.NopLogger{})

	ctx := context.Background()
	for i, step := range sc.Steps {
		var (
			res   model.Result
			reply command.Reply
			err   error
		)
		switch step.Action {
		case actionRecompute:
			var out reopt.Outcome
			out, err = ctrl.Recompute(ctx)
			res = out.Payload()
		case actionCrewAvailable:
			var out reopt.Outcome
			out, err = ctrl.SetCrewAvailability(ctx, step.CrewID, true)
			res = out.Payload()
		default:
			reply = disp.Handle(ctx, command.Command{
				Action: step.Action, CrewID: step.CrewID, AircraftID: step.AircraftID, Hours: step.Hours,
			})
			if !reply.OK() {
				err = reply.Err
			}
			if reply.Result != nil {
				res = *reply.Result
			}
		}
		checkStep(t, i, step, res, reply, err)
	}
	n, err := testutil.GatherAndCount(reg, "cargoplan_runs_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1, "runs recorded")
}

func checkStep(t *testing.T, i int, step Step, res model.Result, reply command.Reply, err error) {
	t.Helper()
	exp := step.Expect
	if exp.Error != "" {
		require.Error(t, err, "step %d (%s)", i, step.Action)
		assert.True(t, planerr.IsKind(err, planerr.Kind(exp.Error)), "step %d: got %v", i, err)
	} else if err != nil {
		require.True(t, planerr.IsKind(err, planerr.KindSolverTimeout), "step %d (%s): %v", i, step.Action, err)
	}
	for _, s := range exp.ReplyContains {
		assert.Contains(t, reply.Text, s, "step %d reply", i)
	}
	if exp.Error != "" {
		return
	}
	if exp.Flights != nil {
		assert.Len(t, res.Schedule, *exp.Flights, "step %d flights", i)
	}
	if exp.Status != "" {
		assert.Equal(t, exp.Status, res.Status, "step %d status", i)
	}
	if exp.Objective != nil {
		assert.InDelta(t, *exp.Objective, res.ObjectiveValue, 1e-6, "step %d objective", i)
	}
	if exp.Initial {
		assert.True(t, res.Changes.Initial, "step %d initial", i)
	}
	for _, s := range exp.ChangesContain {
		assert.Contains(t, res.Changes.Lines, s, "step %d changes", i)
	}
	byFlight := res.Schedule.ByFlight()
	for fid, ae := range exp.Assignments {
		a, ok := byFlight[fid]
		if !assert.True(t, ok, "step %d: flight %s missing", i, fid) {
			continue
		}
		if ae.Aircraft != "" {
			assert.Equal(t, ae.Aircraft, a.AircraftID, "step %d %s aircraft", i, fid)
		}
		if ae.Crew != "" {
			assert.Equal(t, ae.Crew, a.CrewID, "step %d %s crew", i, fid)
		}
		if ae.Delay != nil {
			assert.Equal(t, *ae.Delay, a.DelayMinutes, "step %d %s delay", i, fid)
		}
		if ae.SLAMissed != nil {
			assert.Equal(t, *ae.SLAMissed, a.SLAMissed, "step %d %s sla", i, fid)
		}
	}
	for _, a := range res.Schedule {
		assert.NotContains(t, exp.AircraftUnused, a.AircraftID, "step %d flight %s", i, a.FlightID)
		assert.NotContains(t, exp.CrewUnused, a.CrewID, "step %d flight %s", i, a.FlightID)
	}
}
