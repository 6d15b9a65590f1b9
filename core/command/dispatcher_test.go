package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/reopt"
)

type fakeController struct {
	calls []string
	out   reopt.Outcome
	err   error
	base  *reopt.Outcome
}

func (f *fakeController) Baseline() (reopt.Outcome, bool) {
	if f.base == nil {
		return reopt.Outcome{}, false
	}
	return *f.base, true
}

func (f *fakeController) MarkCrewUnavailable(_ context.Context, id string) (reopt.Outcome, error) {
	f.calls = append(f.calls, "crew:"+id)
	return f.out, f.err
}

func (f *fakeController) SetMaintenanceDue(_ context.Context, id string, hours float64) (reopt.Outcome, error) {
	f.calls = append(f.calls, fmt.Sprintf("maint:%s:%g", id, hours))
	return f.out, f.err
}

func (f *fakeController) CurrentSchedule(context.Context) (reopt.Outcome, error) {
	f.calls = append(f.calls, "show")
	return f.out, f.err
}

func outcome(n int) reopt.Outcome {
	s := make(model.Schedule, n)
	for i := range s {
		s[i] = model.Assignment{
			FlightID: fmt.Sprintf("F%d", i+1), TimeSlot: model.MustClock("06:00"),
			AircraftID: "A1", CrewID: "C1", CargoType: "General", Priority: 5,
		}
	}
	s[0].DelayMinutes = 30
	return reopt.Outcome{Result: model.Result{
		Schedule: s, ObjectiveValue: 59.6, Certified: true, Status: "optimal",
		Changes: model.ChangeLines([]string{"Flight F1: delayed by 30m"}),
	}}
}

func TestHandleCrewUnavailable(t *testing.T) {
	ctrl := &fakeController{out: outcome(7)}
	r := New(ctrl, nil).Handle(context.Background(), Command{Action: ActionCrewUnavailable, CrewID: "C02", Explanation: "Crew C02 is sick"})

	require.True(t, r.OK())
	assert.Equal(t, []string{"crew:C02"}, ctrl.calls)
	assert.Contains(t, r.Text, "Crew C02 is sick\n\n")
	assert.Contains(t, r.Text, "- Objective Value: 60\n")
	assert.Contains(t, r.Text, "- Status: Optimal\n")
	assert.Contains(t, r.Text, "- Flight F1: delayed by 30m\n")
	assert.Contains(t, r.Text, "- Flight F1 (General): 06:00 - Aircraft: A1, Crew: C1 (Delayed 30 min)\n")
	assert.Contains(t, r.Text, "- Flight F5 (General)")
	assert.NotContains(t, r.Text, "- Flight F6 (General)")
	assert.Contains(t, r.Text, "... and 2 more flights\n")
	require.NotNil(t, r.Result)
	assert.Len(t, r.Result.Schedule, 7)
}

func TestHandleMaintenance(t *testing.T) {
	ctrl := &fakeController{out: outcome(1)}
	d := New(ctrl, nil)
	r := d.Handle(context.Background(), MaintenanceAlert("A101", 3))
	require.True(t, r.OK())
	assert.Equal(t, []string{"maint:A101:3"}, ctrl.calls)
	assert.Contains(t, r.Text, "Setting A101 maintenance alert for 3 hours")
}

func TestHandleShowScheduleListsAll(t *testing.T) {
	ctrl := &fakeController{out: outcome(7)}
	r := New(ctrl, nil).Handle(context.Background(), ShowSchedule())
	require.True(t, r.OK())
	assert.Contains(t, r.Text, "Displaying current schedule")
	assert.Contains(t, r.Text, "- Flight F7 (General, Priority 5): 06:00")
	assert.NotContains(t, r.Text, "more flights")
}

func TestHandleMalformedAndUnknown(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		text string
		kind planerr.Kind
	}{
		{"crew without id", Command{Action: ActionCrewUnavailable}, "Error: No crew ID specified", planerr.KindUnknownCommand},
		{"maintenance without hours", Command{Action: ActionMaintenance, AircraftID: "A1"}, "Error: No aircraft ID or hours specified", planerr.KindUnknownCommand},
		{"maintenance without id", Command{Action: ActionMaintenance, Hours: new(float64)}, "Error: No aircraft ID or hours specified", planerr.KindUnknownCommand},
		{"other action", Command{Action: "add_flight"}, "Unknown action: add_flight", planerr.KindUnknownCommand},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := &fakeController{}
			r := New(ctrl, nil).Handle(context.Background(), tc.cmd)
			assert.Equal(t, tc.text, r.Text)
			assert.False(t, r.OK())
			assert.True(t, planerr.IsKind(r.Err, tc.kind))
			assert.Empty(t, ctrl.calls, "no mutation")
		})
	}
}

func TestHandleUnknownUsesExplanation(t *testing.T) {
	ctrl := &fakeController{}
	d := New(ctrl, nil)
	r := d.Handle(context.Background(), Command{Action: ActionUnknown})
	assert.Equal(t, FallbackText, r.Text)
	assert.True(t, r.OK())
	r = d.Handle(context.Background(), Command{Action: ActionUnknown, Explanation: "Please name a crew id"})
	assert.Equal(t, "Please name a crew id", r.Text)
	assert.Empty(t, ctrl.calls)
}

func TestHandleControllerErrors(t *testing.T) {
	ctrl := &fakeController{err: planerr.Infeasible("planner.extract", nil)}
	r := New(ctrl, nil).Handle(context.Background(), CrewUnavailable("C1"))
	assert.False(t, r.OK())
	assert.Contains(t, r.Text, "no schedule is available yet")
	assert.Nil(t, r.Result)

	base := outcome(2)
	ctrl = &fakeController{err: planerr.Infeasible("planner.extract", nil), base: &base}
	r = New(ctrl, nil).Handle(context.Background(), CrewUnavailable("C1"))
	assert.False(t, r.OK())
	assert.Contains(t, r.Text, "previous schedule is kept")
	require.NotNil(t, r.Result)
	assert.True(t, r.Retained)

	ctrl = &fakeController{err: planerr.UnknownEntity("store.set_crew_availability", "C9")}
	r = New(ctrl, nil).Handle(context.Background(), CrewUnavailable("C9"))
	assert.True(t, planerr.IsKind(r.Err, planerr.KindUnknownEntity))
	assert.Contains(t, r.Text, "C9")
}

func TestHandleUncertifiedResult(t *testing.T) {
	out := outcome(2)
	out.Result.Certified = false
	out.Result.Status = "feasible"
	ctrl := &fakeController{out: out, err: planerr.SolverTimeout("planner.extract", "feasible")}
	r := New(ctrl, nil).Handle(context.Background(), CrewUnavailable("C1"))
	assert.True(t, r.OK())
	assert.Contains(t, r.Text, "- Status: Feasible (not certified optimal)")
	assert.NotEmpty(t, r.Error)
}

func TestHandleTimeoutWithoutSchedule(t *testing.T) {
	timeout := planerr.SolverTimeout("simplex.solve", "no incumbent")

	ctrl := &fakeController{err: timeout}
	r := New(ctrl, nil).Handle(context.Background(), CrewUnavailable("C1"))
	assert.False(t, r.OK())
	assert.Nil(t, r.Result)
	assert.Contains(t, r.Text, "ran out of budget")
	assert.Contains(t, r.Text, "no schedule is available yet")

	base := outcome(3)
	ctrl = &fakeController{err: timeout, base: &base}
	for _, cmd := range []Command{CrewUnavailable("C1"), MaintenanceAlert("A1", 2), {Action: ActionShowSchedule}} {
		r = New(ctrl, nil).Handle(context.Background(), cmd)
		assert.False(t, r.OK(), cmd.Action)
		assert.True(t, planerr.IsKind(r.Err, planerr.KindSolverTimeout))
		assert.True(t, r.Retained)
		require.NotNil(t, r.Result)
		assert.Len(t, r.Result.Schedule, 3)
		assert.Contains(t, r.Text, "the previous schedule is kept")
		assert.Contains(t, r.Text, "- Flight F3 (General, Priority 5): 06:00")
	}
}

func TestInitialChangesRendering(t *testing.T) {
	out := outcome(1)
	out.Result.Changes = model.InitialRun()
	r := New(&fakeController{out: out}, nil).Handle(context.Background(), CrewUnavailable("C1"))
	assert.Contains(t, r.Text, "Changes Made:\n- Initial optimization\n")
}

func TestDecode(t *testing.T) {
	c, err := Decode([]byte("```json\n{\"action\": \"maintenance_alert\", \"aircraft_id\": \" A101 \", \"hours\": 3, \"explanation\": \"x\"}\n```"))
	require.NoError(t, err)
	assert.Equal(t, ActionMaintenance, c.Action)
	assert.Equal(t, "A101", c.AircraftID)
	require.NotNil(t, c.Hours)
	assert.Equal(t, 3.0, *c.Hours)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Optimal", StatusLabel(model.Result{Certified: true, Status: "optimal"}))
	assert.Equal(t, "Infeasible", StatusLabel(model.Result{Status: "infeasible"}))
	assert.Equal(t, "Unknown", StatusLabel(model.Result{}))
}
