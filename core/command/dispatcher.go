package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/cargoplan/core/logger"
	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/reopt"
	infralog "github.com/kilianp07/cargoplan/infra/logger"
)

// mutationPreview is how many flights a mutation reply lists.
const mutationPreview = 5

// Controller is the subset of the reoptimization controller the dispatcher drives.
type Controller interface {
	MarkCrewUnavailable(ctx context.Context, crewID string) (reopt.Outcome, error)
	SetMaintenanceDue(ctx context.Context, aircraftID string, hours float64) (reopt.Outcome, error)
	CurrentSchedule(ctx context.Context) (reopt.Outcome, error)
	Baseline() (reopt.Outcome, bool)
}

// Reply is the dispatcher's answer to one command.
type Reply struct {
	Action string        `json:"action"`
	Text   string        `json:"text"`
	Result *model.Result `json:"result,omitempty"`
	// Retained marks Result as the previous baseline kept after a failed run.
	Retained bool   `json:"retained,omitempty"`
	Error    string `json:"error,omitempty"`
	// Err keeps the typed error for in-process callers.
	Err error `json:"-"`
}

// OK reports whether the command ran without error. A new schedule that is
// not certified optimal still counts as OK; a retained one does not.
func (r Reply) OK() bool {
	if r.Err == nil {
		return true
	}
	return planerr.IsKind(r.Err, planerr.KindSolverTimeout) && r.Result != nil && !r.Retained
}

// Dispatcher maps commands to controller calls.
type Dispatcher struct {
	ctrl Controller
	log  logger.Logger
}

// New returns a Dispatcher driving ctrl.
func New(ctrl Controller, log logger.Logger) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, log: infralog.OrNop(log)}
}

// Handle executes cmd. Malformed or unknown commands never reach the controller.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) Reply {
	d.log.Debugw("command", map[string]any{"action": cmd.Action, "crew_id": cmd.CrewID, "aircraft_id": cmd.AircraftID})
	switch cmd.Action {
	case ActionCrewUnavailable:
		if cmd.CrewID == "" {
			return errorReply(cmd.Action, "Error: No crew ID specified", nil)
		}
		out, err := d.ctrl.MarkCrewUnavailable(ctx, cmd.CrewID)
		head := explanation(cmd, fmt.Sprintf("Marking crew %s as unavailable", cmd.CrewID))
		return d.mutationReply(cmd.Action, head, out, err)

	case ActionMaintenance:
		if cmd.AircraftID == "" || cmd.Hours == nil {
			return errorReply(cmd.Action, "Error: No aircraft ID or hours specified", nil)
		}
		out, err := d.ctrl.SetMaintenanceDue(ctx, cmd.AircraftID, *cmd.Hours)
		head := explanation(cmd, fmt.Sprintf("Setting %s maintenance alert for %s hours",
			cmd.AircraftID, strconv.FormatFloat(*cmd.Hours, 'f', -1, 64)))
		return d.mutationReply(cmd.Action, head, out, err)

	case ActionShowSchedule:
		out, err := d.ctrl.CurrentSchedule(ctx)
		if !reopt.Usable(out, err) {
			return d.failure(cmd.Action, err)
		}
		res := out.Payload()
		return Reply{
			Action: cmd.Action,
			Text:   FormatSchedule(explanation(cmd, "Displaying current schedule"), res),
			Result: &res,
			Err:    err,
			Error:  errString(err),
		}

	case ActionUnknown, "":
		return Reply{Action: ActionUnknown, Text: explanation(cmd, FallbackText)}

	default:
		err := planerr.UnknownCommand("command.handle", cmd.Action)
		d.log.Warnf("unknown action %q", cmd.Action)
		return errorReply(cmd.Action, "Unknown action: "+cmd.Action, err)
	}
}

func (d *Dispatcher) mutationReply(action, head string, out reopt.Outcome, err error) Reply {
	if !reopt.Usable(out, err) {
		return d.failure(action, err)
	}
	res := out.Payload()
	return Reply{
		Action: action,
		Text:   FormatMutation(head, res),
		Result: &res,
		Err:    err,
		Error:  errString(err),
	}
}

// failure answers a command whose run produced no usable schedule. The
// baseline, when one exists, is returned as the schedule still in force.
func (d *Dispatcher) failure(action string, err error) Reply {
	d.log.Errorf("%s failed: %v", action, err)
	base, kept := d.ctrl.Baseline()
	var text string
	switch {
	case planerr.IsKind(err, planerr.KindInfeasibleModel):
		text = "Error: no feasible schedule satisfies the constraints"
	case planerr.IsKind(err, planerr.KindSolverTimeout):
		text = "Error: the solver ran out of budget before finding a schedule"
	default:
		text = "Error: " + err.Error()
	}
	if !kept {
		if !planerr.IsKind(err, planerr.KindUnknownEntity) {
			text += "; no schedule is available yet"
		}
		return errorReply(action, text, err)
	}
	res := base.Payload()
	r := errorReply(action, FormatSchedule(text+"; the previous schedule is kept", res), err)
	r.Result, r.Retained = &res, true
	return r
}

func errorReply(action, text string, err error) Reply {
	if err == nil {
		err = planerr.New("command.handle", planerr.KindUnknownCommand, action, fmt.Errorf("%s", text))
	}
	return Reply{Action: action, Text: text, Error: err.Error(), Err: err}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func explanation(cmd Command, fallback string) string {
	if s := strings.TrimSpace(cmd.Explanation); s != "" {
		return s
	}
	return fallback
}
