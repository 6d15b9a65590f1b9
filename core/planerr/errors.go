// Package planerr classifies the failures surfaced by the scheduling core.
package planerr

import (
	"errors"
	"fmt"
)

// Kind is a coarse-grained category for planning errors.
type Kind string

const (
	KindDataLoad             Kind = "data_load"
	KindConfigurationMissing Kind = "configuration_missing"
	KindInfeasibleModel      Kind = "infeasible_model"
	KindSolverTimeout        Kind = "solver_timeout"
	KindUnknownCommand       Kind = "unknown_command"
	KindUnknownEntity        Kind = "unknown_entity"
)

// Sentinels matched through errors.Is.
var (
	ErrDataLoad             = errors.New("data load failed")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInfeasibleModel      = errors.New("model infeasible")
	ErrSolverTimeout        = errors.New("solver stopped before proving optimality")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrUnknownEntity        = errors.New("unknown entity")
)

var sentinels = map[Kind]error{
	KindDataLoad:             ErrDataLoad,
	KindConfigurationMissing: ErrConfigurationMissing,
	KindInfeasibleModel:      ErrInfeasibleModel,
	KindSolverTimeout:        ErrSolverTimeout,
	KindUnknownCommand:       ErrUnknownCommand,
	KindUnknownEntity:        ErrUnknownEntity,
}

// Error wraps an underlying error with operation context and a kind.
type Error struct {
	Op     string
	Kind   Kind
	Entity string // optional: file, weight name or identifier involved
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Entity != "" {
		base += fmt.Sprintf(" (%s)", e.Entity)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New builds an Error.
func New(op string, kind Kind, entity string, err error) *Error {
	return &Error{Op: op, Kind: kind, Entity: entity, Err: err}
}

// DataLoad reports a missing or malformed input table.
func DataLoad(op, file string, err error) *Error { return New(op, KindDataLoad, file, err) }

// ConfigurationMissing reports a required setting with neither a value nor a default.
func ConfigurationMissing(op, name string) *Error {
	return New(op, KindConfigurationMissing, name, nil)
}

// Infeasible reports that the engine proved no assignment exists.
func Infeasible(op string, err error) *Error { return New(op, KindInfeasibleModel, "", err) }

// SolverTimeout reports a result that is not certified optimal.
func SolverTimeout(op, status string) *Error { return New(op, KindSolverTimeout, status, nil) }

// UnknownCommand reports an action the dispatcher does not handle.
func UnknownCommand(op, action string) *Error { return New(op, KindUnknownCommand, action, nil) }

// UnknownEntity reports a mutation aimed at an identifier that does not exist.
func UnknownEntity(op, id string) *Error { return New(op, KindUnknownEntity, id, nil) }

// IsKind helps callers classify errors without depending on the producing package.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
