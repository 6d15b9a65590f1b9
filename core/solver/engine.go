package solver

import (
	"context"
	"math"
	"time"
)

// Status is the outcome reported by an engine.
type Status string

const (
	// StatusOptimal means the search finished and the incumbent is proven optimal.
	StatusOptimal Status = "optimal"
	// StatusFeasible means the budget ran out with an unproven incumbent.
	StatusFeasible Status = "feasible"
	// StatusInfeasible means the search finished without any feasible assignment.
	StatusInfeasible Status = "infeasible"
	// StatusTimeout means the budget ran out before any feasible assignment was found.
	StatusTimeout Status = "timeout"
)

// Budget bounds a solve. Zero values mean unlimited.
type Budget struct {
	TimeLimit time.Duration
	NodeLimit int
}

// Result is what an engine hands back to the caller.
type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	Nodes     int
	Elapsed   time.Duration
}

// HasSolution reports whether the result carries an assignment.
func (r Result) HasSolution() bool {
	return (r.Status == StatusOptimal || r.Status == StatusFeasible) && r.Values != nil
}

// Value returns the value of a variable, or 0 without a solution.
func (r Result) Value(id VarID) float64 {
	if int(id) >= len(r.Values) {
		return 0
	}
	return r.Values[id]
}

// IsOne reports whether a binary variable is set in the solution.
func (r Result) IsOne(id VarID) bool { return math.Round(r.Value(id)) == 1 }

// Engine solves a model within a budget. Implementations must always return a
// status instead of blocking past the budget or the context deadline.
type Engine interface {
	Name() string
	Solve(ctx context.Context, m *Model, b Budget) (Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, m *Model, b Budget) (Result, error)

// Name implements Engine.
func (EngineFunc) Name() string { return "func" }

// Solve implements Engine.
func (f EngineFunc) Solve(ctx context.Context, m *Model, b Budget) (Result, error) {
	return f(ctx, m, b)
}
