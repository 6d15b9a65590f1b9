package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/cargoplan/core/solver"
)

// Name is the registry key of this engine.
const Name = "branch_bound"

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// Tolerance is the reduced-cost threshold of the simplex.
	Tolerance float64 `json:"tolerance"`
	// IntTolerance is the distance to an integer accepted as integral.
	IntTolerance float64 `json:"int_tolerance"`
	// PropagationPasses bounds the bound-tightening sweeps per node.
	PropagationPasses int `json:"propagation_passes"`
	// NodeLimit applies when the caller budget carries none.
	NodeLimit int `json:"node_limit"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	if c.IntTolerance <= 0 {
		c.IntTolerance = 1e-6
	}
	if c.PropagationPasses <= 0 {
		c.PropagationPasses = 20
	}
}

// lpSolve points to the LP routine. It can be overridden in tests to simulate
// numeric failures.
var lpSolve = solveRelaxation

var errNodeInfeasible = errors.New("node infeasible")

// Engine is a budgeted branch and bound over LP relaxations.
type Engine struct {
	cfg Config
	now func() time.Time
}

// New returns an engine using cfg.
func New(cfg Config) *Engine {
	cfg.SetDefaults()
	return &Engine{cfg: cfg, now: time.Now}
}

// Name implements solver.Engine.
func (e *Engine) Name() string { return Name }

type node struct {
	lo, hi []float64
}

type search struct {
	cfg       Config
	m         *solver.Model
	rows      []row
	split     []row
	kinds     []solver.VarKind
	costs     []float64
	best      []float64
	bestObj   float64
	nodes     int
	unproven  int
	lastLPErr error
	expired   func() bool
	halted    bool
}

// Solve implements solver.Engine. It always returns a status once the budget,
// the context deadline or the search itself is exhausted.
func (e *Engine) Solve(ctx context.Context, m *solver.Model, b solver.Budget) (solver.Result, error) {
	start := e.now()
	if m == nil {
		return solver.Result{}, errors.New("simplex: nil model")
	}
	vars := m.Vars()
	s := &search{
		cfg:     e.cfg,
		m:       m,
		rows:    normalise(m.Constraints()),
		kinds:   make([]solver.VarKind, len(vars)),
		costs:   m.Costs(),
		bestObj: math.Inf(1),
	}
	s.split = splitEqualities(s.rows)
	root := node{lo: make([]float64, len(vars)), hi: make([]float64, len(vars))}
	for i, v := range vars {
		if math.IsInf(v.Lower, -1) {
			return solver.Result{}, fmt.Errorf("simplex: variable %s has no lower bound", v.Name)
		}
		s.kinds[i] = v.Kind
		root.lo[i], root.hi[i] = v.Lower, v.Upper
	}

	nodeLimit := b.NodeLimit
	if nodeLimit <= 0 {
		nodeLimit = e.cfg.NodeLimit
	}
	var deadline time.Time
	if b.TimeLimit > 0 {
		deadline = start.Add(b.TimeLimit)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	s.expired = func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && !e.now().Before(deadline))
	}

	stack := []node{root}
	exhausted := false
	for len(stack) > 0 {
		if s.halted || s.expired() || (nodeLimit > 0 && s.nodes >= nodeLimit) {
			exhausted = true
			break
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.nodes++
		stack = append(stack, s.expand(n)...)
	}
	if s.halted {
		exhausted = true
	}

	res := solver.Result{Nodes: s.nodes, Elapsed: e.now().Sub(start)}
	switch {
	case s.best != nil && !exhausted && s.unproven == 0:
		res.Status = solver.StatusOptimal
	case s.best != nil:
		res.Status = solver.StatusFeasible
	case exhausted:
		res.Status = solver.StatusTimeout
	case s.unproven > 0:
		return res, fmt.Errorf("simplex: search inconclusive after %d nodes: %w", s.nodes, s.lastLPErr)
	default:
		res.Status = solver.StatusInfeasible
	}
	if s.best != nil {
		res.Values = s.best
		res.Objective = s.bestObj
	}
	return res, nil
}

// expand processes one node and returns its children in push order.
func (s *search) expand(n node) []node {
	lo := append([]float64(nil), n.lo...)
	hi := append([]float64(nil), n.hi...)
	if !propagate(s.split, s.kinds, lo, hi, s.cfg.IntTolerance, s.cfg.PropagationPasses) {
		return nil
	}
	x, obj, err := s.relax(lo, hi)
	switch {
	case errors.Is(err, errNodeInfeasible):
		return nil
	case errors.Is(err, errBudget):
		s.halted = true
		return nil
	case err != nil:
		// Without a bound the node is branched blindly.
		s.lastLPErr = err
		j := s.firstOpen(lo, hi)
		if j < 0 {
			s.unproven++
			return nil
		}
		return s.branch(lo, hi, j, lo[j])
	}
	if obj >= s.bestObj-s.cfg.IntTolerance {
		return nil
	}
	j, v := s.mostFractional(x)
	if j >= 0 {
		return s.branch(lo, hi, j, v)
	}
	x, err = s.polish(lo, hi, x)
	if errors.Is(err, errBudget) {
		// Out of time: keep the rounded point if it already holds.
		s.halted = true
		if s.m.Check(x, 1e-5) == nil {
			s.offer(x)
		}
		return nil
	}
	if err == nil {
		err = s.m.Check(x, 1e-5)
	}
	if err != nil {
		s.lastLPErr = err
		if j := s.firstOpen(lo, hi); j >= 0 {
			return s.branch(lo, hi, j, lo[j])
		}
		s.unproven++
		return nil
	}
	s.offer(x)
	return nil
}

// offer records x as the incumbent when it improves on the best objective.
func (s *search) offer(x []float64) {
	if z := s.m.Objective(x); z < s.bestObj {
		s.best, s.bestObj = x, z
	}
}

// polish fixes the integral variables at their rounded values and re-solves
// the continuous part so that rounding noise does not leak into the result.
// On errBudget it returns the rounded point.
func (s *search) polish(lo, hi, x []float64) ([]float64, error) {
	flo := append([]float64(nil), lo...)
	fhi := append([]float64(nil), hi...)
	rounded := append([]float64(nil), x...)
	for i, k := range s.kinds {
		if k != solver.Continuous {
			flo[i] = math.Round(x[i])
			fhi[i] = flo[i]
			rounded[i] = flo[i]
		}
	}
	out, _, err := s.relax(flo, fhi)
	if errors.Is(err, errBudget) {
		return rounded, err
	}
	return out, err
}

// branch splits on variable j around value v. The up branch is pushed last so
// it is explored first.
func (s *search) branch(lo, hi []float64, j int, v float64) []node {
	down := node{lo: lo, hi: append([]float64(nil), hi...)}
	down.hi[j] = math.Floor(v)
	up := node{lo: append([]float64(nil), lo...), hi: hi}
	up.lo[j] = math.Floor(v) + 1
	return []node{down, up}
}

func (s *search) mostFractional(x []float64) (int, float64) {
	best, bestVal, bestFrac := -1, 0.0, 0.0
	for i, k := range s.kinds {
		if k == solver.Continuous {
			continue
		}
		f := x[i] - math.Floor(x[i])
		if f <= s.cfg.IntTolerance || f >= 1-s.cfg.IntTolerance {
			continue
		}
		// Prefer variables leaning towards their upper value.
		if best < 0 || f > bestFrac {
			best, bestVal, bestFrac = i, x[i], f
		}
	}
	return best, bestVal
}

func (s *search) firstOpen(lo, hi []float64) int {
	for i, k := range s.kinds {
		if k != solver.Continuous && hi[i]-lo[i] >= 1-s.cfg.IntTolerance {
			return i
		}
	}
	return -1
}

// relax solves the LP relaxation of the node. Variables are shifted by their
// lower bound and fixed variables are substituted out.
func (s *search) relax(lo, hi []float64) ([]float64, float64, error) {
	tol := s.cfg.IntTolerance
	open := func(v solver.VarID) bool { return hi[v]-lo[v] > tol }
	col := make([]int, len(lo))
	for i := range col {
		col[i] = -1
	}
	var p relaxation
	var cols []int
	index := func(v solver.VarID) int {
		if col[v] < 0 {
			col[v] = len(cols)
			cols = append(cols, int(v))
			p.cost = append(p.cost, s.costs[v])
			p.upper = append(p.upper, hi[v]-lo[v])
		}
		return col[v]
	}
	for _, r := range s.rows {
		lr := lpRow{rhs: r.rhs, eq: r.eq}
		for i, v := range r.vars {
			a := r.coef[i]
			if a == 0 {
				continue
			}
			lr.rhs -= a * lo[v]
			if open(v) {
				lr.cols = append(lr.cols, index(v))
				lr.coef = append(lr.coef, a)
			}
		}
		if len(lr.cols) == 0 {
			if lr.rhs < -tol || (lr.eq && lr.rhs > tol) {
				return nil, 0, errNodeInfeasible
			}
			continue
		}
		p.rows = append(p.rows, lr)
	}

	x := append([]float64(nil), lo...)
	for v := range lo {
		if !open(solver.VarID(v)) || col[v] >= 0 || s.costs[v] >= 0 {
			continue
		}
		// Columns outside every row move to their cheaper bound.
		if math.IsInf(hi[v], 1) {
			return nil, 0, errUnbounded
		}
		x[v] = hi[v]
	}
	if len(p.rows) > 0 {
		y, err := lpSolve(p, s.cfg.Tolerance, s.expired)
		if err != nil {
			return nil, 0, err
		}
		for k, v := range cols {
			x[v] = lo[v] + y[k]
		}
	}
	return x, s.m.Objective(x), nil
}
