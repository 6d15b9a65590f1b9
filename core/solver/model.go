package solver

import (
	"fmt"
	"math"
)

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "continuous"
	}
}

// VarID indexes a variable inside its model.
type VarID int

// Var describes one decision variable.
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Integral reports whether the variable must take an integer value.
func (v Var) Integral() bool { return v.Kind != Continuous }

// Term is a coefficient applied to a variable.
type Term struct {
	Var  VarID
	Coef float64
}

// T is shorthand for building a Term.
func T(v VarID, coef float64) Term { return Term{Var: v, Coef: coef} }

// Sense is the relation between a constraint's left side and its right-hand side.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return "<="
	}
}

// Constraint is a linear relation Σ terms <sense> RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Eval returns the left-hand side for the given assignment.
func (c Constraint) Eval(values []float64) float64 {
	var lhs float64
	for _, t := range c.Terms {
		lhs += t.Coef * values[t.Var]
	}
	return lhs
}

// Satisfied reports whether the assignment meets the constraint within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Eval(values)
	switch c.Sense {
	case GE:
		return lhs >= c.RHS-tol
	case EQ:
		return math.Abs(lhs-c.RHS) <= tol
	default:
		return lhs <= c.RHS+tol
	}
}

// Model is a minimization problem. It is built once per run and read-only afterwards.
type Model struct {
	vars  []Var
	cons  []Constraint
	obj   []float64
	index map[string]VarID
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{index: make(map[string]VarID)}
}

// AddVar registers a variable. Binary variables are clamped to [0,1].
// It panics on a duplicate name since that is a builder bug.
func (m *Model) AddVar(name string, kind VarKind, lower, upper float64) VarID {
	if _, dup := m.index[name]; dup {
		panic(fmt.Sprintf("solver: duplicate variable %q", name))
	}
	if kind == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	id := VarID(len(m.vars))
	m.vars = append(m.vars, Var{Name: name, Kind: kind, Lower: lower, Upper: upper})
	m.obj = append(m.obj, 0)
	m.index[name] = id
	return id
}

// AddBinary registers a 0/1 variable.
func (m *Model) AddBinary(name string) VarID { return m.AddVar(name, Binary, 0, 1) }

// AddContinuous registers a continuous variable with the given lower bound and no upper bound.
func (m *Model) AddContinuous(name string, lower float64) VarID {
	return m.AddVar(name, Continuous, lower, math.Inf(1))
}

// SetUpper tightens the upper bound of a variable.
func (m *Model) SetUpper(id VarID, upper float64) {
	if upper < m.vars[id].Upper {
		m.vars[id].Upper = upper
	}
}

// AddConstraint appends a linear constraint. Terms on the same variable are merged.
func (m *Model) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) {
	merged := make([]Term, 0, len(terms))
	pos := make(map[VarID]int, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(merged)
		merged = append(merged, t)
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: merged, Sense: sense, RHS: rhs})
}

// AddObjective adds coef to the objective coefficient of a variable.
func (m *Model) AddObjective(id VarID, coef float64) { m.obj[id] += coef }

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// Var returns the variable descriptor.
func (m *Model) Var(id VarID) Var { return m.vars[id] }

// Vars returns a copy of every variable descriptor.
func (m *Model) Vars() []Var { return append([]Var(nil), m.vars...) }

// Constraints returns the model constraints. Callers must not modify them.
func (m *Model) Constraints() []Constraint { return m.cons }

// Lookup finds a variable by name.
func (m *Model) Lookup(name string) (VarID, bool) {
	id, ok := m.index[name]
	return id, ok
}

// Costs returns a copy of the objective vector.
func (m *Model) Costs() []float64 { return append([]float64(nil), m.obj...) }

// Objective evaluates the objective for a full assignment.
func (m *Model) Objective(values []float64) float64 {
	var z float64
	for i, c := range m.obj {
		z += c * values[i]
	}
	return z
}

// Check verifies bounds, integrality and every constraint for a full assignment.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("assignment has %d values for %d variables", len(values), len(m.vars))
	}
	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s=%g outside [%g,%g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.Integral() && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s=%g not integral", v.Name, x)
		}
	}
	for _, c := range m.cons {
		if !c.Satisfied(values, tol) {
			return fmt.Errorf("constraint %s violated: %g %s %g", c.Name, c.Eval(values), c.Sense, c.RHS)
		}
	}
	return nil
}
