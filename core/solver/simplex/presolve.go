package simplex

import (
	"math"

	"github.com/kilianp07/cargoplan/core/solver"
)

// row is a constraint normalised to Σ coef·x ≤ rhs, or = rhs when eq is set.
type row struct {
	name string
	vars []solver.VarID
	coef []float64
	rhs  float64
	eq   bool
}

// normalise turns every constraint into a ≤ or = row.
func normalise(cons []solver.Constraint) []row {
	rows := make([]row, 0, len(cons))
	for _, c := range cons {
		vars := make([]solver.VarID, len(c.Terms))
		pos := make([]float64, len(c.Terms))
		neg := make([]float64, len(c.Terms))
		for i, t := range c.Terms {
			vars[i] = t.Var
			pos[i] = t.Coef
			neg[i] = -t.Coef
		}
		switch c.Sense {
		case solver.LE:
			rows = append(rows, row{name: c.Name, vars: vars, coef: pos, rhs: c.RHS})
		case solver.GE:
			rows = append(rows, row{name: c.Name, vars: vars, coef: neg, rhs: -c.RHS})
		case solver.EQ:
			rows = append(rows, row{name: c.Name, vars: vars, coef: pos, rhs: c.RHS, eq: true})
		}
	}
	return rows
}

// splitEqualities expands every = row into a pair of ≤ rows.
func splitEqualities(rows []row) []row {
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		if !r.eq {
			out = append(out, r)
			continue
		}
		neg := make([]float64, len(r.coef))
		for i, c := range r.coef {
			neg[i] = -c
		}
		le := r
		le.eq = false
		out = append(out, le, row{name: r.name, vars: r.vars, coef: neg, rhs: -r.rhs})
	}
	return out
}

// propagate tightens lo and hi in place using activity bounds of each row.
// It returns false when a row cannot be satisfied within the bounds.
func propagate(rows []row, kinds []solver.VarKind, lo, hi []float64, tol float64, passes int) bool {
	for pass := 0; pass < passes; pass++ {
		changed := false
		for _, r := range rows {
			minAct, inf := 0.0, 0
			for i, v := range r.vars {
				c := contribution(r.coef[i], lo[v], hi[v])
				if math.IsInf(c, -1) {
					inf++
					continue
				}
				minAct += c
			}
			if inf == 0 && minAct > r.rhs+tol {
				return false
			}
			if inf > 1 {
				continue
			}
			for i, v := range r.vars {
				a := r.coef[i]
				if a == 0 {
					continue
				}
				own := contribution(a, lo[v], hi[v])
				var rest float64
				switch {
				case math.IsInf(own, -1):
					rest = minAct
				case inf == 0:
					rest = minAct - own
				default:
					continue
				}
				bound := (r.rhs - rest) / a
				integral := kinds[v] != solver.Continuous
				if a > 0 {
					if integral {
						bound = math.Floor(bound + tol)
					}
					if bound < hi[v]-tol {
						hi[v] = bound
						changed = true
					}
				} else {
					if integral {
						bound = math.Ceil(bound - tol)
					}
					if bound > lo[v]+tol {
						lo[v] = bound
						changed = true
					}
				}
				if lo[v] > hi[v]+tol {
					return false
				}
				if hi[v] < lo[v] {
					hi[v] = lo[v]
				}
			}
		}
		if !changed {
			break
		}
	}
	return true
}

// contribution is the smallest value a·x can take with x in [lo,hi].
func contribution(a, lo, hi float64) float64 {
	switch {
	case a > 0:
		if math.IsInf(lo, -1) {
			return math.Inf(-1)
		}
		return a * lo
	case a < 0:
		if math.IsInf(hi, 1) {
			return math.Inf(-1)
		}
		return a * hi
	default:
		return 0
	}
}
