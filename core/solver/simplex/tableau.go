package simplex

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	pivotTol  = 1e-9
	primalTol = 1e-9
	// blandAfter is the run of degenerate pivots after which the entering
	// and leaving choices switch to the smallest index.
	blandAfter = 50
	// checkEvery is the number of pivots between two budget checks.
	checkEvery = 16
)

var (
	errUnbounded  = errors.New("simplex: relaxation unbounded")
	errIterations = errors.New("simplex: iteration limit reached")
	errBudget     = errors.New("simplex: budget exhausted")
)

// relaxation is an LP in shifted variables 0 ≤ x ≤ upper minimising cost·x.
type relaxation struct {
	rows  []lpRow
	cost  []float64
	upper []float64
}

// lpRow is Σ coef·x ≤ rhs, or = rhs when eq is set.
type lpRow struct {
	cols []int
	coef []float64
	rhs  float64
	eq   bool
}

// tableau is a dense bounded-variable primal simplex. Columns are laid out as
// structural, then one slack per inequality, then one artificial per row that
// starts infeasible. Nonbasic columns sit at 0 or at their upper bound.
type tableau struct {
	t        *mat.Dense
	d        []float64 // reduced costs
	xb       []float64 // values of the basic columns, by row
	basis    []int     // row → column
	basic    []int     // column → row, -1 when nonbasic
	atUpper  []bool
	upper    []float64
	nStruct  int
	firstArt int
	feasTol  float64
	tol      float64
	stop     func() bool
	iter     int
	maxIter  int
}

// solveRelaxation returns optimal values of the structural columns of p. It
// returns errNodeInfeasible when p has no solution and errBudget as soon as
// stop reports true.
func solveRelaxation(p relaxation, tol float64, stop func() bool) ([]float64, error) {
	if len(p.rows) == 0 {
		x := make([]float64, len(p.cost))
		for j, c := range p.cost {
			if c < 0 {
				if math.IsInf(p.upper[j], 1) {
					return nil, errUnbounded
				}
				x[j] = p.upper[j]
			}
		}
		return x, nil
	}
	tb := newTableau(p, tol, stop)
	_, n := tb.t.Dims()
	if tb.firstArt < n {
		c := make([]float64, n)
		for j := tb.firstArt; j < n; j++ {
			c[j] = 1
		}
		if err := tb.optimise(c, n); err != nil {
			return nil, err
		}
		infeas := 0.0
		for i, j := range tb.basis {
			if j >= tb.firstArt {
				infeas += tb.xb[i]
			}
		}
		if infeas > tb.feasTol {
			return nil, errNodeInfeasible
		}
		for j := tb.firstArt; j < n; j++ {
			tb.upper[j] = 0
		}
	}
	c := make([]float64, n)
	copy(c, p.cost)
	if err := tb.optimise(c, tb.firstArt); err != nil {
		return nil, err
	}
	return tb.values(), nil
}

func newTableau(p relaxation, tol float64, stop func() bool) *tableau {
	m, ns := len(p.rows), len(p.cost)
	slacks, arts := 0, 0
	maxRHS := 0.0
	for _, r := range p.rows {
		if !r.eq {
			slacks++
		}
		if r.eq || r.rhs < 0 {
			arts++
		}
		maxRHS = math.Max(maxRHS, math.Abs(r.rhs))
	}
	n := ns + slacks + arts
	tb := &tableau{
		t:        mat.NewDense(m, n, nil),
		d:        make([]float64, n),
		xb:       make([]float64, m),
		basis:    make([]int, m),
		basic:    make([]int, n),
		atUpper:  make([]bool, n),
		upper:    make([]float64, n),
		nStruct:  ns,
		firstArt: ns + slacks,
		feasTol:  1e-7 * (1 + maxRHS),
		tol:      tol,
		stop:     stop,
		maxIter:  50 * (m + n),
	}
	copy(tb.upper, p.upper)
	for j := ns; j < n; j++ {
		tb.upper[j] = math.Inf(1)
	}
	for j := range tb.basic {
		tb.basic[j] = -1
	}
	slack, art := ns, tb.firstArt
	for i, r := range p.rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		row := tb.t.RawRowView(i)
		for k, j := range r.cols {
			row[j] += sign * r.coef[k]
		}
		tb.xb[i] = sign * r.rhs
		if !r.eq {
			row[slack] = sign
			tb.basis[i] = slack
			slack++
		}
		if r.eq || r.rhs < 0 {
			row[art] = 1
			tb.basis[i] = art
			art++
		}
		tb.basic[tb.basis[i]] = i
	}
	return tb
}

// optimise runs primal simplex iterations for cost c, letting only columns
// below limit enter the basis.
func (tb *tableau) optimise(c []float64, limit int) error {
	tb.price(c)
	degenerate := 0
	for {
		if tb.iter%checkEvery == 0 && tb.stop != nil && tb.stop() {
			return errBudget
		}
		if tb.iter >= tb.maxIter {
			return errIterations
		}
		bland := degenerate >= blandAfter
		q := tb.entering(limit, bland)
		if q < 0 {
			return nil
		}
		dir := 1.0
		if tb.atUpper[q] {
			dir = -1
		}
		r, step := tb.ratio(q, dir, bland)
		if math.IsInf(step, 1) {
			return errUnbounded
		}
		tb.iter++
		if step <= primalTol {
			degenerate++
		} else {
			degenerate = 0
		}
		tb.move(q, dir, r, step)
	}
}

// price sets the reduced costs of c for the current basis.
func (tb *tableau) price(c []float64) {
	copy(tb.d, c)
	for i, j := range tb.basis {
		if cb := c[j]; cb != 0 {
			floats.AddScaled(tb.d, -cb, tb.t.RawRowView(i))
		}
	}
}

// entering picks an improving nonbasic column, the steepest one unless bland
// is set.
func (tb *tableau) entering(limit int, bland bool) int {
	best, score := -1, tb.tol
	for j := 0; j < limit; j++ {
		if tb.basic[j] >= 0 {
			continue
		}
		v := -tb.d[j]
		if tb.atUpper[j] {
			v = tb.d[j]
		} else if tb.upper[j] <= 0 {
			continue
		}
		if v <= score {
			continue
		}
		if bland {
			return j
		}
		best, score = j, v
	}
	return best
}

// ratio returns the row blocking column q moving in direction dir and the
// step length. The row is -1 when q reaches its opposite bound first.
func (tb *tableau) ratio(q int, dir float64, bland bool) (int, float64) {
	r, step, pivot := -1, tb.upper[q], 0.0
	for i, j := range tb.basis {
		alpha := dir * tb.t.At(i, q)
		var lim float64
		switch {
		case alpha > pivotTol:
			lim = math.Max(tb.xb[i], 0) / alpha
		case alpha < -pivotTol && !math.IsInf(tb.upper[j], 1):
			lim = math.Max(tb.upper[j]-tb.xb[i], 0) / -alpha
		default:
			continue
		}
		a := math.Abs(alpha)
		switch {
		case lim < step-primalTol:
		case lim <= step+primalTol && r >= 0 && (bland && j < tb.basis[r] || !bland && a > pivot):
		default:
			continue
		}
		r, step, pivot = i, lim, a
	}
	return r, step
}

// move advances column q by step and, when a row blocks, exchanges q with
// that row's basic column.
func (tb *tableau) move(q int, dir float64, r int, step float64) {
	if step != 0 {
		for i := range tb.xb {
			tb.xb[i] -= dir * step * tb.t.At(i, q)
		}
	}
	if r < 0 {
		tb.atUpper[q] = !tb.atUpper[q]
		return
	}
	enter := step
	if tb.atUpper[q] {
		enter = tb.upper[q] - step
	}
	leave := tb.basis[r]
	tb.atUpper[leave] = dir*tb.t.At(r, q) < 0
	tb.basic[leave] = -1
	tb.pivot(r, q)
	tb.atUpper[q] = false
	tb.basis[r], tb.basic[q] = q, r
	tb.xb[r] = enter
}

func (tb *tableau) pivot(r, q int) {
	m, _ := tb.t.Dims()
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i < m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, pr)
			row[q] = 0
		}
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[q] = 0
	}
}

// values reads the structural columns, clamped to their bounds.
func (tb *tableau) values() []float64 {
	x := make([]float64, tb.nStruct)
	for j := range x {
		switch {
		case tb.basic[j] >= 0:
			x[j] = tb.xb[tb.basic[j]]
		case tb.atUpper[j]:
			x[j] = tb.upper[j]
		}
		x[j] = math.Min(math.Max(x[j], 0), tb.upper[j])
	}
	return x
}
