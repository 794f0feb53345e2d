package lp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTol is the default numerical tolerance of the Simplex engine.
const DefaultTol = 1e-9

// Simplex is a Solver relying on gonum's simplex implementation.
// The zero value is ready to use.
type Simplex struct {
	Tol float64 // Numerical tolerance; DefaultTol if 0.
}

func (s Simplex) tol() float64 {
	if s.Tol <= 0 {
		return DefaultTol
	}
	return s.Tol
}

// Solve solves p.
// It returns ErrInfeasible if p has no solution.
func (s Simplex) Solve(p *Program) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tol := s.tol()
	n := p.NbCols()
	for j := 0; j < n; j++ {
		if p.Lower[j] > p.Upper[j]+tol {
			return nil, errors.Wrapf(ErrInfeasible, "column %d has lower bound %g above upper bound %g", j, p.Lower[j], p.Upper[j])
		}
	}
	x, err := s.primal(p)
	if err != nil {
		return nil, err
	}
	snapshot := p.clone()
	sol := &Solution{
		Value:  floats.Dot(p.Objective, x),
		Primal: x,
		duals:  func() ([]float64, error) { return s.reducedCosts(snapshot) },
	}
	return sol, nil
}

// primal solves p and returns the optimal value of its columns.
// Fixed columns are eliminated; free columns are shifted to their lower bound, so that
// the program becomes, with s = x - l and a slack t per free column:
//
//	min c.s  s.t.  A.s = b - A.l,  s + t = u - l,  s, t >= 0
func (s Simplex) primal(p *Program) ([]float64, error) {
	tol := s.tol()
	n := p.NbCols()
	x := make([]float64, n)
	copy(x, p.Lower)
	free := make([]int, n) // Position of each column among free columns, or -1
	var cols []int
	for j := 0; j < n; j++ {
		if p.Upper[j]-p.Lower[j] > tol {
			free[j] = len(cols)
			cols = append(cols, j)
		} else {
			free[j] = -1
		}
	}
	nf := len(cols)
	rows, rhs := make([][]float64, 0, len(p.Rows)), make([]float64, 0, len(p.Rows))
	for _, r := range p.Rows {
		row := make([]float64, nf)
		b := r.RHS
		for k, c := range r.Cols {
			b -= r.Coefs[k] * p.Lower[c]
			if f := free[c]; f != -1 {
				row[f] += r.Coefs[k]
			}
		}
		rows = append(rows, row)
		rhs = append(rhs, b)
	}
	rows, rhs, err := independentRows(rows, rhs, tol)
	if err != nil {
		return nil, err
	}
	if nf == 0 {
		return x, nil
	}
	m := len(rows)
	a := mat.NewDense(m+nf, 2*nf, nil)
	b := make([]float64, m+nf)
	for i, row := range rows {
		a.SetRow(i, append(row, make([]float64, nf)...))
		b[i] = rhs[i]
	}
	for k, j := range cols {
		a.Set(m+k, k, 1)
		a.Set(m+k, nf+k, 1)
		b[m+k] = p.Upper[j] - p.Lower[j]
	}
	c := make([]float64, 2*nf)
	for k, j := range cols {
		c[k] = p.Objective[j]
		if p.Sense == Maximize {
			c[k] = -c[k]
		}
	}
	var opt []float64
	if m == nf {
		opt, err = square(rows, rhs, tol)
		for k, j := range cols {
			if err == nil && opt[k] > p.Upper[j]-p.Lower[j]+tol*math.Max(1, p.Upper[j]) {
				err = ErrInfeasible
			}
		}
	} else {
		_, opt, err = simplex(c, a, b, tol)
	}
	if err != nil {
		return nil, err
	}
	for k, j := range cols {
		x[j] = math.Max(p.Lower[j], math.Min(p.Upper[j], p.Lower[j]+opt[k]))
	}
	return x, nil
}

// reducedCosts solves the dual of p. For the maximization program max c.x s.t. A.x = b, l <= x <= u,
// the dual is
//
//	min b.y + u.v - l.w  s.t.  A'.y + v - w = c,  v, w >= 0
//
// where y is free, and is split as y+ - y-. The reduced cost of each column is v - w.
func (s Simplex) reducedCosts(p *Program) ([]float64, error) {
	tol := s.tol()
	n := p.NbCols()
	if n == 0 {
		return nil, nil
	}
	var rows []Row
	for _, r := range p.Rows {
		if !emptyRow(r) {
			rows = append(rows, r)
		}
	}
	m := len(rows)
	a := mat.NewDense(n, 2*m+2*n, nil)
	cost := make([]float64, 2*m+2*n)
	for i, r := range rows {
		for k, col := range r.Cols {
			a.Set(col, i, a.At(col, i)+r.Coefs[k])
			a.Set(col, m+i, a.At(col, m+i)-r.Coefs[k])
		}
		cost[i] = r.RHS
		cost[m+i] = -r.RHS
	}
	obj := make([]float64, n)
	for j := 0; j < n; j++ {
		a.Set(j, 2*m+j, 1)
		a.Set(j, 2*m+n+j, -1)
		cost[2*m+j] = p.Upper[j]
		cost[2*m+n+j] = -p.Lower[j]
		obj[j] = p.Objective[j]
		if p.Sense == Minimize {
			obj[j] = -obj[j]
		}
	}
	_, y, err := simplex(cost, a, obj, tol)
	if err != nil {
		return nil, errors.Wrap(err, "could not solve dual program")
	}
	rc := make([]float64, n)
	for j := 0; j < n; j++ {
		rc[j] = y[2*m+j] - y[2*m+n+j]
		if p.Sense == Minimize {
			rc[j] = -rc[j]
		}
		if math.Abs(rc[j]) < tol {
			rc[j] = 0
		}
	}
	return rc, nil
}

// square solves the system rows.s = rhs when it has as many independent rows as free columns:
// the only candidate solution is then checked against s >= 0.
// The upper bounds are checked by the caller.
func square(rows [][]float64, rhs []float64, tol float64) ([]float64, error) {
	n := len(rows)
	a := mat.NewDense(n, n, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, rhs)); err != nil {
		return nil, errors.Wrap(err, "lp: could not solve square system")
	}
	res := make([]float64, n)
	for i := range res {
		v := x.AtVec(i)
		if v < -tol*math.Max(1, math.Abs(rhs[i])) {
			return nil, ErrInfeasible
		}
		res[i] = math.Max(0, v)
	}
	return res, nil
}

func emptyRow(r Row) bool {
	sum := make(map[int]float64, len(r.Cols))
	for k, c := range r.Cols {
		sum[c] += r.Coefs[k]
	}
	for _, v := range sum {
		if v != 0 {
			return false
		}
	}
	return true
}

// simplex calls gonum's simplex on min c.x s.t. a.x = b, x >= 0.
// Rows with a negative right-hand side are negated first.
func simplex(c []float64, a *mat.Dense, b []float64, tol float64) (float64, []float64, error) {
	_, n := a.Dims()
	for i := range b {
		if b[i] < 0 {
			row := a.RawRowView(i)
			floats.Scale(-1, row)
			b[i] = -b[i]
		}
	}
	opt, x, err := gonumlp.Simplex(c, a, b, tol, nil)
	switch err {
	case nil:
		if len(x) != n {
			return 0, nil, errors.Errorf("lp: engine returned %d values for %d columns", len(x), n)
		}
		return opt, x, nil
	case gonumlp.ErrInfeasible, gonumlp.ErrSingular:
		return 0, nil, ErrInfeasible
	default:
		return 0, nil, errors.Wrap(err, "lp: simplex failed")
	}
}
