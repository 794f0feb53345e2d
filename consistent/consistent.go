// Package consistent computes, for a protected table, a set of published values that is consistent
// with the relations of the table: every cell gets a value within the range an attacker could infer
// for it, as close as possible to the middle of that range.
package consistent

import (
	"math"

	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/table"
	"github.com/pkg/errors"
)

const tol = 1e-7

// Weights are the costs of moving a cell away from the middle of its range, per unit.
type Weights struct {
	Sensitive float64
	Other     float64
}

// DefaultWeights strongly prefer moving sensitive cells.
var DefaultWeights = Weights{Sensitive: 1, Other: 100}

func (w Weights) of(c table.Cell) float64 {
	if c.Sensitive {
		return w.Sensitive
	}
	return w.Other
}

// A Value is a published value with a symmetric error.
type Value struct {
	Value     float64
	HalfWidth float64
}

// Error returns the half width of v as a percentage of its value, or 0 if the value is 0.
func (v Value) Error() float64 {
	if v.Value == 0 {
		return 0
	}
	return math.Abs(v.HalfWidth / v.Value * 100)
}

// Reconstruct returns a consistent value for each cell of tbl, given the range of each cell.
// Each cell can move up or down from the middle of its range by at most half the width of the range,
// except ranges starting at 0, which can only move down by one unit less.
// The weighted sum of the moves is minimized. The half width of a value is the half width of its
// range plus the move.
func Reconstruct(tbl *table.Table, bounds []table.Interval, solver lp.Solver, w Weights) ([]Value, error) {
	n := tbl.Len()
	if len(bounds) != n {
		return nil, errors.Errorf("%d bounds given for %d cells", len(bounds), n)
	}
	// Column 2i moves cell i up, column 2i+1 moves it down.
	prog := &lp.Program{
		Sense:     lp.Minimize,
		Objective: make([]float64, 2*n),
		Lower:     make([]float64, 2*n),
		Upper:     make([]float64, 2*n),
	}
	for i, c := range tbl.Cells {
		half := bounds[i].Half()
		if half < 0 {
			return nil, errors.Errorf("invalid range %v for cell %d", bounds[i], c.ID)
		}
		down := half
		if math.Abs(bounds[i].Low) <= tol && half > 0 {
			down = math.Max(half-1, 0)
		}
		prog.Objective[2*i] = w.of(c)
		prog.Objective[2*i+1] = w.of(c)
		prog.Upper[2*i] = half
		prog.Upper[2*i+1] = down
	}
	for i := range tbl.Relations {
		var row lp.Row
		for _, t := range tbl.Terms(i) {
			row.Cols = append(row.Cols, 2*t.Cell, 2*t.Cell+1)
			row.Coefs = append(row.Coefs, t.Coef, -t.Coef)
			row.RHS -= t.Coef * bounds[t.Cell].Mid()
		}
		prog.Rows = append(prog.Rows, row)
	}
	sol, err := solver.Solve(prog)
	if err != nil {
		return nil, errors.Wrap(err, "could not find consistent values")
	}
	res := make([]Value, n)
	for i := range res {
		up, down := sol.Primal[2*i], sol.Primal[2*i+1]
		res[i] = Value{
			Value:     bounds[i].Mid() + up - down,
			HalfWidth: bounds[i].Half() + math.Max(up, down),
		}
	}
	return res, nil
}
