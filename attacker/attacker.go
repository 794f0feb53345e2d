// Package attacker implements the attacker problem: given a (possibly fractional) suppression pattern,
// how far can an intruder, knowing the relations of a table and the published values, push the value
// of a given cell up or down?
package attacker

import (
	"fmt"

	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/table"
	"github.com/pkg/errors"
)

// An InfeasibleError is returned when an attacker program cannot be solved.
// It means the relations of the table are inconsistent with the nominal values or the suppression bounds.
type InfeasibleError struct {
	Cell     int
	Maximize bool
	Err      error
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("attacker program for cell %d (%s) has no solution: %v", e.Cell, direction(e.Maximize), e.Err)
}

// Unwrap returns the underlying LP error.
func (e *InfeasibleError) Unwrap() error {
	return e.Err
}

func direction(maximize bool) string {
	if maximize {
		return "max"
	}
	return "min"
}

// An Attacker holds the attacker program of a table.
// The program has one column per cell and one row per relation; only the bounds of the columns
// and the objective change between two solves.
type Attacker struct {
	tbl    *table.Table
	solver lp.Solver
	prog   *lp.Program
	last   *lp.Solution
	solves int
}

// New returns the attacker of tbl, solved with the given LP solver.
// Initially, no cell is suppressed.
func New(tbl *table.Table, solver lp.Solver) *Attacker {
	n := tbl.Len()
	prog := &lp.Program{
		Objective: make([]float64, n),
		Lower:     make([]float64, n),
		Upper:     make([]float64, n),
		Rows:      make([]lp.Row, len(tbl.Relations)),
	}
	for i := range tbl.Relations {
		terms := tbl.Terms(i)
		row := lp.Row{Cols: make([]int, len(terms)), Coefs: make([]float64, len(terms))}
		for k, t := range terms {
			row.Cols[k] = t.Cell
			row.Coefs[k] = t.Coef
		}
		prog.Rows[i] = row
	}
	a := &Attacker{tbl: tbl, solver: solver, prog: prog}
	a.UpdateBounds(make([]float64, n))
	return a
}

// UpdateBounds sets the bounds of each cell given the suppression level of each cell.
// A level of 0 pins the cell on its nominal value, a level of 1 frees it on its whole deviation interval.
func (a *Attacker) UpdateBounds(pattern []float64) {
	for i, c := range a.tbl.Cells {
		nom := float64(c.Nominal)
		a.prog.Upper[i] = nom + c.UB*pattern[i]
		a.prog.Lower[i] = nom - c.LB*pattern[i]
	}
	a.last = nil
}

// Bounds returns the current lower and upper bounds of the given cell.
func (a *Attacker) Bounds(cell int) (lower, upper float64) {
	return a.prog.Lower[cell], a.prog.Upper[cell]
}

// Optimize maximizes or minimizes the value of the given cell under the current bounds, and returns the optimum.
// After a successful call, Value and ReducedCosts describe the optimal solution.
// If the program cannot be solved, an *InfeasibleError is returned.
func (a *Attacker) Optimize(cell int, maximize bool) (float64, error) {
	for i := range a.prog.Objective {
		a.prog.Objective[i] = 0
	}
	a.prog.Objective[cell] = 1
	a.prog.Sense = lp.Minimize
	if maximize {
		a.prog.Sense = lp.Maximize
	}
	a.solves++
	sol, err := a.solver.Solve(a.prog)
	if err != nil {
		a.last = nil
		return 0, &InfeasibleError{Cell: a.tbl.Cells[cell].ID, Maximize: maximize, Err: err}
	}
	a.last = sol
	return sol.Value, nil
}

// Value returns the value of the given cell in the last optimal solution.
func (a *Attacker) Value(cell int) float64 {
	if a.last == nil {
		return float64(a.tbl.Cells[cell].Nominal)
	}
	return a.last.Primal[cell]
}

// ReducedCosts returns the reduced cost of each cell in the last optimal solution.
func (a *Attacker) ReducedCosts() ([]float64, error) {
	if a.last == nil {
		return nil, errors.New("attacker: no solution available")
	}
	rc, err := a.last.ReducedCosts()
	if err != nil {
		return nil, errors.Wrap(err, "could not compute reduced costs of attacker program")
	}
	return rc, nil
}

// Solves returns the number of attacker programs solved so far.
func (a *Attacker) Solves() int {
	return a.solves
}
