// Package lp defines the linear programs solved by gophercsp and a pure Go engine able to solve them.
//
// A Program is a bounded linear program:
//
//	min (or max) c.x
//	s.t. A.x = b
//	     l <= x <= u
//
// Every column must have finite bounds.
//
// The Simplex engine relies on gonum's implementation of the simplex algorithm.
// Reduced costs are not computed when solving the program: they are only computed,
// by solving the dual program, when Solution.ReducedCosts is called.
package lp

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrInfeasible is returned when a program has no solution.
	ErrInfeasible = errors.New("lp: infeasible program")
	// ErrInfiniteBound is returned when a column has an infinite bound.
	ErrInfiniteBound = errors.New("lp: infinite bound")
)

// Sense is the optimization direction of a Program.
type Sense int

const (
	// Minimize looks for the smallest objective value.
	Minimize Sense = iota
	// Maximize looks for the largest objective value.
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "max"
	}
	return "min"
}

// A Row is an equality constraint: sum of Coefs[k]*x[Cols[k]] = RHS.
type Row struct {
	Cols  []int
	Coefs []float64
	RHS   float64
}

// A Program is a linear program with bounded columns and equality rows.
type Program struct {
	Sense     Sense
	Objective []float64 // One coefficient per column.
	Lower     []float64 // Lower bound of each column.
	Upper     []float64 // Upper bound of each column.
	Rows      []Row
}

// NbCols returns the number of columns in p.
func (p *Program) NbCols() int {
	return len(p.Objective)
}

// Validate checks p is well formed.
func (p *Program) Validate() error {
	n := len(p.Objective)
	if len(p.Lower) != n || len(p.Upper) != n {
		return errors.Errorf("lp: %d columns but %d lower and %d upper bounds", n, len(p.Lower), len(p.Upper))
	}
	for j := 0; j < n; j++ {
		if math.IsInf(p.Lower[j], 0) || math.IsInf(p.Upper[j], 0) {
			return errors.Wrapf(ErrInfiniteBound, "column %d", j)
		}
		if math.IsNaN(p.Lower[j]) || math.IsNaN(p.Upper[j]) {
			return errors.Errorf("lp: column %d has a NaN bound", j)
		}
	}
	for i, r := range p.Rows {
		if len(r.Cols) != len(r.Coefs) {
			return errors.Errorf("lp: row %d has %d columns but %d coefficients", i, len(r.Cols), len(r.Coefs))
		}
		for _, c := range r.Cols {
			if c < 0 || c >= n {
				return errors.Errorf("lp: row %d references column %d out of %d", i, c, n)
			}
		}
	}
	return nil
}

// clone returns a copy of p whose objective and bounds can be changed independently.
// Rows are shared.
func (p *Program) clone() *Program {
	return &Program{
		Sense:     p.Sense,
		Objective: append([]float64(nil), p.Objective...),
		Lower:     append([]float64(nil), p.Lower...),
		Upper:     append([]float64(nil), p.Upper...),
		Rows:      p.Rows,
	}
}

// A Solution is the optimal solution of a Program.
type Solution struct {
	Value  float64   // Optimal objective value.
	Primal []float64 // Value of each column.
	duals  func() ([]float64, error)
	rc     []float64
	rcErr  error
	rcDone bool
}

// NewSolution returns a solution whose reduced costs are computed by rc when they are first needed.
// It allows solvers other than Simplex to provide reduced costs. rc can be nil.
func NewSolution(value float64, primal []float64, rc func() ([]float64, error)) *Solution {
	return &Solution{Value: value, Primal: primal, duals: rc}
}

// ReducedCosts returns the reduced cost of each column.
// Signs follow the usual convention: for a maximization program, a positive reduced cost means the column
// is at its upper bound; for a minimization program, a positive reduced cost means the column is at its lower bound.
// Reduced costs are computed on the first call, and cached.
func (s *Solution) ReducedCosts() ([]float64, error) {
	if !s.rcDone {
		if s.duals == nil {
			s.rcErr = errors.New("lp: reduced costs not available")
		} else {
			s.rc, s.rcErr = s.duals()
		}
		s.rcDone = true
	}
	return s.rc, s.rcErr
}

// A Solver solves linear programs.
type Solver interface {
	Solve(p *Program) (*Solution, error)
}
