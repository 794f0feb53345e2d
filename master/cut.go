package master

import (
	"fmt"
	"math"
	"strings"

	"github.com/crillab/gophersat/solver"
)

// Tolerance used when comparing real values.
const tol = 1e-9

// Tolerance used when checking a pattern against a cut computed from an LP.
const satTol = 1e-6

// A Cut is a linear constraint on the suppression variables:
// sum of Coefs[i]*x[Cells[i]] >= RHS.
// Cells are given by their index in the table.
type Cut struct {
	Cells []int
	Coefs []float64
	RHS   float64
}

// Eval returns the value of the left-hand side of c for the given pattern.
func (c Cut) Eval(pattern []bool) float64 {
	var sum float64
	for i, cell := range c.Cells {
		if pattern[cell] {
			sum += c.Coefs[i]
		}
	}
	return sum
}

// Satisfied is true iff pattern satisfies c.
func (c Cut) Satisfied(pattern []bool) bool {
	return c.Eval(pattern) >= c.RHS-satTol*math.Max(1, math.Abs(c.RHS))
}

func (c Cut) String() string {
	terms := make([]string, len(c.Cells))
	for i, cell := range c.Cells {
		terms[i] = fmt.Sprintf("%g x%d", c.Coefs[i], cell)
	}
	return fmt.Sprintf("%s >= %g", strings.Join(terms, " + "), c.RHS)
}

// A Sink receives cuts.
type Sink interface {
	AddCut(c Cut)
}

// Lazy is a Sink collecting the cuts that reject an incumbent.
// Lazy cuts only live as long as the search that produced them.
type Lazy struct {
	cuts []Cut
}

// AddCut adds c to the list of lazy cuts.
func (l *Lazy) AddCut(c Cut) {
	l.cuts = append(l.cuts, c)
}

// Len returns the number of cuts added to l.
func (l *Lazy) Len() int {
	return len(l.cuts)
}

// Cuts returns the cuts added to l.
func (l *Lazy) Cuts() []Cut {
	return l.cuts
}

// isIntegral is true iff v is an integer, modulo tolerance.
func isIntegral(v float64) bool {
	return math.Abs(v-math.Round(v)) < tol
}

// pbConstr translates c into an equivalent, or weaker, PB constraint.
// Terms on cells that cannot be suppressed are removed. If coefficients are not all integral,
// the whole constraint is normalized so that its right-hand side is scale, then coefficients are rounded up.
// The returned constraint is satisfied by any pattern satisfying c.
// The second returned value is false if the constraint is trivially satisfied.
func (c Cut) pbConstr(upper []bool, scale float64) (solver.PBConstr, bool) {
	factor := 1.0
	integral := isIntegral(c.RHS)
	for _, coef := range c.Coefs {
		integral = integral && isIntegral(coef)
	}
	if !integral {
		factor = scale
		if math.Abs(c.RHS) > tol {
			factor = scale / math.Abs(c.RHS)
		}
	}
	var (
		lits    []int
		weights []int
	)
	for i, cell := range c.Cells {
		if !upper[cell] {
			continue
		}
		w := int(math.Ceil(c.Coefs[i]*factor - tol))
		if w == 0 {
			continue
		}
		lits = append(lits, cell+1)
		weights = append(weights, w)
	}
	atLeast := int(math.Ceil(c.RHS*factor - tol))
	constr := solver.GtEq(lits, weights, atLeast)
	return constr, constr.AtLeast > 0
}

// excludes is true iff pattern violates constr.
func excludes(constr solver.PBConstr, pattern []bool) bool {
	sum := 0
	for i, lit := range constr.Lits {
		w := 1
		if constr.Weights != nil {
			w = constr.Weights[i]
		}
		if lit > 0 == pattern[abs(lit)-1] {
			sum += w
		}
	}
	return sum < constr.AtLeast
}

// unsatisfiable is true iff no assignment satisfies constr.
func unsatisfiable(constr solver.PBConstr) bool {
	sum := 0
	for i := range constr.Lits {
		if constr.Weights == nil {
			sum++
		} else {
			sum += constr.Weights[i]
		}
	}
	return sum < constr.AtLeast
}

// noGood returns a clause stating at least one of the cells that can be suppressed but
// are not suppressed in pattern must be suppressed.
func noGood(pattern, upper []bool) solver.PBConstr {
	var lits []int
	for i, supp := range pattern {
		if !supp && upper[i] {
			lits = append(lits, i+1)
		}
	}
	return solver.PropClause(lits...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
