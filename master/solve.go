package master

import (
	"context"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrInfeasible is returned when no pattern satisfies the constraints of the master program.
var ErrInfeasible = errors.New("master program is infeasible")

// Status describes why a search stopped.
type Status int

const (
	// Optimal means no cheaper pattern exists.
	Optimal Status = iota
	// TimeLimit means the time limit was reached; the pattern might not be optimal.
	TimeLimit
	// GapLimit means the pattern is close enough to the lower bound.
	GapLimit
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case TimeLimit:
		return "time limit"
	case GapLimit:
		return "gap limit"
	default:
		return "unknown"
	}
}

// Params are the parameters of a search.
type Params struct {
	// TimeLimit is a soft limit on the duration of the search; no limit if 0.
	// It is only checked between two calls to the PB solver, and a call cannot be interrupted,
	// so the search can last longer. The search never stops before an incumbent is found.
	TimeLimit time.Duration

	Gap float64 // Relative gap between the incumbent and the lower bound under which the search stops.
}

// An IncumbentHandler is called each time the search finds a new candidate pattern.
// It can reject the pattern by adding cuts to lazy.
type IncumbentHandler interface {
	OnIncumbent(pattern []bool, lazy *Lazy) error
}

// HandlerFunc is an adapter allowing to use a function as an IncumbentHandler.
type HandlerFunc func(pattern []bool, lazy *Lazy) error

// OnIncumbent calls f.
func (f HandlerFunc) OnIncumbent(pattern []bool, lazy *Lazy) error {
	return f(pattern, lazy)
}

// A Result is the outcome of a search.
type Result struct {
	Status    Status
	Pattern   []bool // Suppressed cells.
	Objective int    // Sum of the weights of the suppressed cells.
	Bound     int    // Lower bound on the objective.
	Lazy      int    // Number of lazy cuts added during the search.
}

// Solve looks for the cheapest pattern satisfying the constraints of the master program.
// If handler is not nil, every candidate pattern is proposed to it before being accepted.
// The start pattern provided by SetStart, if any, is proposed first, and is then forgotten.
func (m *Master) Solve(ctx context.Context, params Params, handler IncumbentHandler) (*Result, error) {
	began := time.Now()
	res := &Result{Bound: m.bound()}
	var (
		best []bool
		lazy []solver.PBConstr // Lazy cuts and no-goods of this search.
	)
	accept := func(pattern []bool) {
		best = pattern
		res.Objective = m.Cost(pattern)
		m.log.WithFields(logrus.Fields{"objective": res.Objective, "bound": res.Bound}).Debug("new incumbent")
	}
	// reject adds the lazy cuts, and makes sure pattern is not found again.
	reject := func(pattern []bool, cuts *Lazy) error {
		res.Lazy += cuts.Len()
		excluded := false
		for _, c := range cuts.cuts {
			constr, ok := c.pbConstr(m.upper, m.scale)
			if !ok {
				continue
			}
			if unsatisfiable(constr) {
				return errors.Wrapf(ErrInfeasible, "lazy cut %v cannot be satisfied", c)
			}
			excluded = excluded || excludes(constr, pattern)
			lazy = append(lazy, constr)
		}
		if !excluded {
			ng := noGood(pattern, m.upper)
			if unsatisfiable(ng) {
				return errors.Wrap(ErrInfeasible, "every cell is suppressed and protection is still violated")
			}
			lazy = append(lazy, ng)
		}
		return nil
	}
	if m.start != nil {
		start := m.start
		m.start = nil
		switch {
		case !m.Feasible(start):
			m.log.Debug("start pattern does not satisfy the master program, ignoring it")
		case handler != nil:
			var cuts Lazy
			if err := handler.OnIncumbent(start, &cuts); err != nil {
				return nil, err
			}
			if cuts.Len() == 0 {
				accept(start)
			} else if err := reject(start, &cuts); err != nil {
				return nil, err
			}
		default:
			accept(start)
		}
	}
	for {
		max := -1
		if best != nil {
			if res.Objective <= res.Bound {
				res.Status = Optimal
				break
			}
			if params.Gap > 0 && float64(res.Objective-res.Bound) <= params.Gap*float64(res.Objective) {
				res.Status = GapLimit
				break
			}
			if params.TimeLimit > 0 && time.Since(began) >= params.TimeLimit {
				res.Status = TimeLimit
				break
			}
			max = res.Objective - 1
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "master search interrupted")
		}
		pattern, err := m.search(lazy, max)
		if err != nil {
			return nil, err
		}
		if pattern == nil {
			if best == nil {
				return nil, ErrInfeasible
			}
			res.Status = Optimal
			break
		}
		if handler != nil {
			var cuts Lazy
			if err := handler.OnIncumbent(pattern, &cuts); err != nil {
				return nil, err
			}
			if cuts.Len() != 0 {
				if err := reject(pattern, &cuts); err != nil {
					return nil, err
				}
				continue
			}
		}
		accept(pattern)
	}
	res.Pattern = best
	m.last = best
	return res, nil
}

// search returns a pattern satisfying the program, the given extra constraints and, if max >= 0,
// whose cost is at most max. It returns nil if there is no such pattern.
// A new PB solver is built for each search, and the model it returns is checked against every constraint.
func (m *Master) search(extra []solver.PBConstr, max int) ([]bool, error) {
	constrs := append(m.constrs(), extra...)
	if max >= 0 {
		constrs = append(constrs, m.costBound(max))
	}
	m.solves++
	// The solver reorders the weights it is given in place.
	pb := solver.ParsePBConstrs(clone(constrs))
	if pb.Status == solver.Unsat {
		return nil, nil
	}
	s := solver.New(pb)
	switch s.Solve() {
	case solver.Unsat:
		return nil, nil
	case solver.Sat:
	default:
		return nil, errors.New("PB solver could not decide the master program")
	}
	pattern := s.Model()[:m.tbl.Len()]
	for _, constr := range constrs {
		if excludes(constr, pattern) {
			return nil, errors.Errorf("PB solver returned a pattern violating %v", constr)
		}
	}
	return pattern, nil
}

// clone returns a deep copy of constrs.
func clone(constrs []solver.PBConstr) []solver.PBConstr {
	res := make([]solver.PBConstr, len(constrs))
	for i, c := range constrs {
		res[i] = solver.PBConstr{Lits: append([]int(nil), c.Lits...), AtLeast: c.AtLeast}
		if c.Weights != nil {
			res[i].Weights = append([]int(nil), c.Weights...)
		}
	}
	return res
}

// constrs returns the PB constraints of the program.
func (m *Master) constrs() []solver.PBConstr {
	n := m.tbl.Len()
	all := make([]int, n)
	for i := range all {
		all[i] = i + 1
	}
	// Declares all variables, even those that appear in no constraint.
	constrs := []solver.PBConstr{solver.AtLeast(all, 0)}
	for i := 0; i < n; i++ {
		if m.lower[i] {
			constrs = append(constrs, solver.PropClause(i+1))
		} else if !m.upper[i] {
			constrs = append(constrs, solver.PropClause(-(i + 1)))
		}
	}
	for _, c := range m.cuts {
		if constr, ok := c.pbConstr(m.upper, m.scale); ok {
			constrs = append(constrs, constr)
		}
	}
	for _, pattern := range m.extra {
		constrs = append(constrs, noGood(pattern, m.upper))
	}
	if m.floor > 0 {
		var lits []int
		for i := 0; i < n; i++ {
			if m.upper[i] {
				lits = append(lits, i+1)
			}
		}
		constrs = append(constrs, solver.AtLeast(lits, m.floor))
	}
	return constrs
}

// costBound returns a constraint stating the cost must be at most max.
func (m *Master) costBound(max int) solver.PBConstr {
	var lits, weights []int
	for i, c := range m.tbl.Cells {
		if c.Weight > 0 && m.upper[i] {
			lits = append(lits, i+1)
			weights = append(weights, c.Weight)
		}
	}
	return solver.LtEq(lits, weights, max)
}

// bound returns the cost of the cells that must be suppressed.
func (m *Master) bound() int {
	return m.Cost(m.lower)
}

// Feasible is true iff pattern satisfies the bounds, the floor and the pool of the program.
func (m *Master) Feasible(pattern []bool) bool {
	nb := 0
	for i, supp := range pattern {
		if supp && !m.upper[i] || !supp && m.lower[i] {
			return false
		}
		if supp {
			nb++
		}
	}
	if nb < m.floor {
		return false
	}
	for _, c := range m.cuts {
		if !c.Satisfied(pattern) {
			return false
		}
	}
	for _, excl := range m.extra {
		if subset(pattern, excl) {
			return false
		}
	}
	return true
}

// subset is true iff all cells suppressed in a are suppressed in b.
func subset(a, b []bool) bool {
	for i := range a {
		if a[i] && !b[i] {
			return false
		}
	}
	return true
}
