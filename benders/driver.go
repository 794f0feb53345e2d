// Package benders solves the cell suppression problem by Benders decomposition:
// a master program chooses which cells to suppress, and attacker programs check whether
// the sensitive cells are protected, adding cuts to the master program when they are not.
//
// Two strategies are provided. Dive is a heuristic: after each master solve, the suppressed cells
// are fixed and the next pattern must be bigger, so a protected pattern is quickly found.
// Exact checks every candidate pattern during the master search, and finds an optimal pattern
// given enough time.
package benders

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/crillab/gophercsp/attacker"
	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/master"
	"github.com/crillab/gophercsp/protect"
	"github.com/crillab/gophercsp/table"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDiveLimit is returned when diving did not converge after the maximum number of dives.
	ErrDiveLimit = errors.New("diving did not converge")
	// ErrUnprotected is returned when a pattern given for redundancy removal does not protect all sensitive cells.
	ErrUnprotected = errors.New("pattern does not protect all sensitive cells")
)

// Intervals narrower than this are considered as points.
const tol = 1e-7

// A Step describes one round of diving.
type Step struct {
	Suppressed int // Number of suppressed cells in the pattern found by the master program.
	Floor      int // Minimal number of suppressed cells required from the master program during this round.
	Cuts       int // Number of cuts found for that pattern.
}

// A Solution is a protected pattern.
type Solution struct {
	Pattern   []bool
	Bounds    []table.Interval // For each cell, the range of values an attacker was shown to reach.
	Objective int              // Sum of the weights of the suppressed cells.
	Summary   master.Summary
	Status    master.Status // Status of the last master search; diving searches are only optimal given the fixed cells.
	Trace     []Step        // Rounds of diving.
}

// A Driver solves a table.
// A Driver is not safe for concurrent use.
type Driver struct {
	tbl     *table.Table
	opts    Options
	lp      lp.Solver
	log     logrus.FieldLogger
	metrics *Metrics
	master  *master.Master
	checker *protect.Checker
	status  master.Status // Status of the last master search
}

// Option configures a Driver.
type Option func(d *Driver) error

// WithLP sets the LP solver used by attacker programs.
func WithLP(s lp.Solver) Option {
	return func(d *Driver) error {
		d.lp = s
		return nil
	}
}

// WithLogger sets the logger of the driver.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) error {
		d.log = l
		return nil
	}
}

// WithMetrics sets the metrics updated by the driver.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) error {
		d.metrics = m
		return nil
	}
}

var defaults = []Option{
	func(d *Driver) error {
		if d.lp == nil {
			d.lp = lp.Simplex{}
		}
		return nil
	},
	func(d *Driver) error {
		if d.log == nil {
			l := logrus.New()
			l.SetOutput(io.Discard)
			d.log = l
		}
		return nil
	},
}

// New returns a driver for tbl.
func New(tbl *table.Table, opts Options, options ...Option) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	d := &Driver{tbl: tbl, opts: opts}
	for _, option := range append(options, defaults...) {
		if err := option(d); err != nil {
			return nil, err
		}
	}
	d.master = master.New(tbl, master.Options{SkipSeeding: opts.SkipSeeding, Scale: opts.Scale, Logger: d.log})
	d.checker = protect.New(tbl, attacker.New(tbl, d.lp), d.log)
	return d, nil
}

// Master returns the master program of d.
func (d *Driver) Master() *master.Master {
	return d.master
}

func (d *Driver) maxDives() int {
	if d.opts.MaxDives > 0 {
		return d.opts.MaxDives
	}
	return d.tbl.Len() + 1
}

func count(pattern []bool) int {
	nb := 0
	for _, supp := range pattern {
		if supp {
			nb++
		}
	}
	return nb
}

// Dive runs the diving heuristic and returns a protected pattern, along with the trace of the dive.
// After each round, cells suppressed so far stay suppressed, and the master program must suppress
// more cells, so every round yields a bigger pattern.
// Cuts are added permanently to the master program.
func (d *Driver) Dive(ctx context.Context) ([]bool, []Step, error) {
	defer d.track(phaseHeuristic)()
	defer d.master.ResetLower()
	d.checker.Reset()
	params := master.Params{TimeLimit: d.opts.HeuristicTime.Duration, Gap: d.opts.HeuristicGap}
	var trace []Step
	floor := 0
	for i := 0; i < d.maxDives(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, trace, errors.Wrap(err, "diving interrupted")
		}
		res, err := d.master.Solve(ctx, params, nil)
		d.master.ClearFloor()
		if err != nil {
			return nil, trace, errors.Wrap(err, "could not solve master program")
		}
		d.status = res.Status
		d.checker.PushPattern(res.Pattern)
		nb, err := d.checker.Check(d.master, protect.Options{MaxCuts: d.opts.HeuristicCuts})
		if err != nil {
			return nil, trace, errors.Wrap(err, "could not check protection")
		}
		d.addCuts(phaseHeuristic, nb)
		step := Step{Suppressed: count(res.Pattern), Floor: floor, Cuts: nb}
		trace = append(trace, step)
		d.log.WithFields(logrus.Fields{
			"round":      i + 1,
			"cuts":       step.Cuts,
			"suppressed": step.Suppressed,
			"floor":      step.Floor,
			"objective":  res.Objective,
		}).Info("dive")
		if nb == 0 {
			return res.Pattern, trace, nil
		}
		d.master.SetLower(res.Pattern)
		floor = int(math.Ceil(float64(step.Suppressed) * d.opts.Multiplier))
		if nz := d.tbl.NumNonZero(); floor > nz {
			floor = nz
		}
		d.master.SetFloor(floor)
	}
	return nil, trace, errors.Wrapf(ErrDiveLimit, "%d dives", d.maxDives())
}

// Exact looks for an optimal pattern. Every candidate pattern found by the master search is checked,
// and rejected with lazy cuts if it does not protect all sensitive cells.
// If start is not nil, it is proposed as the first candidate.
func (d *Driver) Exact(ctx context.Context, start []bool) (*master.Result, error) {
	defer d.track(phaseExact)()
	if start != nil {
		d.master.SetStart(start)
	}
	params := master.Params{TimeLimit: d.opts.ExactTime.Duration, Gap: d.opts.ExactGap}
	handler := master.HandlerFunc(func(pattern []bool, lazy *master.Lazy) error {
		d.checker.PushPattern(pattern)
		nb, err := d.checker.Check(lazy, protect.Options{MaxCuts: d.opts.ExactCuts, Refresh: true})
		if err != nil {
			return errors.Wrap(err, "could not check protection")
		}
		d.addCuts(phaseExact, nb)
		d.log.WithFields(logrus.Fields{"cuts": nb, "suppressed": count(pattern)}).Debug("candidate checked")
		return nil
	})
	res, err := d.master.Solve(ctx, params, handler)
	if err != nil {
		return nil, errors.Wrap(err, "could not solve master program")
	}
	d.log.WithFields(logrus.Fields{
		"status":    res.Status,
		"objective": res.Objective,
		"bound":     res.Bound,
		"lazy":      res.Lazy,
	}).Info("exact search over")
	return res, nil
}

// RemoveRedundant removes from pattern the suppressions that do not contribute to protection.
// The protection of pattern is checked once, tracking the range of every suppressed cell: suppressed cells
// that were never seen to move away from their nominal value are published. Sensitive cells are never published.
// The range of every cell is returned along with the new pattern.
// If pattern does not protect all sensitive cells, ErrUnprotected is returned.
func (d *Driver) RemoveRedundant(pattern []bool) ([]bool, []table.Interval, error) {
	defer d.track(phaseRedundant)()
	d.checker.PushPattern(pattern)
	var lazy master.Lazy
	nb, err := d.checker.Check(&lazy, protect.Options{Refresh: true, Extended: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not check protection")
	}
	if nb != 0 {
		return nil, nil, errors.Wrapf(ErrUnprotected, "%d violated protection levels", nb)
	}
	bounds := d.checker.Intervals()
	res := make([]bool, len(pattern))
	removed := 0
	for i, supp := range pattern {
		res[i] = supp
		if supp && !d.tbl.Cells[i].Sensitive && bounds[i].Width() <= tol {
			res[i] = false
			removed++
		}
	}
	if d.metrics != nil {
		d.metrics.Redundant.Add(float64(removed))
	}
	d.log.WithField("removed", removed).Info("redundant suppressions removed")
	return res, bounds, nil
}

// Run solves the table: it dives, removes redundant suppressions, then, if required,
// looks for an optimal pattern starting from the one found by diving.
func (d *Driver) Run(ctx context.Context) (*Solution, error) {
	d.log.WithFields(logrus.Fields{
		"cells":     d.tbl.Len(),
		"primary":   d.tbl.NumSensitive(),
		"relations": len(d.tbl.Relations),
		"seeds":     d.master.NbSeeds(),
	}).Info("solving table")
	pattern, trace, err := d.Dive(ctx)
	if err != nil {
		return nil, err
	}
	pattern, bounds, err := d.RemoveRedundant(pattern)
	if err != nil {
		return nil, err
	}
	sol := &Solution{Pattern: pattern, Bounds: bounds, Trace: trace, Status: d.status}
	d.report(sol, "heuristic")
	if d.opts.Optimise {
		res, err := d.Exact(ctx, pattern)
		if err != nil {
			return nil, err
		}
		pattern, bounds, err := d.RemoveRedundant(res.Pattern)
		if err != nil {
			return nil, err
		}
		sol.Pattern, sol.Bounds, sol.Status = pattern, bounds, res.Status
		d.report(sol, "exact")
	}
	return sol, nil
}

func (d *Driver) report(sol *Solution, phase string) {
	sol.Objective = d.master.Cost(sol.Pattern)
	sol.Summary = d.master.Summary(sol.Pattern)
	d.log.WithFields(logrus.Fields{
		"phase":        phase,
		"objective":    sol.Objective,
		"primary":      sol.Summary.Primary,
		"secondary":    sol.Summary.Secondary,
		"unsuppressed": sol.Summary.Unsuppressed,
	}).Info("solution found")
}

func (d *Driver) addCuts(phase string, nb int) {
	if d.metrics != nil {
		d.metrics.Cuts.WithLabelValues(phase).Add(float64(nb))
	}
}

// track returns a function updating the metrics of the given phase with what happened since track was called.
func (d *Driver) track(phase string) func() {
	if d.metrics == nil {
		return func() {}
	}
	start := time.Now()
	masterSolves := d.master.Solves()
	attackerSolves := d.checker.Attacker().Solves()
	return func() {
		d.metrics.MasterSolves.WithLabelValues(phase).Add(float64(d.master.Solves() - masterSolves))
		d.metrics.AttackerSolves.WithLabelValues(phase).Add(float64(d.checker.Attacker().Solves() - attackerSolves))
		d.metrics.Duration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}
