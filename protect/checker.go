// Package protect checks whether the sensitive cells of a table are protected by a suppression pattern,
// and derives cuts for the master program when they are not.
package protect

import (
	"io"

	"github.com/crillab/gophercsp/attacker"
	"github.com/crillab/gophercsp/master"
	"github.com/crillab/gophercsp/table"
	"github.com/sirupsen/logrus"
)

// Tolerance used when comparing attacker optima with protection levels.
const tol = 1e-7

// Options are the options of a protection check.
type Options struct {
	MaxCuts  int  // Maximum number of cuts per check; no limit if <= 0.
	Refresh  bool // If true, HIGH and LOW are reset to nominal values before checking.
	Extended bool // If true, HIGH and LOW track all suppressed cells rather than sensitive cells only.
}

// A Checker checks the protection of the sensitive cells of a table against the current
// bounds of an attacker.
//
// For every cell, the checker keeps track of HIGH and LOW, the highest and lowest values
// the cell was seen to take in a solution of an attacker program. Those values are used
// to avoid solving programs whose optimum is already known to be protected.
type Checker struct {
	tbl     *table.Table
	att     *attacker.Attacker
	log     logrus.FieldLogger
	high    []float64
	low     []float64
	byUpper []int     // Sensitive cells by non-increasing UPL
	byLower []int     // Sensitive cells by non-increasing LPL
	tracked []int     // Cells whose HIGH and LOW are updated
	pattern []float64 // Last pattern given to Push
}

// New returns a checker for the attacker att of table tbl.
func New(tbl *table.Table, att *attacker.Attacker, logger logrus.FieldLogger) *Checker {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	c := &Checker{
		tbl:     tbl,
		att:     att,
		log:     logger,
		high:    make([]float64, tbl.Len()),
		low:     make([]float64, tbl.Len()),
		byUpper: tbl.ByProtection(func(c table.Cell) float64 { return c.UPL }),
		byLower: tbl.ByProtection(func(c table.Cell) float64 { return c.LPL }),
		pattern: make([]float64, tbl.Len()),
	}
	c.Reset()
	return c
}

// Attacker returns the attacker used by c.
func (c *Checker) Attacker() *attacker.Attacker {
	return c.att
}

// Push sets the bounds of the attacker according to pattern.
// A cell is considered suppressed if its level is above 0.5.
func (c *Checker) Push(pattern []float64) {
	copy(c.pattern, pattern)
	c.att.UpdateBounds(pattern)
}

// PushPattern is like Push for an integral pattern.
func (c *Checker) PushPattern(pattern []bool) {
	levels := make([]float64, len(pattern))
	for i, supp := range pattern {
		if supp {
			levels[i] = 1
		}
	}
	c.Push(levels)
}

// Reset sets HIGH and LOW back to nominal values.
func (c *Checker) Reset() {
	for i, cell := range c.tbl.Cells {
		c.high[i] = float64(cell.Nominal)
		c.low[i] = float64(cell.Nominal)
	}
}

// Interval returns the interval [LOW, HIGH] of the given cell.
func (c *Checker) Interval(cell int) table.Interval {
	return table.Interval{Low: c.low[cell], High: c.high[cell]}
}

// Intervals returns the interval [LOW, HIGH] of every cell.
func (c *Checker) Intervals() []table.Interval {
	res := make([]table.Interval, c.tbl.Len())
	for i := range res {
		res[i] = c.Interval(i)
	}
	return res
}

// Check checks the protection of every sensitive cell against the last pattern given to Push.
// Every time a protection level is found to be violated, a cut is derived and given to sink.
// Check returns the number of cuts that were added.
// Upper protection levels are checked first, by non-increasing level, then lower protection levels.
func (c *Checker) Check(sink master.Sink, opts Options) (int, error) {
	if opts.Refresh {
		c.Reset()
	}
	c.tracked = c.tracked[:0]
	for i, cell := range c.tbl.Cells {
		if opts.Extended && c.pattern[i] > 0.5 || !opts.Extended && cell.Sensitive {
			c.tracked = append(c.tracked, i)
		}
	}
	nbCuts := 0
	full := func() bool { return opts.MaxCuts > 0 && nbCuts >= opts.MaxCuts }
	for _, cell := range c.byUpper {
		if full() {
			break
		}
		added, err := c.checkUpper(sink, cell)
		if err != nil {
			return nbCuts, err
		}
		if added {
			nbCuts++
		}
	}
	for _, cell := range c.byLower {
		if full() {
			break
		}
		added, err := c.checkLower(sink, cell)
		if err != nil {
			return nbCuts, err
		}
		if added {
			nbCuts++
		}
	}
	c.log.WithField("cuts", nbCuts).Debug("protection checked")
	return nbCuts, nil
}

// checkUpper checks the upper protection level of the given cell, and returns true if a cut was added.
func (c *Checker) checkUpper(sink master.Sink, cell int) (bool, error) {
	info := c.tbl.Cells[cell]
	target := float64(info.Nominal) + info.UPL
	if info.UPL <= 0 || c.high[cell] >= target-tol {
		return false, nil
	}
	max, err := c.att.Optimize(cell, true)
	if err != nil {
		return false, err
	}
	if max >= target-tol {
		c.update()
		return false, nil
	}
	cut, err := c.cut(info.UPL, true)
	if err != nil {
		return false, err
	}
	c.log.WithFields(logrus.Fields{"cell": info.ID, "max": max, "target": target}).Debug("upper protection level violated")
	sink.AddCut(cut)
	return true, nil
}

// checkLower checks the lower protection level of the given cell, and returns true if a cut was added.
func (c *Checker) checkLower(sink master.Sink, cell int) (bool, error) {
	info := c.tbl.Cells[cell]
	target := float64(info.Nominal) - info.LPL
	if info.LPL <= 0 || c.low[cell] <= target+tol {
		return false, nil
	}
	min, err := c.att.Optimize(cell, false)
	if err != nil {
		return false, err
	}
	if min <= target+tol {
		c.update()
		return false, nil
	}
	cut, err := c.cut(info.LPL, false)
	if err != nil {
		return false, err
	}
	c.log.WithFields(logrus.Fields{"cell": info.ID, "min": min, "target": target}).Debug("lower protection level violated")
	sink.AddCut(cut)
	return true, nil
}

// update updates HIGH and LOW of tracked cells with the last attacker solution.
func (c *Checker) update() {
	for _, cell := range c.tracked {
		v := c.att.Value(cell)
		if v > c.high[cell] {
			c.high[cell] = v
		}
		if v < c.low[cell] {
			c.low[cell] = v
		}
	}
}
