package master

import (
	"io"
	"math"

	"github.com/crillab/gophercsp/table"
	"github.com/sirupsen/logrus"
)

// DefaultScale is the default value cuts with real coefficients are normalized to.
const DefaultScale = 1000

// Options are the options of a Master.
type Options struct {
	SkipSeeding bool               // If true, the pool is not seeded with static constraints.
	Scale       float64            // Normalization of cuts with real coefficients; DefaultScale if 0.
	Logger      logrus.FieldLogger // Discarded if nil.
}

// A Master is the master program of a table.
type Master struct {
	tbl    *table.Table
	scale  float64
	log    logrus.FieldLogger
	lower  []bool // Cells that must be suppressed
	upper  []bool // Cells that can be suppressed
	cuts   []Cut
	extra  [][]bool // Patterns excluded by no-goods, making up for the rounding of some cuts
	floor  int
	start  []bool
	last   []bool // Last pattern returned by Solve
	seeds  int
	solves int
}

// New returns the master program of tbl.
// Unless opts.SkipSeeding is set, the pool of cuts is seeded with static constraints.
func New(tbl *table.Table, opts Options) *Master {
	m := &Master{
		tbl:   tbl,
		scale: opts.Scale,
		log:   opts.Logger,
		lower: make([]bool, tbl.Len()),
		upper: make([]bool, tbl.Len()),
	}
	if m.scale <= 0 {
		m.scale = DefaultScale
	}
	if m.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.log = l
	}
	m.ResetLower()
	for i, c := range tbl.Cells {
		m.upper[i] = !c.Zero()
	}
	if !opts.SkipSeeding {
		m.seed()
	}
	return m
}

// seed adds to the pool, for each relation, constraints that only depend on the deviation bounds of the cells.
// For each sensitive cell of the relation, if the other sensitive cells of the relation cannot provide
// enough protection on their own, a constraint ensures enough cells of the relation are suppressed.
// If the relation has less than two sensitive cells, bridge constraints prevent any cell of the relation
// from being the only suppressed one.
func (m *Master) seed() {
	cells := m.tbl.Cells
	for i := range m.tbl.Relations {
		pos, neg := m.tbl.Sides(i)
		all := append(append([]int(nil), pos...), neg...)
		nbSensitive := 0
		for _, c := range all {
			if cells[c].Sensitive {
				nbSensitive++
			}
		}
		for _, side := range [2]struct{ same, other []int }{{pos, neg}, {neg, pos}} {
			for _, c := range side.same {
				if !cells[c].Sensitive {
					continue
				}
				// Increasing c requires increasing cells on the other side or decreasing cells on its side.
				m.seedLevel(c, cells[c].UPL, side.other, side.same, "upper")
				m.seedLevel(c, cells[c].LPL, side.same, side.other, "lower")
			}
		}
		if nbSensitive < 2 {
			for _, c := range all {
				if cells[c].Zero() {
					continue
				}
				cut := Cut{Cells: []int{c}, Coefs: []float64{-1}}
				for _, o := range all {
					if o != c && !cells[o].Zero() {
						cut.Cells = append(cut.Cells, o)
						cut.Coefs = append(cut.Coefs, 1)
					}
				}
				m.addSeed(cut)
			}
		}
	}
	m.log.WithField("constraints", m.seeds).Debug("seeded master program")
}

// seedLevel adds the static constraint protecting the given level of cell c, if needed.
// Cells in up can move the value of c in the protected direction by their UB, cells in down by their LB.
func (m *Master) seedLevel(c int, level float64, up, down []int, kind string) {
	if level <= 0 {
		return
	}
	cells := m.tbl.Cells
	var static float64
	for _, o := range up {
		if o != c && cells[o].Sensitive {
			static += cells[o].UB
		}
	}
	for _, o := range down {
		if o != c && cells[o].Sensitive {
			static += cells[o].LB
		}
	}
	if static >= level {
		return
	}
	var cut Cut
	for _, o := range up {
		if o != c {
			cut.Cells = append(cut.Cells, o)
			cut.Coefs = append(cut.Coefs, math.Min(cells[o].UB, level))
		}
	}
	for _, o := range down {
		if o != c {
			cut.Cells = append(cut.Cells, o)
			cut.Coefs = append(cut.Coefs, math.Min(cells[o].LB, level))
		}
	}
	cut.RHS = level
	m.log.WithFields(logrus.Fields{"cell": cells[c].ID, "level": kind}).Debug("adding seed constraint")
	m.addSeed(cut)
}

func (m *Master) addSeed(cut Cut) {
	m.cuts = append(m.cuts, cut)
	m.seeds++
}

// AddCut adds c to the pool of permanent cuts.
// If, once rounded, c would not exclude the last pattern returned by Solve while c does, a no-good excluding
// that pattern is also added.
func (m *Master) AddCut(c Cut) {
	m.cuts = append(m.cuts, c)
	if m.last == nil || c.Satisfied(m.last) {
		return
	}
	if constr, ok := c.pbConstr(m.upper, m.scale); ok && !excludes(constr, m.last) {
		m.extra = append(m.extra, append([]bool(nil), m.last...))
	}
}

// NbCuts returns the number of cuts in the pool, seeds included.
func (m *Master) NbCuts() int {
	return len(m.cuts)
}

// NbSeeds returns the number of static constraints the pool was seeded with.
func (m *Master) NbSeeds() int {
	return m.seeds
}

// Solves returns the number of calls to the PB solver so far.
func (m *Master) Solves() int {
	return m.solves
}

// SetLower forces every cell suppressed in pattern to stay suppressed.
func (m *Master) SetLower(pattern []bool) {
	for i, supp := range pattern {
		if supp && m.upper[i] {
			m.lower[i] = true
		}
	}
}

// ResetLower only forces sensitive cells to be suppressed.
func (m *Master) ResetLower() {
	for i, c := range m.tbl.Cells {
		m.lower[i] = c.Sensitive
	}
}

// SetFloor requires at least n cells to be suppressed.
func (m *Master) SetFloor(n int) {
	m.floor = n
}

// ClearFloor removes the constraint set by SetFloor.
func (m *Master) ClearFloor() {
	m.floor = 0
}

// Floor returns the current minimal number of suppressed cells, or 0 if there is none.
func (m *Master) Floor() int {
	return m.floor
}

// SetStart provides a pattern that is evaluated before searching, during the next call to Solve.
func (m *Master) SetStart(pattern []bool) {
	m.start = append([]bool(nil), pattern...)
}

// Cost returns the sum of the weights of the cells suppressed in pattern.
func (m *Master) Cost(pattern []bool) int {
	cost := 0
	for i, supp := range pattern {
		if supp {
			cost += m.tbl.Cells[i].Weight
		}
	}
	return cost
}

// A Summary describes a pattern.
type Summary struct {
	Primary      int // Number of suppressed sensitive cells.
	Secondary    int // Number of suppressed non-sensitive cells.
	Unsuppressed int // Number of published cells.
}

// Summary returns the summary of pattern.
func (m *Master) Summary(pattern []bool) Summary {
	var s Summary
	for i, c := range m.tbl.Cells {
		switch {
		case !pattern[i]:
			s.Unsuppressed++
		case c.Sensitive:
			s.Primary++
		default:
			s.Secondary++
		}
	}
	return s
}
