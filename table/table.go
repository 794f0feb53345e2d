// Package table describes the statistical tables handled by gophercsp:
// cells, the additive relations linking them, and the protection levels of
// sensitive cells.
//
// Cells are identified by an integer ID in input documents, but every other
// package addresses them by their position in Table.Cells, so that patterns,
// bounds and LP columns can be plain slices.
package table

import (
	"fmt"
	"sort"
)

// A Cell is one numeric entry of a table.
type Cell struct {
	ID        int     // Identifier of the cell, unique within a table.
	Nominal   int     // The true value of the cell.
	Weight    int     // Cost of suppressing the cell.
	Sensitive bool    // Sensitive cells are primary suppressions.
	LB        float64 // How far the value may be pushed down while staying plausible.
	UB        float64 // How far the value may be pushed up while staying plausible.
	LPL       float64 // Lower protection level; only meaningful for sensitive cells.
	UPL       float64 // Upper protection level; only meaningful for sensitive cells.
}

// Zero is true iff c is a structural zero. Structural zeros are never suppressed.
func (c Cell) Zero() bool {
	return c.Nominal == 0
}

// A Relation states that the sum of the cells on its positive side equals
// the sum of the cells on its negative side.
// Cells are given by their ID.
type Relation struct {
	ID       int
	Positive []int
	Negative []int
}

// An Interval is a range of values a cell can take.
type Interval struct {
	Low  float64
	High float64
}

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval {
	return Interval{Low: v, High: v}
}

// Width returns High - Low.
func (i Interval) Width() float64 {
	return i.High - i.Low
}

// Mid returns the middle of the interval.
func (i Interval) Mid() float64 {
	return (i.Low + i.High) / 2
}

// Half returns half the width of the interval.
func (i Interval) Half() float64 {
	return (i.High - i.Low) / 2
}

func (i Interval) String() string {
	return fmt.Sprintf("[%g, %g]", i.Low, i.High)
}

// A Term is one cell of a relation, given by its index in the table, with its coefficient (+1 or -1).
type Term struct {
	Cell int
	Coef float64
}

// A Table is a set of cells and the relations linking them.
type Table struct {
	Cells     []Cell
	Relations []Relation
	index     map[int]int // For each cell ID, its position in Cells
	terms     [][]Term    // For each relation, its terms expressed with cell indices
}

// New returns a table made of the given cells and relations, after checking they are consistent.
// The returned error, if any, is a *MalformedError.
func New(cells []Cell, relations []Relation) (*Table, error) {
	t := &Table{
		Cells:     cells,
		Relations: relations,
		index:     make(map[int]int, len(cells)),
		terms:     make([][]Term, len(relations)),
	}
	for i, c := range cells {
		if _, ok := t.index[c.ID]; ok {
			return nil, malformed(c.ID, "duplicate cell id")
		}
		t.index[c.ID] = i
		if err := checkCell(c); err != nil {
			return nil, err
		}
	}
	for i, r := range relations {
		terms := make([]Term, 0, len(r.Positive)+len(r.Negative))
		seen := make(map[int]bool, cap(terms))
		add := func(id int, coef float64) error {
			idx, ok := t.index[id]
			if !ok {
				return &MalformedError{Relation: r.ID, Cell: id, Reason: "reference to an undefined cell"}
			}
			if seen[id] {
				return &MalformedError{Relation: r.ID, Cell: id, Reason: "cell appears more than once, coefficient is not +1 or -1"}
			}
			seen[id] = true
			terms = append(terms, Term{Cell: idx, Coef: coef})
			return nil
		}
		for _, id := range r.Positive {
			if err := add(id, 1); err != nil {
				return nil, err
			}
		}
		for _, id := range r.Negative {
			if err := add(id, -1); err != nil {
				return nil, err
			}
		}
		t.terms[i] = terms
	}
	return t, nil
}

func checkCell(c Cell) error {
	switch {
	case c.LB < 0 || c.UB < 0:
		return malformed(c.ID, "negative deviation bound")
	case c.Weight < 0:
		return malformed(c.ID, "negative weight")
	case c.Sensitive && c.Zero():
		return malformed(c.ID, "sensitive cell has a zero nominal value")
	case c.Sensitive && (c.LPL < 0 || c.UPL < 0):
		return malformed(c.ID, "negative protection level")
	}
	return nil
}

// Len returns the number of cells in t.
func (t *Table) Len() int {
	return len(t.Cells)
}

// Index returns the position of the cell with the given ID.
func (t *Table) Index(id int) (int, bool) {
	idx, ok := t.index[id]
	return idx, ok
}

// Terms returns the terms of the i-th relation.
// The returned slice must not be modified.
func (t *Table) Terms(i int) []Term {
	return t.terms[i]
}

// Sides returns the indices of the cells on the positive and negative sides of the i-th relation.
func (t *Table) Sides(i int) (pos, neg []int) {
	for _, term := range t.terms[i] {
		if term.Coef > 0 {
			pos = append(pos, term.Cell)
		} else {
			neg = append(neg, term.Cell)
		}
	}
	return pos, neg
}

// Sensitive returns the indices of the sensitive cells, in table order.
func (t *Table) Sensitive() []int {
	var res []int
	for i, c := range t.Cells {
		if c.Sensitive {
			res = append(res, i)
		}
	}
	return res
}

// Zero is true iff the i-th cell is a structural zero.
func (t *Table) Zero(i int) bool {
	return t.Cells[i].Zero()
}

// NumSensitive returns the number of sensitive cells.
func (t *Table) NumSensitive() int {
	nb := 0
	for _, c := range t.Cells {
		if c.Sensitive {
			nb++
		}
	}
	return nb
}

// NumNonZero returns the number of cells that are not structural zeros.
func (t *Table) NumNonZero() int {
	nb := 0
	for _, c := range t.Cells {
		if !c.Zero() {
			nb++
		}
	}
	return nb
}

// Nominals returns, for each cell, its nominal value as a point interval.
func (t *Table) Nominals() []Interval {
	res := make([]Interval, len(t.Cells))
	for i, c := range t.Cells {
		res[i] = Point(float64(c.Nominal))
	}
	return res
}

// ByProtection returns the indices of the sensitive cells sorted by non-increasing protection level,
// as given by level. Ties keep table order.
func (t *Table) ByProtection(level func(Cell) float64) []int {
	idx := t.Sensitive()
	sort.SliceStable(idx, func(i, j int) bool {
		return level(t.Cells[idx[i]]) > level(t.Cells[idx[j]])
	})
	return idx
}
