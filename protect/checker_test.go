package protect

import (
	"testing"

	"github.com/crillab/gophercsp/attacker"
	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/master"
	"github.com/crillab/gophercsp/table"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a + b = c, where c is sensitive.
func triple(t *testing.T) (*table.Table, *Checker) {
	cells := []table.Cell{
		{ID: 1, Nominal: 4, Weight: 1, LB: 5, UB: 5},
		{ID: 2, Nominal: 6, Weight: 1, LB: 5, UB: 5},
		{ID: 3, Nominal: 10, Weight: 1, Sensitive: true, LB: 10, UB: 10, LPL: 5, UPL: 5},
	}
	tbl, err := table.New(cells, []table.Relation{{ID: 1, Positive: []int{1, 2}, Negative: []int{3}}})
	require.NoError(t, err)
	return tbl, New(tbl, attacker.New(tbl, lp.Simplex{}), nil)
}

var approx = cmpopts.EquateApprox(0, 1e-6)

func TestCheckUnprotected(t *testing.T) {
	_, c := triple(t)
	c.PushPattern([]bool{false, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	require.Equal(t, 2, nb)
	want := []master.Cut{
		{Cells: []int{0, 1}, Coefs: []float64{5, 5}, RHS: 5},
		{Cells: []int{0, 1}, Coefs: []float64{5, 5}, RHS: 5},
	}
	if diff := cmp.Diff(want, lazy.Cuts(), approx); diff != "" {
		t.Errorf("unexpected cuts (-want +got):\n%s", diff)
	}
	for _, cut := range lazy.Cuts() {
		assert.False(t, cut.Satisfied([]bool{false, false, true}), "cut %v should exclude the pattern", cut)
	}
}

func TestCheckMaxCuts(t *testing.T) {
	_, c := triple(t)
	c.PushPattern([]bool{false, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{MaxCuts: 1, Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 1, nb)
	assert.Equal(t, 1, lazy.Len())
}

func TestCheckProtected(t *testing.T) {
	_, c := triple(t)
	c.PushPattern([]bool{true, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	assert.Zero(t, nb)
	assert.InDelta(t, 15, c.Interval(2).High, 1e-6)
	assert.InDelta(t, 5, c.Interval(2).Low, 1e-6)
	assert.Zero(t, c.Interval(0).Width(), "cell a is not tracked unless in extended mode")

	solves := c.Attacker().Solves()
	nb, err = c.Check(&lazy, Options{})
	require.NoError(t, err)
	assert.Zero(t, nb)
	assert.Equal(t, solves, c.Attacker().Solves(), "HIGH and LOW should prove protection without solving")
}

func TestCheckExtended(t *testing.T) {
	_, c := triple(t)
	c.PushPattern([]bool{true, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true, Extended: true})
	require.NoError(t, err)
	assert.Zero(t, nb)
	want := []table.Interval{{Low: -1, High: 9}, {Low: 6, High: 6}, {Low: 5, High: 15}}
	if diff := cmp.Diff(want, c.Intervals(), approx); diff != "" {
		t.Errorf("unexpected intervals (-want +got):\n%s", diff)
	}
}

func TestCheckFractional(t *testing.T) {
	_, c := triple(t)
	c.Push([]float64{0.5, 0, 1})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	require.Equal(t, 2, nb)
	for _, cut := range lazy.Cuts() {
		assert.Less(t, 0.5*cut.Coefs[0], cut.RHS, "cut %v should exclude the fractional pattern", cut)
	}
}

func TestCheckRefreshTwice(t *testing.T) {
	_, c := triple(t)
	c.PushPattern([]bool{true, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	require.Zero(t, nb)
	first := append([]table.Interval(nil), c.Intervals()...)
	solves := c.Attacker().Solves()
	nb, err = c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	assert.Zero(t, nb)
	assert.Zero(t, lazy.Len())
	assert.Greater(t, c.Attacker().Solves(), solves, "refresh should solve the attacker programs again")
	if diff := cmp.Diff(first, c.Intervals(), approx); diff != "" {
		t.Errorf("intervals changed (-first +second):\n%s", diff)
	}
}

// noisy returns the reduced costs computed by Simplex, slightly offset.
type noisy struct {
	lp.Simplex
	offset float64
}

func (n noisy) Solve(p *lp.Program) (*lp.Solution, error) {
	sol, err := n.Simplex.Solve(p)
	if err != nil {
		return nil, err
	}
	return lp.NewSolution(sol.Value, sol.Primal, func() ([]float64, error) {
		rc, err := sol.ReducedCosts()
		if err != nil {
			return nil, err
		}
		res := make([]float64, len(rc))
		for i, v := range rc {
			res[i] = v + n.offset
		}
		return res, nil
	}), nil
}

func TestCheckNoisyReducedCosts(t *testing.T) {
	tbl, _ := triple(t)
	c := New(tbl, attacker.New(tbl, noisy{offset: 1e-12}), nil)
	c.PushPattern([]bool{false, false, true})
	var lazy master.Lazy
	nb, err := c.Check(&lazy, Options{Refresh: true})
	require.NoError(t, err)
	require.Equal(t, 2, nb)
	for _, cut := range lazy.Cuts() {
		assert.Equal(t, []int{0, 1}, cut.Cells, "near-zero reduced costs should not appear in cut %v", cut)
	}
}
