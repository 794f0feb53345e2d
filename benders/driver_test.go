package benders

import (
	"context"
	"testing"
	"time"

	"github.com/crillab/gophercsp/master"
	"github.com/crillab/gophercsp/table"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a + b = c, where c is sensitive, and d = e.
func sample(t *testing.T) *table.Table {
	cells := []table.Cell{
		{ID: 1, Nominal: 4, Weight: 1, LB: 5, UB: 5},
		{ID: 2, Nominal: 6, Weight: 1, LB: 5, UB: 5},
		{ID: 3, Nominal: 10, Weight: 1, Sensitive: true, LB: 10, UB: 10, LPL: 5, UPL: 5},
		{ID: 4, Nominal: 3, Weight: 1, LB: 3, UB: 3},
		{ID: 5, Nominal: 3, Weight: 1, LB: 3, UB: 3},
	}
	relations := []table.Relation{
		{ID: 1, Positive: []int{1, 2}, Negative: []int{3}},
		{ID: 2, Positive: []int{4}, Negative: []int{5}},
	}
	tbl, err := table.New(cells, relations)
	require.NoError(t, err)
	return tbl
}

func driver(t *testing.T, tbl *table.Table, opts Options, options ...Option) *Driver {
	d, err := New(tbl, opts, options...)
	require.NoError(t, err)
	return d
}

func protected(t *testing.T, tbl *table.Table, pattern []bool) {
	d := driver(t, tbl, DefaultOptions())
	_, _, err := d.RemoveRedundant(pattern)
	require.NoError(t, err, "pattern %v should protect all sensitive cells", pattern)
}

func TestRunSeeded(t *testing.T) {
	tbl := sample(t)
	sol, err := driver(t, tbl, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sol.Objective)
	assert.Equal(t, master.Summary{Primary: 1, Secondary: 1, Unsuppressed: 3}, sol.Summary)
	assert.Len(t, sol.Trace, 1)
	assert.True(t, sol.Pattern[2])
	assert.False(t, sol.Pattern[3] || sol.Pattern[4], "cells d and e do not protect c")
	protected(t, tbl, sol.Pattern)
}

func TestDiveUnseeded(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipSeeding = true
	d := driver(t, sample(t), opts)
	pattern, trace, err := d.Dive(context.Background())
	require.NoError(t, err)
	want := []Step{
		{Suppressed: 1, Floor: 0, Cuts: 2},
		{Suppressed: 2, Floor: 1, Cuts: 0},
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Errorf("unexpected trace (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, count(pattern))
	assert.True(t, pattern[0] || pattern[1])
}

func TestDiveMonotonic(t *testing.T) {
	// Two sensitive cells in a 2x2 table with margins.
	//   x11 + x12 = r1, x21 + x22 = r2, x11 + x21 = c1, x12 + x22 = c2, r1 + r2 = t, c1 + c2 = t
	cells := []table.Cell{
		{ID: 11, Nominal: 5, Weight: 1, Sensitive: true, LB: 5, UB: 5, LPL: 2, UPL: 2},
		{ID: 12, Nominal: 7, Weight: 1, LB: 7, UB: 7},
		{ID: 21, Nominal: 3, Weight: 1, LB: 3, UB: 3},
		{ID: 22, Nominal: 9, Weight: 1, Sensitive: true, LB: 9, UB: 9, LPL: 3, UPL: 3},
		{ID: 1, Nominal: 12, Weight: 1, LB: 12, UB: 12},
		{ID: 2, Nominal: 12, Weight: 1, LB: 12, UB: 12},
		{ID: 3, Nominal: 8, Weight: 1, LB: 8, UB: 8},
		{ID: 4, Nominal: 16, Weight: 1, LB: 16, UB: 16},
		{ID: 5, Nominal: 24, Weight: 1, LB: 24, UB: 24},
	}
	relations := []table.Relation{
		{ID: 1, Positive: []int{11, 12}, Negative: []int{1}},
		{ID: 2, Positive: []int{21, 22}, Negative: []int{2}},
		{ID: 3, Positive: []int{11, 21}, Negative: []int{3}},
		{ID: 4, Positive: []int{12, 22}, Negative: []int{4}},
		{ID: 5, Positive: []int{1, 2}, Negative: []int{5}},
		{ID: 6, Positive: []int{3, 4}, Negative: []int{5}},
	}
	tbl, err := table.New(cells, relations)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.SkipSeeding = true
	opts.HeuristicCuts = 1
	d := driver(t, tbl, opts)
	pattern, trace, err := d.Dive(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, trace)
	for i := 1; i < len(trace); i++ {
		assert.Greater(t, trace[i].Suppressed, trace[i-1].Suppressed, "suppressed cells should grow: %v", trace)
		assert.GreaterOrEqual(t, trace[i].Floor, trace[i-1].Floor, "floor should not decrease: %v", trace)
		assert.GreaterOrEqual(t, trace[i].Suppressed, trace[i].Floor)
	}
	assert.Zero(t, trace[len(trace)-1].Cuts)
	assert.True(t, pattern[0] && pattern[3])
	protected(t, tbl, pattern)
	assert.Zero(t, d.Master().Floor(), "floor should be cleared after diving")
}

func TestDiveLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipSeeding = true
	opts.MaxDives = 1
	_, trace, err := driver(t, sample(t), opts).Dive(context.Background())
	assert.True(t, errors.Is(err, ErrDiveLimit), "expected ErrDiveLimit, got %v", err)
	assert.Len(t, trace, 1)
}

func TestCoSensitiveProtection(t *testing.T) {
	cells := []table.Cell{
		{ID: 1, Nominal: 4, Weight: 1, LB: 5, UB: 5},
		{ID: 2, Nominal: 6, Weight: 1, Sensitive: true, LB: 6, UB: 6, LPL: 2, UPL: 2},
		{ID: 3, Nominal: 10, Weight: 1, Sensitive: true, LB: 10, UB: 10, LPL: 2, UPL: 2},
	}
	tbl, err := table.New(cells, []table.Relation{{ID: 1, Positive: []int{1, 2}, Negative: []int{3}}})
	require.NoError(t, err)
	d := driver(t, tbl, DefaultOptions())
	assert.Zero(t, d.Master().NbSeeds())
	sol, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, sol.Pattern)
	assert.Equal(t, 2, sol.Objective)
}

func TestRemoveRedundant(t *testing.T) {
	tbl := sample(t)
	d := driver(t, tbl, DefaultOptions())
	pattern, bounds, err := d.RemoveRedundant([]bool{true, false, true, true, false})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false, false}, pattern)
	assert.InDelta(t, 15, bounds[2].High, 1e-6)
	assert.InDelta(t, 5, bounds[2].Low, 1e-6)
	assert.InDelta(t, 0, bounds[3].Width(), 1e-6)

	_, _, err = d.RemoveRedundant([]bool{false, false, true, false, false})
	assert.True(t, errors.Is(err, ErrUnprotected), "expected ErrUnprotected, got %v", err)
}

func TestExact(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipSeeding = true
	d := driver(t, sample(t), opts)
	res, err := d.Exact(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, master.Optimal, res.Status)
	assert.Equal(t, 2, res.Objective)
	assert.True(t, res.Lazy > 0)
	assert.Zero(t, d.Master().NbCuts(), "exact search should only add lazy cuts")
}

func TestRunOptimise(t *testing.T) {
	opts := DefaultOptions()
	opts.Optimise = true
	opts.ExactTime = Duration{time.Minute}
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	tbl := sample(t)
	sol, err := driver(t, tbl, opts, WithMetrics(m)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, master.Optimal, sol.Status)
	assert.Equal(t, 2, sol.Objective)
	protected(t, tbl, sol.Pattern)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Cuts.WithLabelValues(phaseHeuristic)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Cuts.WithLabelValues(phaseExact)))
	assert.True(t, testutil.ToFloat64(m.MasterSolves.WithLabelValues(phaseExact)) >= 1)
	assert.True(t, testutil.ToFloat64(m.AttackerSolves.WithLabelValues(phaseRedundant)) >= 2)
}

func TestMetrics(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipSeeding = true
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err, "metrics cannot be registered twice")
	_, _, err = driver(t, sample(t), opts, WithMetrics(m)).Dive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cuts.WithLabelValues(phaseHeuristic)))
	assert.True(t, testutil.ToFloat64(m.MasterSolves.WithLabelValues(phaseHeuristic)) >= 2, "each dive solves the master program")
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver(t, sample(t), DefaultOptions()).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}
