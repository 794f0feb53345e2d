package lp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-6

// sum builds the program x0 = x1 + x2 with the given bounds.
func sum(sense Sense, lower, upper []float64) *Program {
	return &Program{
		Sense:     sense,
		Objective: []float64{1, 0, 0},
		Lower:     lower,
		Upper:     upper,
		Rows:      []Row{{Cols: []int{0, 1, 2}, Coefs: []float64{1, -1, -1}}},
	}
}

func TestSimplexMaximize(t *testing.T) {
	sol, err := Simplex{}.Solve(sum(Maximize, []float64{0, 0, 1}, []float64{10, 3, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 5, sol.Value, eps)
	assert.InDeltaSlice(t, []float64{5, 3, 2}, sol.Primal, eps)
	rc, err := sol.ReducedCosts()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 1}, rc, eps)
}

func TestSimplexMinimize(t *testing.T) {
	sol, err := Simplex{}.Solve(sum(Minimize, []float64{0, 0, 1}, []float64{10, 3, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.Value, eps)
	assert.InDeltaSlice(t, []float64{1, 0, 1}, sol.Primal, eps)
	rc, err := sol.ReducedCosts()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 1}, rc, eps)
}

func TestSimplexFixedColumns(t *testing.T) {
	sol, err := Simplex{}.Solve(sum(Maximize, []float64{0, 2, 1}, []float64{10, 2, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 4, sol.Value, eps)
	assert.InDeltaSlice(t, []float64{4, 2, 2}, sol.Primal, eps)
}

func TestSimplexAllFixed(t *testing.T) {
	sol, err := Simplex{}.Solve(sum(Maximize, []float64{3, 1, 2}, []float64{3, 1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 3, sol.Value, eps)
	_, err = Simplex{}.Solve(sum(Maximize, []float64{4, 1, 2}, []float64{4, 1, 2}))
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexDependentRows(t *testing.T) {
	p := sum(Maximize, []float64{0, 0, 1}, []float64{10, 3, 2})
	p.Rows = append(p.Rows, p.Rows[0], Row{Cols: []int{0, 1, 2}, Coefs: []float64{-2, 2, 2}})
	sol, err := Simplex{}.Solve(p)
	require.NoError(t, err)
	assert.InDelta(t, 5, sol.Value, eps)
	rc, err := sol.ReducedCosts()
	require.NoError(t, err)
	assert.InDelta(t, 0, rc[0], eps)
	assert.True(t, rc[1] > 0 && rc[2] > 0, "unexpected reduced costs %v", rc)
}

func TestSimplexSquare(t *testing.T) {
	p := &Program{
		Sense:     Minimize,
		Objective: []float64{1, 0},
		Lower:     []float64{0, 0},
		Upper:     []float64{5, 5},
		Rows: []Row{
			{Cols: []int{0, 1}, Coefs: []float64{1, 1}, RHS: 3},
			{Cols: []int{0, 1}, Coefs: []float64{1, -1}, RHS: 1},
		},
	}
	sol, err := Simplex{}.Solve(p)
	require.NoError(t, err)
	assert.InDelta(t, 2, sol.Value, eps)
	assert.InDeltaSlice(t, []float64{2, 1}, sol.Primal, eps)
	p.Upper[1] = 0.5
	_, err = Simplex{}.Solve(p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexInfeasible(t *testing.T) {
	p := &Program{
		Objective: []float64{1, 0},
		Lower:     []float64{0, 5},
		Upper:     []float64{1, 6},
		Rows:      []Row{{Cols: []int{0, 1}, Coefs: []float64{1, -1}}},
	}
	_, err := Simplex{}.Solve(p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexInvalid(t *testing.T) {
	p := sum(Maximize, []float64{0, 0, 0}, []float64{math.Inf(1), 1, 1})
	_, err := Simplex{}.Solve(p)
	assert.ErrorIs(t, err, ErrInfiniteBound)
	p = sum(Maximize, []float64{0, 0}, []float64{1, 1})
	_, err = Simplex{}.Solve(p)
	assert.Error(t, err)
	p = sum(Maximize, []float64{0, 0, 0}, []float64{1, 1, 1})
	p.Rows[0].Cols[2] = 7
	_, err = Simplex{}.Solve(p)
	assert.Error(t, err)
}

func TestIndependentRows(t *testing.T) {
	rows := [][]float64{{1, 1, 0}, {0, 1, 1}, {1, 2, 1}, {0, 0, 0}}
	kept, rhs, err := independentRows(rows, []float64{1, 2, 3, 0}, eps)
	require.NoError(t, err)
	assert.Len(t, kept, 2)
	assert.Equal(t, []float64{1, 2}, rhs)
	_, _, err = independentRows(rows, []float64{1, 2, 4, 0}, eps)
	assert.ErrorIs(t, err, ErrInfeasible)
}
