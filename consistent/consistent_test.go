package consistent

import (
	"testing"

	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/table"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a + b = c
func triple(t *testing.T, sensitive bool) *table.Table {
	cells := []table.Cell{
		{ID: 1, Nominal: 2, Weight: 1, LB: 5, UB: 5},
		{ID: 2, Nominal: 1, Weight: 1, LB: 1, UB: 1},
		{ID: 3, Nominal: 3, Weight: 1, LB: 3, UB: 3},
	}
	if sensitive {
		cells[2].Sensitive = true
		cells[2].UPL = 1
	}
	tbl, err := table.New(cells, []table.Relation{{ID: 1, Positive: []int{1, 2}, Negative: []int{3}}})
	require.NoError(t, err)
	return tbl
}

var approx = cmpopts.EquateApprox(0, 1e-6)

func TestReconstructSensitiveMoves(t *testing.T) {
	bounds := []table.Interval{{Low: 1, High: 9}, {Low: 6, High: 6}, {Low: 5, High: 15}}
	values, err := Reconstruct(triple(t, true), bounds, lp.Simplex{}, DefaultWeights)
	require.NoError(t, err)
	want := []Value{{Value: 5, HalfWidth: 4}, {Value: 6, HalfWidth: 0}, {Value: 11, HalfWidth: 6}}
	if diff := cmp.Diff(want, values, approx); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
	assert.InDelta(t, values[0].Value+values[1].Value, values[2].Value, 1e-6)
}

func TestReconstructZeroLowerEnd(t *testing.T) {
	bounds := []table.Interval{{Low: 0, High: 10}, {Low: 0, High: 2}, {Low: 3, High: 3}}
	values, err := Reconstruct(triple(t, false), bounds, lp.Simplex{}, DefaultWeights)
	require.NoError(t, err)
	want := []Value{{Value: 2, HalfWidth: 8}, {Value: 1, HalfWidth: 1}, {Value: 3, HalfWidth: 0}}
	if diff := cmp.Diff(want, values, approx); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestReconstructPoints(t *testing.T) {
	tbl := triple(t, false)
	values, err := Reconstruct(tbl, tbl.Nominals(), lp.Simplex{}, DefaultWeights)
	require.NoError(t, err)
	for i, v := range values {
		assert.InDelta(t, float64(tbl.Cells[i].Nominal), v.Value, 1e-9)
		assert.Zero(t, v.HalfWidth)
	}
}

func TestReconstructErrors(t *testing.T) {
	tbl := triple(t, false)
	_, err := Reconstruct(tbl, tbl.Nominals()[:2], lp.Simplex{}, DefaultWeights)
	assert.Error(t, err)
	_, err = Reconstruct(tbl, []table.Interval{{Low: 2, High: 2}, {Low: 1, High: 1}, {Low: 4, High: 4}}, lp.Simplex{}, DefaultWeights)
	assert.Error(t, err, "inconsistent points cannot be reconciled")
}

func TestValueError(t *testing.T) {
	assert.InDelta(t, 50, Value{Value: 12, HalfWidth: 6}.Error(), 1e-9)
	assert.Zero(t, Value{HalfWidth: 3}.Error())
}
