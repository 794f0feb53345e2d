package lp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// independentRows returns a maximal subset of linearly independent rows, with their right-hand sides.
// Rows are scanned in order and kept unless they are a linear combination of the rows kept so far.
// A dependent row whose right-hand side is not the same combination of the kept right-hand sides
// makes the system infeasible.
func independentRows(rows [][]float64, rhs []float64, tol float64) ([][]float64, []float64, error) {
	var (
		keptRows [][]float64
		keptRHS  []float64
		basis    [][]float64 // Reduced copy of kept rows, each normalized on its pivot
		basisRHS []float64
		pivots   []int
	)
	for i, row := range rows {
		r := make([]float64, len(row))
		copy(r, row)
		b := rhs[i]
		scale := math.Max(1, floats.Norm(row, math.Inf(1)))
		for k, piv := range pivots {
			if f := r[piv]; f != 0 {
				floats.AddScaled(r, -f, basis[k])
				b -= f * basisRHS[k]
			}
		}
		piv := -1
		best := tol * scale
		for j, v := range r {
			if math.Abs(v) > best {
				piv, best = j, math.Abs(v)
			}
		}
		if piv == -1 {
			if math.Abs(b) > tol*math.Max(scale, math.Abs(rhs[i])) {
				return nil, nil, errors.Wrapf(ErrInfeasible, "row %d is inconsistent with previous rows", i)
			}
			continue
		}
		f := r[piv]
		floats.Scale(1/f, r)
		basis = append(basis, r)
		basisRHS = append(basisRHS, b/f)
		pivots = append(pivots, piv)
		keptRows = append(keptRows, row)
		keptRHS = append(keptRHS, rhs[i])
	}
	return keptRows, keptRHS, nil
}
