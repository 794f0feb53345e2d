package protect

import (
	"math"

	"github.com/crillab/gophercsp/master"
	"github.com/pkg/errors"
)

// cut derives a cut from the reduced costs of the last attacker solution, when the upper (or lower)
// protection level of a cell, level, is violated.
//
// For an upper level, cells with a positive reduced cost are at their upper bound and could have
// increased the optimum by their UB if suppressed; cells with a negative reduced cost could have
// done so by their LB. Each contribution is capped by level. Roles of UB and LB are swapped for a lower level.
// Structural zeros never appear in a cut.
func (c *Checker) cut(level float64, upper bool) (master.Cut, error) {
	rc, err := c.att.ReducedCosts()
	if err != nil {
		return master.Cut{}, errors.Wrap(err, "could not derive cut")
	}
	res := master.Cut{RHS: level}
	for i, cost := range rc {
		info := c.tbl.Cells[i]
		if math.Abs(cost) <= tol || info.Zero() {
			continue
		}
		var bound float64
		switch {
		case cost > 0 && upper, cost < 0 && !upper:
			bound = info.UB
		default:
			bound = info.LB
		}
		coef := math.Min(math.Abs(cost)*bound, level)
		if coef <= 0 {
			continue
		}
		res.Cells = append(res.Cells, i)
		res.Coefs = append(res.Coefs, coef)
	}
	return res, nil
}
