package table

import (
	"io"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// document is the serialized form of a table.
// JSON documents are valid YAML documents, so both are accepted.
type document struct {
	Cells     []cellDoc     `json:"cells"`
	Relations []relationDoc `json:"relations"`
}

type cellDoc struct {
	ID        int      `json:"id"`
	Nominal   int      `json:"nominal"`
	Weight    *int     `json:"weight,omitempty"`
	Sensitive bool     `json:"sensitive,omitempty"`
	LB        float64  `json:"lb,omitempty"`
	UB        float64  `json:"ub,omitempty"`
	Lower     *float64 `json:"lower,omitempty"` // Absolute lower bound; exclusive with lb.
	Upper     *float64 `json:"upper,omitempty"` // Absolute upper bound; exclusive with ub.
	LPL       float64  `json:"lpl,omitempty"`
	UPL       float64  `json:"upl,omitempty"`
}

type termDoc struct {
	Cell int     `json:"cell"`
	Coef float64 `json:"coef"`
}

type relationDoc struct {
	ID       int       `json:"id"`
	Positive []int     `json:"positive,omitempty"`
	Negative []int     `json:"negative,omitempty"`
	Terms    []termDoc `json:"terms,omitempty"`
}

// Parse reads a table described as a YAML or JSON document.
// Structural problems are reported as a *MalformedError.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read table")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "could not decode table")
	}
	cells := make([]Cell, len(doc.Cells))
	for i, cd := range doc.Cells {
		c, err := cd.cell()
		if err != nil {
			return nil, err
		}
		cells[i] = c
	}
	relations := make([]Relation, len(doc.Relations))
	for i, rd := range doc.Relations {
		r, err := rd.relation()
		if err != nil {
			return nil, err
		}
		relations[i] = r
	}
	return New(cells, relations)
}

func (cd cellDoc) cell() (Cell, error) {
	c := Cell{
		ID:        cd.ID,
		Nominal:   cd.Nominal,
		Weight:    1,
		Sensitive: cd.Sensitive,
		LB:        cd.LB,
		UB:        cd.UB,
		LPL:       cd.LPL,
		UPL:       cd.UPL,
	}
	if cd.Weight != nil {
		c.Weight = *cd.Weight
	}
	nom := float64(cd.Nominal)
	if cd.Lower != nil {
		if cd.LB != 0 {
			return c, malformed(cd.ID, "both lb and lower are given")
		}
		if *cd.Lower > nom {
			return c, malformed(cd.ID, "lower bound above nominal value")
		}
		c.LB = nom - *cd.Lower
	}
	if cd.Upper != nil {
		if cd.UB != 0 {
			return c, malformed(cd.ID, "both ub and upper are given")
		}
		if *cd.Upper < nom {
			return c, malformed(cd.ID, "upper bound below nominal value")
		}
		c.UB = *cd.Upper - nom
	}
	if cd.Lower != nil && cd.Upper != nil && *cd.Lower > *cd.Upper {
		return c, malformed(cd.ID, "lower bound above upper bound")
	}
	return c, nil
}

func (rd relationDoc) relation() (Relation, error) {
	r := Relation{ID: rd.ID, Positive: rd.Positive, Negative: rd.Negative}
	for _, t := range rd.Terms {
		switch t.Coef {
		case 1:
			r.Positive = append(r.Positive, t.Cell)
		case -1:
			r.Negative = append(r.Negative, t.Cell)
		default:
			return r, &MalformedError{Relation: rd.ID, Cell: t.Cell, Reason: "coefficient is not +1 or -1"}
		}
	}
	if len(r.Positive)+len(r.Negative) == 0 {
		return r, &MalformedError{Relation: rd.ID, Reason: "empty relation"}
	}
	return r, nil
}
