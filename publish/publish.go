// Package publish builds the published version of a protected table.
package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/crillab/gophercsp/consistent"
	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/table"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// A Mode describes how suppressed cells are published.
type Mode int

const (
	// Marker publishes suppressed cells as "np".
	Marker Mode = iota
	// Interval publishes the range an attacker can infer for suppressed cells.
	Interval
	// Consistent publishes consistent values with an error for suppressed cells.
	Consistent
)

var modes = []string{"marker", "interval", "consistent"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modes) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modes[m]
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	for i, name := range modes {
		if strings.EqualFold(s, name) {
			*m = Mode(i)
			return nil
		}
	}
	return errors.Errorf("invalid mode %q, expected one of %s", s, strings.Join(modes, ", "))
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

// A Format is a serialization format for records.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

func (f Format) String() string {
	return string(f)
}

// Set implements pflag.Value.
func (f *Format) Set(s string) error {
	switch Format(strings.ToLower(s)) {
	case YAML:
		*f = YAML
	case JSON:
		*f = JSON
	default:
		return errors.Errorf("invalid format %q, expected yaml or json", s)
	}
	return nil
}

// Type implements pflag.Value.
func (f *Format) Type() string {
	return "format"
}

// A Record is the published version of a cell.
type Record struct {
	Cell       int      `json:"cell"`
	Sensitive  bool     `json:"sensitive,omitempty"`
	Suppressed bool     `json:"suppressed"`
	Value      *float64 `json:"value,omitempty"` // Not set for suppressed cells in marker and interval modes.
	Lower      *float64 `json:"lower,omitempty"`
	Upper      *float64 `json:"upper,omitempty"`
	Error      *float64 `json:"error,omitempty"` // Percentage.
	mode       Mode
}

func float(f float64) *float64 {
	return &f
}

// String returns the record as a line of text, where sensitive cells are marked with a star.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d: ", r.Cell)
	switch {
	case !r.Suppressed && r.mode == Consistent:
		fmt.Fprintf(&b, "%8.1f", *r.Value)
	case !r.Suppressed:
		fmt.Fprintf(&b, "%g", *r.Value)
	case r.mode == Marker:
		b.WriteString("np")
	case r.mode == Interval:
		fmt.Fprintf(&b, "[%g, %g]", *r.Lower, *r.Upper)
	default:
		fmt.Fprintf(&b, "%8.1f (+- %1.1f%%)", *r.Value, *r.Error)
	}
	if r.Sensitive {
		b.WriteString(" *")
	}
	return b.String()
}

// Build returns the records of tbl, given a protected pattern and the range of each cell.
// In consistent mode, values are reconstructed with solver.
func Build(tbl *table.Table, pattern []bool, bounds []table.Interval, mode Mode, solver lp.Solver) ([]Record, error) {
	if len(pattern) != tbl.Len() || len(bounds) != tbl.Len() {
		return nil, errors.Errorf("%d cells, but pattern has %d cells and bounds %d", tbl.Len(), len(pattern), len(bounds))
	}
	var values []consistent.Value
	if mode == Consistent {
		var err error
		if values, err = consistent.Reconstruct(tbl, bounds, solver, consistent.DefaultWeights); err != nil {
			return nil, err
		}
	}
	records := make([]Record, tbl.Len())
	for i, c := range tbl.Cells {
		r := Record{Cell: c.ID, Sensitive: c.Sensitive, Suppressed: pattern[i], mode: mode}
		switch {
		case !pattern[i]:
			r.Value = float(float64(c.Nominal))
		case mode == Interval:
			r.Lower, r.Upper = float(bounds[i].Low), float(bounds[i].High)
		case mode == Consistent:
			r.Value, r.Error = float(values[i].Value), float(values[i].Error())
		}
		records[i] = r
	}
	return records, nil
}

// Write writes records to w in the given format.
func Write(w io.Writer, records []Record, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case YAML:
		data, err = yaml.Marshal(records)
	case JSON:
		data, err = json.MarshalIndent(records, "", "  ")
		data = append(data, '\n')
	default:
		return errors.Errorf("invalid format %q", format)
	}
	if err != nil {
		return errors.Wrap(err, "could not encode records")
	}
	_, err = w.Write(data)
	return err
}
