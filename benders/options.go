package benders

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// A Duration is a time.Duration that is serialized as a string such as "1m30s".
// Plain numbers are read as seconds.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", val)
		}
		d.Duration = dur
	default:
		return errors.Errorf("invalid duration %s", data)
	}
	return nil
}

// Options drive a resolution.
type Options struct {
	HeuristicCuts int      `json:"heuristicCuts"` // Maximum number of cuts per check during diving; no limit if <= 0.
	ExactCuts     int      `json:"exactCuts"`     // Maximum number of cuts per check during the exact search; no limit if <= 0.
	HeuristicTime Duration `json:"heuristicTime"` // Time limit of each master solve during diving.
	ExactTime     Duration `json:"exactTime"`     // Time limit of the exact search.
	HeuristicGap  float64  `json:"heuristicGap"`
	ExactGap      float64  `json:"exactGap"`
	Multiplier    float64  `json:"multiplier"` // Growth of the number of suppressed cells between two dives.
	SkipSeeding   bool     `json:"skipSeeding"`
	Optimise      bool     `json:"optimise"` // Run the exact search after the diving heuristic.
	MaxDives      int      `json:"maxDives"` // Number of cells + 1 if 0.
	Scale         float64  `json:"scale"`    // Normalization of cuts with real coefficients in the master program.
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		HeuristicCuts: 50,
		ExactCuts:     50,
		HeuristicTime: Duration{time.Second},
		ExactTime:     Duration{10 * time.Minute},
		Multiplier:    1,
		Scale:         1000,
	}
}

// Validate checks the options are consistent.
func (o Options) Validate() error {
	switch {
	case o.Multiplier <= 0:
		return errors.Errorf("multiplier must be positive, got %g", o.Multiplier)
	case o.HeuristicGap < 0 || o.ExactGap < 0:
		return errors.New("gaps must not be negative")
	case o.HeuristicTime.Duration < 0 || o.ExactTime.Duration < 0:
		return errors.New("time limits must not be negative")
	case o.MaxDives < 0:
		return errors.Errorf("maximum number of dives must not be negative, got %d", o.MaxDives)
	case o.Scale < 0:
		return errors.Errorf("scale must not be negative, got %g", o.Scale)
	}
	return nil
}

// LoadOptions reads options from a YAML or JSON document.
// Options that are not specified keep their default value.
func LoadOptions(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	data, err := io.ReadAll(r)
	if err != nil {
		return opts, errors.Wrap(err, "could not read options")
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Wrap(err, "could not decode options")
	}
	return opts, opts.Validate()
}
