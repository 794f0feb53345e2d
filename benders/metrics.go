package benders

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// PhaseLabel is the label identifying the phase of a resolution.
	PhaseLabel = "phase"

	phaseHeuristic = "heuristic"
	phaseExact     = "exact"
	phaseRedundant = "redundancy"
)

// Metrics are the prometheus metrics updated by a Driver.
type Metrics struct {
	MasterSolves   *prometheus.CounterVec
	AttackerSolves *prometheus.CounterVec
	Cuts           *prometheus.CounterVec
	Redundant      prometheus.Counter
	Duration       *prometheus.SummaryVec
}

// NewMetrics returns a new set of metrics, registered on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		MasterSolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csp_master_solves_total",
				Help: "Number of calls to the PB solver of the master program",
			},
			[]string{PhaseLabel},
		),
		AttackerSolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csp_attacker_solves_total",
				Help: "Number of attacker programs solved",
			},
			[]string{PhaseLabel},
		),
		Cuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csp_cuts_total",
				Help: "Number of protection cuts derived",
			},
			[]string{PhaseLabel},
		),
		Redundant: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "csp_redundant_suppressions_total",
				Help: "Number of suppressions removed because they did not contribute to protection",
			},
		),
		Duration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "csp_phase_duration_seconds",
				Help:       "The duration of a resolution phase",
				Objectives: map[float64]float64{0.95: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{PhaseLabel},
		),
	}
	for _, c := range []prometheus.Collector{m.MasterSolves, m.AttackerSolves, m.Cuts, m.Redundant, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
