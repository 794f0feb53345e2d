package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/crillab/gophercsp/benders"
	"github.com/crillab/gophercsp/lp"
	"github.com/crillab/gophercsp/publish"
	"github.com/crillab/gophercsp/table"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type config struct {
	path    string // Options file.
	verbose bool
	metrics bool
	mode    publish.Mode
	output  string
	format  publish.Format
	opts    benders.Options // Values given on the command line.
}

// optionFlags defines on fs the flags setting o. The current values of o are the defaults.
func optionFlags(fs *pflag.FlagSet, o *benders.Options) {
	fs.IntVar(&o.HeuristicCuts, "heuristic-cuts", o.HeuristicCuts, "maximum number of cuts per protection check while diving, no limit if <= 0")
	fs.IntVar(&o.ExactCuts, "exact-cuts", o.ExactCuts, "maximum number of cuts per protection check during the exact search, no limit if <= 0")
	fs.DurationVar(&o.HeuristicTime.Duration, "heuristic-time", o.HeuristicTime.Duration, "time limit of each master search while diving")
	fs.DurationVar(&o.ExactTime.Duration, "exact-time", o.ExactTime.Duration, "time limit of the exact search")
	fs.Float64Var(&o.HeuristicGap, "heuristic-gap", o.HeuristicGap, "relative gap under which master searches stop while diving")
	fs.Float64Var(&o.ExactGap, "exact-gap", o.ExactGap, "relative gap under which the exact search stops")
	fs.Float64Var(&o.Multiplier, "multiplier", o.Multiplier, "growth of the number of suppressed cells between two dives")
	fs.BoolVar(&o.SkipSeeding, "skip-seeding", o.SkipSeeding, "do not seed the master program with static constraints")
	fs.BoolVar(&o.Optimise, "optimise", o.Optimise, "look for an optimal pattern after diving")
	fs.IntVar(&o.MaxDives, "max-dives", o.MaxDives, "maximum number of dives, number of cells + 1 if 0")
	fs.Float64Var(&o.Scale, "scale", o.Scale, "value cuts with real coefficients are normalized to")
}

func newCmd() *cobra.Command {
	cfg := config{opts: benders.DefaultOptions(), format: publish.YAML}
	cmd := &cobra.Command{
		Use:   "gophercsp [flags] table.yaml",
		Short: "Protects the sensitive cells of a statistical table",
		Long: `gophercsp chooses which cells of a table must be suppressed so that the
sensitive cells cannot be inferred within their protection levels, then
prints the published table.

The table is described by a YAML or JSON document listing its cells and
the additive relations between them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New()
			logger.Out = cmd.ErrOrStderr()
			if cfg.verbose {
				logger.SetLevel(log.DebugLevel)
			}
			if err := run(cmd, args[0], cfg, logger); err != nil {
				logger.WithError(err).Error("could not protect table")
				return err
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&cfg.path, "config", "c", "", "YAML or JSON file with the options; flags override its values")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&cfg.metrics, "metrics", false, "log the metrics of the resolution")
	flags.VarP(&cfg.mode, "mode", "m", "publication of suppressed cells: marker, interval or consistent")
	flags.StringVarP(&cfg.output, "output", "o", "", "file the published records are written to")
	flags.Var(&cfg.format, "format", "format of the output file: yaml or json")
	optionFlags(flags, &cfg.opts)
	return cmd
}

// options returns the options of the resolution: the options file, if any, then the flags that were set.
func options(cmd *cobra.Command, path string) (benders.Options, error) {
	opts := benders.DefaultOptions()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return opts, errors.Wrap(err, "could not open options")
		}
		defer f.Close()
		if opts, err = benders.LoadOptions(f); err != nil {
			return opts, errors.Wrapf(err, "invalid options in %q", path)
		}
	}
	fs := pflag.NewFlagSet("options", pflag.ContinueOnError)
	optionFlags(fs, &opts)
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err == nil && fs.Lookup(f.Name) != nil {
			err = fs.Set(f.Name, f.Value.String())
		}
	})
	if err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func run(cmd *cobra.Command, path string, cfg config, logger *log.Logger) error {
	opts, err := options(cmd, cfg.path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "could not open table")
	}
	defer f.Close()
	tbl, err := table.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "could not parse %q", path)
	}
	reg := prometheus.NewRegistry()
	metrics, err := benders.NewMetrics(reg)
	if err != nil {
		return err
	}
	d, err := benders.New(tbl, opts, benders.WithLogger(logger), benders.WithMetrics(metrics))
	if err != nil {
		return err
	}
	sol, err := d.Run(cmd.Context())
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"objective": sol.Objective,
		"status":    sol.Status,
		"dives":     len(sol.Trace),
	}).Info("table protected")
	if cfg.metrics {
		if err := logMetrics(reg, logger); err != nil {
			return err
		}
	}
	records, err := publish.Build(tbl, sol.Pattern, sol.Bounds, cfg.mode, lp.Simplex{})
	if err != nil {
		return errors.Wrap(err, "could not publish table")
	}
	out := cmd.OutOrStdout()
	for _, r := range records {
		fmt.Fprintln(out, r)
	}
	if cfg.output != "" {
		return writeRecords(cfg.output, records, cfg.format)
	}
	return nil
}

func writeRecords(path string, records []publish.Record, format publish.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create output file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return publish.Write(f, records, format)
}

func logMetrics(g prometheus.Gatherer, logger log.FieldLogger) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "could not gather metrics")
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := log.Fields{"metric": mf.GetName()}
			for _, l := range m.GetLabel() {
				fields[l.GetName()] = l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				fields["value"] = m.GetCounter().GetValue()
			case m.GetSummary() != nil:
				fields["count"] = m.GetSummary().GetSampleCount()
				fields["sum"] = m.GetSummary().GetSampleSum()
			}
			logger.WithFields(fields).Info("metric")
		}
	}
	return nil
}
