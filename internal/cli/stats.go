package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/kubev2v/cost-estimator/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StatsOptions struct {
	GlobalOptions
}

func DefaultStatsOptions() *StatsOptions {
	return &StatsOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStats() *cobra.Command {
	o := DefaultStatsOptions()
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print estimate database statistics in the prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *StatsOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *StatsOptions) Run(ctx context.Context, args []string) error {
	estimator, err := o.Estimator()
	if err != nil {
		return err
	}
	defer estimator.Close()

	reg := prometheus.NewRegistry()
	if err := metrics.RegisterEstimateCollector(reg, estimator.Store()); err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}
	return writeMetrics(o.out, reg)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
