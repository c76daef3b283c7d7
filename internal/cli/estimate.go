package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/cost-estimator/pkg/operation"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type EstimateOptions struct {
	GlobalOptions
	OperationOptions

	Output string
}

type estimateOutput struct {
	Class    string            `json:"class"`
	Estimate map[string]uint64 `json:"estimate"`
}

func DefaultEstimateOptions() *EstimateOptions {
	return &EstimateOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        jsonFormat,
	}
}

func NewCmdEstimate() *cobra.Command {
	o := DefaultEstimateOptions()
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print the estimated cost of an operation",
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

func (o *EstimateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	o.OperationOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *EstimateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if err := o.OperationOptions.Validate(); err != nil {
		return err
	}
	return validateOutput(o.Output)
}

func (o *EstimateOptions) Run(ctx context.Context, args []string) error {
	op, err := o.Operation()
	if err != nil {
		return err
	}

	estimator, err := o.Estimator()
	if err != nil {
		return err
	}
	defer estimator.Close()

	estimate, err := estimator.EstimateCost(ctx, op)
	if err != nil {
		return fmt.Errorf("estimating cost: %w", err)
	}

	return printOutput(o.out, o.Output, estimateOutput{
		Class:    operation.Classify(op),
		Estimate: costByName(estimate),
	})
}
