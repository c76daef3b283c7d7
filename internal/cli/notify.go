package cli

import (
	"context"
	"fmt"

	"github.com/kubev2v/cost-estimator/pkg/cost"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type NotifyOptions struct {
	GlobalOptions
	OperationOptions

	Cost cost.Vector
}

func DefaultNotifyOptions() *NotifyOptions {
	return &NotifyOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdNotify() *cobra.Command {
	o := DefaultNotifyOptions()
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Record the actual cost of an operation",
		Example: "cost-estimator notify --kind contract-call --contract SP000.pox --function stack-stx " +
			"--runtime 2000 --read-count 3",
		Args: cobra.NoArgs,
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

func (o *NotifyOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	o.OperationOptions.Bind(fs)

	fs.BoolVar(&o.LogEstimateError, "log-estimate-error", o.LogEstimateError, "Log the error of the prior estimate")
	fs.Uint64Var(&o.Cost.Runtime, cost.Runtime.String(), 0, "Observed runtime")
	fs.Uint64Var(&o.Cost.WriteLength, cost.WriteLength.String(), 0, "Observed bytes written")
	fs.Uint64Var(&o.Cost.WriteCount, cost.WriteCount.String(), 0, "Observed number of writes")
	fs.Uint64Var(&o.Cost.ReadLength, cost.ReadLength.String(), 0, "Observed bytes read")
	fs.Uint64Var(&o.Cost.ReadCount, cost.ReadCount.String(), 0, "Observed number of reads")
}

func (o *NotifyOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return o.OperationOptions.Validate()
}

func (o *NotifyOptions) Run(ctx context.Context, args []string) error {
	op, err := o.Operation()
	if err != nil {
		return err
	}

	estimator, err := o.Estimator()
	if err != nil {
		return err
	}
	defer estimator.Close()

	if err := estimator.NotifyEvent(ctx, op, o.Cost); err != nil {
		return fmt.Errorf("recording cost: %w", err)
	}
	return nil
}
