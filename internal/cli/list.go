package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kubev2v/cost-estimator/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

type ListOptions struct {
	GlobalOptions

	Class  string
	Limit  int
	Output string
}

func DefaultListOptions() *ListOptions {
	return &ListOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdList() *cobra.Command {
	o := DefaultListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored estimates, highest first",
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

func (o *ListOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Class, "class", o.Class, "Only list the estimates of this class, e.g. stx-transfer")
	fs.IntVar(&o.Limit, "limit", o.Limit, "Maximum number of rows, 0 for all")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s). Default: table.", strings.Join(legalOutputTypes, ", ")))
}

func (o *ListOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return validateOutput(o.Output)
}

func (o *ListOptions) Run(ctx context.Context, args []string) error {
	estimator, err := o.Estimator()
	if err != nil {
		return err
	}
	defer estimator.Close()

	records, err := estimator.ListEstimates(ctx, o.Class, o.Limit)
	if err != nil {
		return fmt.Errorf("listing estimates: %w", err)
	}

	if o.Output != "" {
		return printOutput(o.out, o.Output, records)
	}
	return printTable(o.out, records)
}

func printTable(out io.Writer, records []service.EstimateRecord) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "CLASS\tDIMENSION\tESTIMATE\tSAMPLES")
	for _, r := range records {
		samples := funk.Map(r.Samples, func(v uint64) string { return fmt.Sprintf("%d", v) }).([]string)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Class, r.Dimension, r.Value, strings.Join(samples, ","))
	}
	return w.Flush()
}
