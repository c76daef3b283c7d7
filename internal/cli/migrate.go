package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type MigrateOptions struct {
	GlobalOptions
}

func DefaultMigrateOptions() *MigrateOptions {
	return &MigrateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdMigrate() *cobra.Command {
	o := DefaultMigrateOptions()
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the estimate database if it does not exist",
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

func (o *MigrateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *MigrateOptions) Run(ctx context.Context, args []string) error {
	zap.S().Named("cli").Infow("migrating estimate database", "type", o.DbType, "db", o.DbName)

	estimator, err := o.Estimator()
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	defer estimator.Close()

	zap.S().Named("cli").Info("estimate database migrated")
	return nil
}
