package cli

import (
	"io"
	"os"
	"time"

	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/kubev2v/cost-estimator/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// GlobalOptions selects the estimate database. Flags default to the
// ESTIMATOR_* environment.
type GlobalOptions struct {
	DbType      string
	DbName      string
	DbHost      string
	DbPort      string
	DbUser      string
	DbPassword  string
	BusyTimeout time.Duration

	LogEstimateError bool

	out io.Writer
}

func DefaultGlobalOptions() GlobalOptions {
	cfg, err := config.New()
	if err != nil {
		cfg = config.NewDefault()
	}
	return GlobalOptions{
		DbType:           cfg.Database.Type,
		DbName:           cfg.Database.Name,
		DbHost:           cfg.Database.Hostname,
		DbPort:           cfg.Database.Port,
		DbUser:           cfg.Database.User,
		DbPassword:       cfg.Database.Password,
		BusyTimeout:      cfg.Database.BusyTimeout,
		LogEstimateError: cfg.Service.LogEstimateError,
		out:              os.Stdout,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.DbType, "db-type", o.DbType, "Database type, sqlite or pgsql")
	fs.StringVarP(&o.DbName, "db", "d", o.DbName, "Path of the sqlite file or name of the postgres database")
	fs.StringVar(&o.DbHost, "db-host", o.DbHost, "Postgres host")
	fs.StringVar(&o.DbPort, "db-port", o.DbPort, "Postgres port")
	fs.StringVar(&o.DbUser, "db-user", o.DbUser, "Postgres user")
	fs.StringVar(&o.DbPassword, "db-password", o.DbPassword, "Postgres password")
	fs.DurationVar(&o.BusyTimeout, "busy-timeout", o.BusyTimeout, "How long to wait for a locked sqlite database")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.out = cmd.OutOrStdout()
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return o.Config().Validate()
}

func (o *GlobalOptions) Config() *config.Config {
	cfg := config.NewDefault()
	cfg.Database.Type = o.DbType
	cfg.Database.Name = o.DbName
	cfg.Database.Hostname = o.DbHost
	cfg.Database.Port = o.DbPort
	cfg.Database.User = o.DbUser
	cfg.Database.Password = o.DbPassword
	cfg.Database.BusyTimeout = o.BusyTimeout
	cfg.Service.LogEstimateError = o.LogEstimateError
	return cfg
}

func (o *GlobalOptions) Estimator() (*service.CostEstimator, error) {
	return service.Open(o.Config())
}
