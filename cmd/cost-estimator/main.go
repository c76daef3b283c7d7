package main

import (
	"os"

	"github.com/kubev2v/cost-estimator/internal/cli"
	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/kubev2v/cost-estimator/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	command := NewCostEstimatorCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCostEstimatorCommand() *cobra.Command {
	logLevel := config.NewDefault().Service.LogLevel
	if cfg, err := config.New(); err == nil {
		logLevel = cfg.Service.LogLevel
	}

	var undo func()
	var logger *zap.Logger

	cmd := &cobra.Command{
		Use:   "cost-estimator [flags] [options]",
		Short: "cost-estimator records operation costs and estimates them pessimistically.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = log.InitLog(log.ParseLevel(logLevel))
			undo = zap.ReplaceGlobals(logger)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
			undo()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level: debug, info, warn or error")

	cmd.AddCommand(cli.NewCmdMigrate())
	cmd.AddCommand(cli.NewCmdNotify())
	cmd.AddCommand(cli.NewCmdEstimate())
	cmd.AddCommand(cli.NewCmdList())
	cmd.AddCommand(cli.NewCmdStats())

	return cmd
}
