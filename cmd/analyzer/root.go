package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	logwriter "github.com/sirupsen/logrus/hooks/writer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cleanup"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cmdutil"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/compare"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/search"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/serve"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/version"
)

// NewRootCmd builds the report-analyzer command tree. Configuration is read
// into v before any subcommand runs.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "report-analyzer",
		Short: "Test report analyzer",
		Long: `Report Analyzer compares HTML test reports, finding the tests failing across them.
It runs as an API server, or as a client uploading reports to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, v)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			cmd.SetContext(cmdutil.WithConfig(cmd.Context(), cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "configuration file (default report-analyzer.yaml in the working or user config directory)")
	rootCmd.PersistentFlags().String("log-level", "info", "logging level")
	rootCmd.PersistentFlags().String("log-file", "report-analyzer.log", "file receiving a copy of the logs, empty to disable")
	cmdutil.BindFlag(rootCmd, "log-level", "log.level")
	cmdutil.BindFlag(rootCmd, "log-file", "log.file")

	rootCmd.AddCommand(serve.NewCmdServe())
	rootCmd.AddCommand(compare.NewCmdCompare())
	rootCmd.AddCommand(search.NewCmdSearch())
	rootCmd.AddCommand(cleanup.NewCmdCleanup())
	rootCmd.AddCommand(version.NewCmdVersion())

	return rootCmd
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	// stdout carries the command output
	log.SetOutput(os.Stderr)

	if cfg.File == "" {
		return nil
	}
	fdLog, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		log.Errorf("error opening file %s: %v", cfg.File, err)
		return nil
	}
	log.AddHook(&logwriter.Hook{
		Writer: fdLog,
		LogLevels: []log.Level{
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
			log.InfoLevel,
			log.DebugLevel,
		},
	})
	return nil
}

// Execute runs the command tree until it completes or the process is
// interrupted. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(viper.GetViper()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
