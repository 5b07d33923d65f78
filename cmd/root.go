// Package cmd defines and implements the CLI commands for the auditd executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/config"
	"github.com/JakeFAU/site-audit/internal/logging"
)

// newLogger is the logger factory. Tests replace it to keep output quiet.
var newLogger = logging.New

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "auditd",
		Short: "Website audit service",
		Long: `auditd accepts website audit requests, collects the site with a headless
browser, measures performance, checks online presence, writes a narrative
report with a language model and emails the finished PDF.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with the AUDIT_ prefix override it)")

	cmd.AddCommand(newServeCmd(&cfgFile))
	cmd.AddCommand(newMigrateCmd(&cfgFile))
	cmd.AddCommand(newRunCmd(&cfgFile))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// setup reads configuration, validating it when strict is set, and builds the logger.
func setup(path string, strict bool) (config.Config, *zap.Logger, error) {
	read := config.Read
	if strict {
		read = config.Load
	}
	cfg, err := read(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
