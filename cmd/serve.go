package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/server"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Starts the HTTP API that accepts audit submissions and runs each audit in
the background. SIGINT or SIGTERM stops intake and drains in-flight audits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgFile, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, err := server.Build(cmd.Context(), &cfg, logger)
			if err != nil {
				logger.Error("failed to build application", zap.Error(err))
				return fmt.Errorf("build application: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}
}
