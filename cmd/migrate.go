package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	pgstore "github.com/JakeFAU/site-audit/internal/storage/postgres"
)

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  `Applies pending schema migrations to the database named by db.dsn. Only the database settings are required.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgFile, false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.DB.DSN == "" {
				return errors.New("db.dsn is required")
			}
			if err := pgstore.NewMigrator(cfg.DB.DSN, logger).Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
			return nil
		},
	}
}
