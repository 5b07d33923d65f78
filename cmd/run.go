package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/server"
)

type runFlags struct {
	name    string
	email   string
	phone   string
	website string
	source  string
}

func newRunCmd(cfgFile *string) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one audit in the foreground",
		Long: `Runs a single audit to completion without starting the HTTP API and prints
the final record as JSON. The exit status is non-zero when the audit fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := audit.NewRequest(audit.RawRequest{
				Name:    f.name,
				Email:   f.email,
				Phone:   f.phone,
				Website: f.website,
				Source:  f.source,
			})
			if err != nil {
				return err
			}

			cfg, logger, err := setup(*cfgFile, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, err := server.Build(cmd.Context(), &cfg, logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer app.Close()

			id, runErr := app.Orchestrator().Audit(cmd.Context(), req)
			if id == "" {
				return errors.Join(errors.New("audit record was not created"), runErr)
			}
			rec, err := app.Records().Get(cmd.Context(), id)
			if err != nil {
				logger.Warn("failed to load audit record", zap.String("audit_id", id), zap.Error(err))
				return errors.Join(err, runErr)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("print record: %w", err)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "requester name")
	cmd.Flags().StringVar(&f.email, "email", "", "requester email")
	cmd.Flags().StringVar(&f.phone, "phone", "", "requester phone")
	cmd.Flags().StringVar(&f.website, "website", "", "website to audit")
	cmd.Flags().StringVar(&f.source, "source", "", "submission source tag (default "+audit.DefaultSource+")")
	return cmd
}
