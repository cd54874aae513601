/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"apiview/internal/bootstrap"
	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
	"apiview/internal/usecase/review"
)

// initDbCmd creates the review store tables.
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or upgrade the review store schema",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tables, err := app.InitSchema(ctx)
		if err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "database: %s (%s)\nobject storage: %s\n", app.Config.Database.DSN, app.Config.Database.Driver, app.Config.Storage.Driver); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		for _, table := range tables {
			if _, err := fmt.Fprintf(out, "  table %s ready\n", table); err != nil {
				return errs.Wrap(err, "write init-db output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
