/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

var (
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "apiview",
	Short:        "API review revision lifecycle service",
	Long:         "Manage API reviews, revisions, approvals and the automatic ingest pipeline.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.Wrapf(err, "load env file %s", envFile)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := logging.New(os.Getenv("APIVIEW_LOG_LEVEL"), os.Getenv("APIVIEW_LOG_FORMAT"), rootCmd.ErrOrStderr())
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "apiview"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed",
			slog.String("kind", domainreview.Kind(err)),
			slog.Any("err", errs.Loggable(err)),
		)
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch domainreview.Kind(err) {
	case "":
		return 0
	case "invalid_input":
		return 2
	case "not_found":
		return 3
	case "unauthorized":
		return 4
	case "parse_unsupported":
		return 5
	case "storage_conflict":
		return 6
	case "storage_unavailable":
		return 7
	case "malformed_upload":
		return 8
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: ./configs/config.yaml or ./config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before config")
	rootCmd.PersistentFlags().String("actor", "", "Acting principal (default: $APIVIEW_ACTOR)")
}
