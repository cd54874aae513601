package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"apiview/internal/bootstrap"
	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
	"apiview/internal/usecase/review"
	"apiview/internal/usecase/reviewconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Browse reviews and revisions, approve or close them interactively",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		language, _ := cmd.Flags().GetString("language")
		includeClosed, _ := cmd.Flags().GetBool("all")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		err := reviewconsole.Run(ctx, svc, reviewconsole.ConsoleOptions{
			Actor:           actorFlag(cmd),
			Language:        language,
			IncludeClosed:   includeClosed,
			RefreshInterval: refreshInterval,
		}, tea.WithAltScreen())
		if err != nil {
			return errs.Wrap(err, "run review console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleReviewsCmd)
	consoleReviewsCmd.Flags().String("language", "", "Only show reviews of this language")
	consoleReviewsCmd.Flags().Bool("all", false, "Include closed reviews")
	consoleReviewsCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
