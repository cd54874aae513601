package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"apiview/internal/bootstrap"
	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/infrastructure/dropwatch"
	"apiview/internal/usecase/review"
)

var automaticCmd = &cobra.Command{
	Use:   "automatic",
	Short: "Automatic review pipeline",
}

var automaticIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest an API descriptor into the automatic review of its package",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path, _ := cmd.Flags().GetString("file")
		label, _ := cmd.Flags().GetString("label")
		analyze, _ := cmd.Flags().GetBool("analyze")
		content, err := readUpload(path)
		if err != nil {
			return err
		}

		result, err := svc.IngestAutomatic(ctx, review.IngestInput{
			Actor:       actorFlag(cmd),
			FileName:    filepath.Base(path),
			Label:       label,
			Content:     content,
			RunAnalysis: analyze,
		})
		if err != nil {
			logging.Error(ctx, "automatic ingest failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "automatic ingest")
		}

		if err := writeIngestResult(cmd, result); err != nil {
			return errs.Wrap(err, "write ingest output")
		}
		return nil
	}),
}

var automaticWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop directory and ingest every descriptor written to it",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *review.Service) error {
		dir, _ := cmd.Flags().GetString("dir")
		if strings.TrimSpace(dir) == "" {
			dir = app.Config.Watch.Dir
		}
		removeDone, _ := cmd.Flags().GetBool("remove")
		actor := actorFlag(cmd)
		if strings.TrimSpace(actor) == "" {
			actor = app.Config.Watch.Actor
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()), slog.String("actor", actor))

		watcher := dropwatch.New(dir, app.Config.Watch.Settle, isDescriptorCandidate)
		return watcher.Run(ctx, func(ctx context.Context, path string) error {
			content, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return errs.Wrapf(err, "read %s", path)
			}

			result, err := svc.IngestAutomatic(ctx, review.IngestInput{
				Actor:    actor,
				FileName: filepath.Base(path),
				Content:  content,
			})
			if errors.Is(err, domainreview.ErrParseUnsupported) {
				logging.Info(ctx, "skip file without parser", slog.String("path", path))
				return nil
			}
			if err != nil {
				return err
			}
			if err := writeIngestResult(cmd, result); err != nil {
				return err
			}
			if removeDone {
				if err := os.Remove(path); err != nil {
					return errs.Wrapf(err, "remove ingested file %s", path)
				}
			}
			return nil
		})
	}),
}

var automaticStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last automatic ingest outcome for a package",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		language, _ := cmd.Flags().GetString("language")
		pkg, _ := cmd.Flags().GetString("package")
		status, ok, err := svc.LastIngest(ctx, language, pkg)
		if err != nil {
			logging.Error(ctx, "read ingest status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read ingest status")
		}

		out := cmd.OutOrStdout()
		if !ok {
			if _, err := fmt.Fprintf(out, "no ingest recorded for %s/%s\n", language, pkg); err != nil {
				return errs.Wrap(err, "write status output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(out, "review=%s revision=%s created_new_revision=%t propagated_from=%s at=%s\n",
			status.ReviewID,
			status.RevisionID,
			status.CreatedNewRevision,
			valueOrDash(status.PropagatedFrom),
			status.At.Format(time.RFC3339),
		); err != nil {
			return errs.Wrap(err, "write status output")
		}
		return nil
	}),
}

func writeIngestResult(cmd *cobra.Command, result review.IngestResult) error {
	last, _ := result.Review.LastRevision()
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "review=%s revision=%s created_review=%t created_new_revision=%t approvers=%s\n",
		result.Review.ReviewID,
		last.RevisionID,
		result.CreatedReview,
		result.CreatedNewRevision,
		valueOrDash(strings.Join(last.Approvers, ",")),
	)
	return err
}

func isDescriptorCandidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml", ".toml", ".json":
		return true
	default:
		return false
	}
}

func init() {
	rootCmd.AddCommand(automaticCmd)
	automaticCmd.AddCommand(automaticIngestCmd)
	automaticCmd.AddCommand(automaticWatchCmd)
	automaticCmd.AddCommand(automaticStatusCmd)

	automaticIngestCmd.Flags().String("file", "", "Path to the API descriptor")
	automaticIngestCmd.Flags().String("label", "", "Label used when a new revision is created")
	automaticIngestCmd.Flags().Bool("analyze", false, "Run descriptor analysis and log findings")
	_ = automaticIngestCmd.MarkFlagRequired("file")

	automaticWatchCmd.Flags().String("dir", "", "Drop directory (default: watch.dir from config)")
	automaticWatchCmd.Flags().Bool("remove", false, "Remove files after a successful ingest")

	automaticStatusCmd.Flags().String("language", "", "Package language")
	automaticStatusCmd.Flags().String("package", "", "Package name")
	_ = automaticStatusCmd.MarkFlagRequired("language")
	_ = automaticStatusCmd.MarkFlagRequired("package")
}
