package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"apiview/internal/bootstrap"
	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
	"apiview/internal/usecase/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage manual API reviews and their revisions",
}

var reviewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a review from an API descriptor file",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		label, _ := cmd.Flags().GetString("label")
		analyze, _ := cmd.Flags().GetBool("analyze")
		content, err := readUpload(path)
		if err != nil {
			return err
		}

		created, err := svc.CreateReview(ctx, review.CreateReviewInput{
			Actor:       actorFlag(cmd),
			Name:        name,
			Label:       label,
			FileName:    filepath.Base(path),
			Content:     content,
			RunAnalysis: analyze,
		})
		if err != nil {
			logging.Error(ctx, "create review failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create review")
		}

		last, _ := created.LastRevision()
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created review: %s revision=%s\n", created.ReviewID, last.RevisionID); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var reviewAddRevisionCmd = &cobra.Command{
	Use:   "add-revision",
	Short: "Upload a new revision into an existing review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		path, _ := cmd.Flags().GetString("file")
		label, _ := cmd.Flags().GetString("label")
		content, err := readUpload(path)
		if err != nil {
			return err
		}

		updated, err := svc.AddRevision(ctx, review.AddRevisionInput{
			Actor:    actorFlag(cmd),
			ReviewID: reviewID,
			FileName: filepath.Base(path),
			Label:    label,
			Content:  content,
		})
		if err != nil {
			logging.Error(ctx, "add revision failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add revision")
		}

		last, _ := updated.LastRevision()
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added revision: %s review=%s revisions=%d\n", last.RevisionID, updated.ReviewID, len(updated.Revisions)); err != nil {
			return errs.Wrap(err, "write add-revision output")
		}
		return nil
	}),
}

var reviewDeleteRevisionCmd = &cobra.Command{
	Use:   "delete-revision",
	Short: "Delete a revision (the last remaining revision is kept)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		revisionID, _ := cmd.Flags().GetString("revision")
		if err := svc.DeleteRevision(ctx, review.DeleteRevisionInput{
			Actor:      actorFlag(cmd),
			ReviewID:   reviewID,
			RevisionID: revisionID,
		}); err != nil {
			logging.Error(ctx, "delete revision failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete revision")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "delete revision done: %s review=%s\n", revisionID, reviewID); err != nil {
			return errs.Wrap(err, "write delete-revision output")
		}
		return nil
	}),
}

var reviewLabelCmd = &cobra.Command{
	Use:   "label",
	Short: "Set the label of a revision",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		revisionID, _ := cmd.Flags().GetString("revision")
		label, _ := cmd.Flags().GetString("label")
		if err := svc.UpdateRevisionLabel(ctx, review.UpdateRevisionLabelInput{
			Actor:      actorFlag(cmd),
			ReviewID:   reviewID,
			RevisionID: revisionID,
			Label:      label,
		}); err != nil {
			logging.Error(ctx, "update revision label failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update revision label")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "labeled revision: %s label=%q\n", revisionID, label); err != nil {
			return errs.Wrap(err, "write label output")
		}
		return nil
	}),
}

var reviewCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Toggle the closed state of a review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		closed, err := svc.ToggleClosed(ctx, review.ToggleClosedInput{Actor: actorFlag(cmd), ReviewID: reviewID})
		if err != nil {
			logging.Error(ctx, "toggle closed failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "toggle closed")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "review %s closed=%t\n", reviewID, closed); err != nil {
			return errs.Wrap(err, "write close output")
		}
		return nil
	}),
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Toggle the actor's approval of a revision",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		revisionID, _ := cmd.Flags().GetString("revision")
		approved, err := svc.ToggleApproval(ctx, review.ToggleApprovalInput{
			Actor:      actorFlag(cmd),
			ReviewID:   reviewID,
			RevisionID: revisionID,
		})
		if err != nil {
			logging.Error(ctx, "toggle approval failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "toggle approval")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "revision %s approved=%t\n", revisionID, approved); err != nil {
			return errs.Wrap(err, "write approve output")
		}
		return nil
	}),
}

var reviewRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-parse the stored originals of a review with current parsers",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		refreshed, err := svc.Refresh(ctx, review.RefreshInput{Actor: actorFlag(cmd), ReviewID: reviewID})
		if err != nil {
			logging.Error(ctx, "refresh review failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "refresh review")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "refreshed review: %s revisions=%d\n", refreshed.ReviewID, len(refreshed.Revisions)); err != nil {
			return errs.Wrap(err, "write refresh output")
		}
		return nil
	}),
}

var reviewRefreshStaleCmd = &cobra.Command{
	Use:   "refresh-stale",
	Short: "Refresh every review produced by an outdated parser version",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		language, _ := cmd.Flags().GetString("language")
		result, err := svc.RefreshStale(ctx, review.RefreshStaleInput{Actor: actorFlag(cmd), Language: language})
		out := cmd.OutOrStdout()
		for _, id := range result.Refreshed {
			if _, werr := fmt.Fprintf(out, "refreshed review: %s\n", id); werr != nil {
				return errs.Wrap(werr, "write refresh-stale output")
			}
		}
		if _, werr := fmt.Fprintf(out, "refreshed=%d skipped=%d\n", len(result.Refreshed), result.Skipped); werr != nil {
			return errs.Wrap(werr, "write refresh-stale output")
		}
		if err != nil {
			logging.Error(ctx, "refresh stale reviews failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "refresh stale reviews")
		}
		return nil
	}),
}

var reviewDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a review and its stored content",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		if err := svc.DeleteReview(ctx, review.DeleteReviewInput{Actor: actorFlag(cmd), ReviewID: reviewID}); err != nil {
			logging.Error(ctx, "delete review failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete review")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted review: %s\n", reviewID); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviews",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		includeClosed, _ := cmd.Flags().GetBool("all")
		kind, _ := cmd.Flags().GetString("kind")
		language, _ := cmd.Flags().GetString("language")
		pkg, _ := cmd.Flags().GetString("package")

		automatic, err := parseReviewKind(kind)
		if err != nil {
			return err
		}
		reviews, err := svc.ListReviews(ctx, review.ListReviewsInput{
			IncludeClosed: includeClosed,
			Automatic:     automatic,
			Language:      language,
			PackageName:   pkg,
		})
		if err != nil {
			logging.Error(ctx, "list reviews failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list reviews")
		}

		if err := writeReviewTable(cmd.OutOrStdout(), reviews); err != nil {
			return errs.Wrap(err, "write list output")
		}
		return nil
	}),
}

var reviewShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a review and the rendered text of one revision",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reviewID, _ := cmd.Flags().GetString("review")
		revisionID, _ := cmd.Flags().GetString("revision")
		item, err := svc.GetReview(ctx, reviewID)
		if err != nil {
			logging.Error(ctx, "get review failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get review")
		}
		texts, err := svc.GetRevisionText(ctx, reviewID, revisionID)
		if err != nil {
			logging.Error(ctx, "get revision text failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get revision text")
		}

		if err := writeReviewDetail(cmd.OutOrStdout(), item, texts); err != nil {
			return errs.Wrap(err, "write show output")
		}
		return nil
	}),
}

func readUpload(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read upload %s", path)
	}
	return content, nil
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewCreateCmd)
	reviewCmd.AddCommand(reviewAddRevisionCmd)
	reviewCmd.AddCommand(reviewDeleteRevisionCmd)
	reviewCmd.AddCommand(reviewLabelCmd)
	reviewCmd.AddCommand(reviewCloseCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRefreshCmd)
	reviewCmd.AddCommand(reviewRefreshStaleCmd)
	reviewCmd.AddCommand(reviewDeleteCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewShowCmd)

	reviewCreateCmd.Flags().String("file", "", "Path to the API descriptor (.yaml, .yml, .toml, .json)")
	reviewCreateCmd.Flags().String("name", "", "Review name (default: file name)")
	reviewCreateCmd.Flags().String("label", "", "Label of the first revision")
	reviewCreateCmd.Flags().Bool("analyze", false, "Run descriptor analysis and log findings")
	_ = reviewCreateCmd.MarkFlagRequired("file")

	reviewAddRevisionCmd.Flags().String("review", "", "Review id")
	reviewAddRevisionCmd.Flags().String("file", "", "Path to the API descriptor")
	reviewAddRevisionCmd.Flags().String("label", "", "Revision label")
	_ = reviewAddRevisionCmd.MarkFlagRequired("review")
	_ = reviewAddRevisionCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{reviewDeleteRevisionCmd, reviewLabelCmd, reviewApproveCmd} {
		c.Flags().String("review", "", "Review id")
		c.Flags().String("revision", "", "Revision id")
		_ = c.MarkFlagRequired("review")
		_ = c.MarkFlagRequired("revision")
	}
	reviewLabelCmd.Flags().String("label", "", "New label")

	for _, c := range []*cobra.Command{reviewCloseCmd, reviewRefreshCmd, reviewDeleteCmd} {
		c.Flags().String("review", "", "Review id")
		_ = c.MarkFlagRequired("review")
	}

	reviewRefreshStaleCmd.Flags().String("language", "", "Only refresh reviews of this language")

	reviewListCmd.Flags().Bool("all", false, "Include closed reviews")
	reviewListCmd.Flags().String("kind", "", "Review kind filter (manual|automatic)")
	reviewListCmd.Flags().String("language", "", "Language filter")
	reviewListCmd.Flags().String("package", "", "Package filter")

	reviewShowCmd.Flags().String("review", "", "Review id")
	reviewShowCmd.Flags().String("revision", "", "Revision id (default: current revision)")
	_ = reviewShowCmd.MarkFlagRequired("review")
}
