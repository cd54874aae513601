package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

// Refresh re-parses every file that still has its original upload with the
// parser registered for it today.
func (s *Service) Refresh(ctx context.Context, input RefreshInput) (domainreview.Review, error) {
	if err := s.ready(ctx); err != nil {
		return domainreview.Review{}, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return domainreview.Review{}, err
	}
	reviewID, err := normalizeReviewID(input.ReviewID)
	if err != nil {
		return domainreview.Review{}, err
	}

	var stored domainreview.Review
	var staged refreshStaging
	err = s.withConflictRetry(ctx, "refresh", func(txCtx context.Context) error {
		staged.begin()
		review, err := s.loadReview(txCtx, reviewID)
		if err != nil {
			return err
		}
		if err := s.authorizeReviewChange(txCtx, actor, review); err != nil {
			return err
		}

		review = review.Clone()
		if err := s.refreshInPlace(txCtx, &review, &staged); err != nil {
			return err
		}
		saved, err := s.repo.UpsertReview(txCtx, review)
		if err != nil {
			return errs.Wrap(err, "save review")
		}
		stored = saved
		return nil
	})
	s.settleRefreshBestEffort(ctx, reviewID, &staged, err == nil)
	if err != nil {
		return domainreview.Review{}, err
	}
	return stored, nil
}

// RefreshStale refreshes every review holding a file that its parser would
// render differently today. Each review is refreshed on its own; failures are
// collected and do not stop the sweep.
func (s *Service) RefreshStale(ctx context.Context, input RefreshStaleInput) (RefreshStaleResult, error) {
	if err := s.ready(ctx); err != nil {
		return RefreshStaleResult{}, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return RefreshStaleResult{}, err
	}

	reviews, err := s.repo.ListReviews(ctx, ports.ReviewFilter{Language: strings.TrimSpace(input.Language)})
	if err != nil {
		return RefreshStaleResult{}, errs.Wrap(err, "list reviews")
	}

	logCtx := logging.WithActor(logging.WithAttrs(ctx, slog.String("component", "usecase.review"), slog.String("op", "refresh_stale")), actor)
	result := RefreshStaleResult{Refreshed: []string{}}
	var failures []error
	for _, review := range reviews {
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(err, "check context")
		}
		if !domainreview.NeedsRefresh(review, s.canUpdate) {
			result.Skipped++
			continue
		}
		if _, err := s.Refresh(ctx, RefreshInput{Actor: actor, ReviewID: review.ReviewID}); err != nil {
			logging.Warn(logging.WithReview(logCtx, review.ReviewID, ""), "refresh review failed", slog.Any("err", errs.Loggable(err)))
			failures = append(failures, fmt.Errorf("review %s: %w", review.ReviewID, err))
			continue
		}
		result.Refreshed = append(result.Refreshed, review.ReviewID)
	}

	logging.Info(logCtx, "stale reviews refreshed",
		slog.Int("refreshed", len(result.Refreshed)),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", len(failures)),
	)
	return result, errors.Join(failures...)
}

func (s *Service) canUpdate(ref domainreview.ArtifactRef) bool {
	parser, ok := s.parsers.Resolve(ref.Name, ref.Language)
	if !ok {
		return false
	}
	return parser.CanUpdate(ref.VersionString)
}

// refreshedFile pairs a replaced ref with the ref written in its place.
type refreshedFile struct {
	revisionID string
	previous   domainreview.ArtifactRef
	current    domainreview.ArtifactRef
}

// refreshStaging tracks content written by refresh attempts. Only the files
// of the last attempt may become referenced; everything else is garbage once
// the operation settles.
type refreshStaging struct {
	abandoned []refreshedFile
	attempt   []refreshedFile
}

func (r *refreshStaging) begin() {
	r.abandoned = append(r.abandoned, r.attempt...)
	r.attempt = nil
}

func (r *refreshStaging) add(file refreshedFile) {
	r.attempt = append(r.attempt, file)
}

// refreshInPlace re-parses the originals of every revision and writes the
// result under fresh review file ids, so stored content of the current refs
// is never overwritten. Files without an original keep their stored content.
func (s *Service) refreshInPlace(ctx context.Context, review *domainreview.Review, staged *refreshStaging) error {
	for i := range review.Revisions {
		revision := &review.Revisions[i]
		for j := range revision.Files {
			file := &revision.Files[j]
			if !file.HasOriginal {
				continue
			}
			parser, ok := s.parsers.Resolve(file.Name, file.Language)
			if !ok {
				return fmt.Errorf("%w: %s (%s)", domainreview.ErrParseUnsupported, file.Name, file.Language)
			}
			content, err := s.blobs.Get(ctx, file.ReviewFileID)
			if err != nil {
				return errs.Wrapf(err, "load original %s", file.ReviewFileID)
			}
			codeFile, err := parser.Parse(ctx, file.Name, content, review.RunAnalysis)
			if err != nil {
				return errs.Wrapf(err, "parse %s with %s", file.Name, parser.Name())
			}

			next := codeFile.Ref(s.newID(), true)
			staged.add(refreshedFile{revisionID: revision.RevisionID, previous: *file, current: next})
			if err := s.storeUpload(ctx, revision.RevisionID, next.ReviewFileID, content, codeFile); err != nil {
				return err
			}
			*file = next
		}
	}
	return nil
}

// settleRefreshBestEffort removes content no document references once a
// refresh is over: files of abandoned attempts always, and the replaced files
// when the last attempt committed.
func (s *Service) settleRefreshBestEffort(ctx context.Context, reviewID string, staged *refreshStaging, committed bool) {
	if !committed {
		staged.begin()
	}
	for _, file := range staged.abandoned {
		s.purgeFilesBestEffort(ctx, reviewID, file.revisionID, file.current)
	}
	if !committed {
		return
	}
	for _, file := range staged.attempt {
		s.purgeFilesBestEffort(ctx, reviewID, file.revisionID, file.previous)
	}
}
