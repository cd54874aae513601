package review

import (
	"context"
	"log/slog"
	"strings"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

// DeleteRevision removes a revision. Deleting the only revision of a review
// is a silent no-op.
func (s *Service) DeleteRevision(ctx context.Context, input DeleteRevisionInput) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return err
	}
	reviewID, err := normalizeReviewID(input.ReviewID)
	if err != nil {
		return err
	}
	revisionID, err := normalizeRevisionID(input.RevisionID)
	if err != nil {
		return err
	}

	var removed domainreview.Revision
	if err := s.withConflictRetry(ctx, "delete revision", func(txCtx context.Context) error {
		removed = domainreview.Revision{}

		review, idx, err := s.loadRevision(txCtx, reviewID, revisionID)
		if err != nil {
			return err
		}
		if err := s.authorize(txCtx, actor, review.Revisions[idx], domainreview.CapabilityRevisionOwner); err != nil {
			return err
		}
		if !domainreview.CanDeleteRevision(review) {
			return nil
		}

		review = review.Clone()
		target := review.Revisions[idx]
		review.Revisions = append(review.Revisions[:idx], review.Revisions[idx+1:]...)
		if _, err := s.repo.UpsertReview(txCtx, review); err != nil {
			return errs.Wrap(err, "save review")
		}
		removed = target
		return nil
	}); err != nil {
		return err
	}

	s.purgeRevisionFilesBestEffort(ctx, reviewID, removed)
	return nil
}

// UpdateRevisionLabel replaces the label of one revision.
func (s *Service) UpdateRevisionLabel(ctx context.Context, input UpdateRevisionLabelInput) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return err
	}
	reviewID, err := normalizeReviewID(input.ReviewID)
	if err != nil {
		return err
	}
	revisionID, err := normalizeRevisionID(input.RevisionID)
	if err != nil {
		return err
	}
	label := strings.TrimSpace(input.Label)

	return s.withConflictRetry(ctx, "update revision label", func(txCtx context.Context) error {
		review, idx, err := s.loadRevision(txCtx, reviewID, revisionID)
		if err != nil {
			return err
		}
		if err := s.authorize(txCtx, actor, review.Revisions[idx], domainreview.CapabilityRevisionOwner); err != nil {
			return err
		}

		review = review.Clone()
		review.Revisions[idx].Label = label
		if _, err := s.repo.UpsertReview(txCtx, review); err != nil {
			return errs.Wrap(err, "save review")
		}
		return nil
	})
}

// ToggleClosed flips IsClosed and returns the new value.
func (s *Service) ToggleClosed(ctx context.Context, input ToggleClosedInput) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return false, err
	}
	reviewID, err := normalizeReviewID(input.ReviewID)
	if err != nil {
		return false, err
	}

	var closed bool
	if err := s.withConflictRetry(ctx, "toggle closed", func(txCtx context.Context) error {
		review, err := s.loadReview(txCtx, reviewID)
		if err != nil {
			return err
		}
		if err := s.authorize(txCtx, actor, review, domainreview.CapabilityReviewOwner); err != nil {
			return err
		}

		review = review.Clone()
		review.IsClosed = !review.IsClosed
		if _, err := s.repo.UpsertReview(txCtx, review); err != nil {
			return errs.Wrap(err, "save review")
		}
		closed = review.IsClosed
		return nil
	}); err != nil {
		return false, err
	}
	return closed, nil
}

// ToggleApproval adds the actor to the revision's approvers or removes them.
// It returns whether the actor approves the revision afterwards.
func (s *Service) ToggleApproval(ctx context.Context, input ToggleApprovalInput) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return false, err
	}
	reviewID, err := normalizeReviewID(input.ReviewID)
	if err != nil {
		return false, err
	}
	revisionID, err := normalizeRevisionID(input.RevisionID)
	if err != nil {
		return false, err
	}

	var approved bool
	if err := s.withConflictRetry(ctx, "toggle approval", func(txCtx context.Context) error {
		review, idx, err := s.loadRevision(txCtx, reviewID, revisionID)
		if err != nil {
			return err
		}
		if err := s.authorize(txCtx, actor, review.Revisions[idx], domainreview.CapabilityApprover); err != nil {
			return err
		}

		review = review.Clone()
		review.Revisions[idx].Approvers, approved = domainreview.ToggleApprover(review.Revisions[idx].Approvers, actor)
		if _, err := s.repo.UpsertReview(txCtx, review); err != nil {
			return errs.Wrap(err, "save review")
		}
		return nil
	}); err != nil {
		return false, err
	}
	return approved, nil
}

func (s *Service) loadRevision(ctx context.Context, reviewID string, revisionID string) (domainreview.Review, int, error) {
	review, err := s.loadReview(ctx, reviewID)
	if err != nil {
		return domainreview.Review{}, -1, err
	}
	idx := review.RevisionIndex(revisionID)
	if idx < 0 {
		return domainreview.Review{}, -1, errs.Wrapf(domainreview.ErrRevisionNotFound, "revision %s of review %s", revisionID, reviewID)
	}
	return review, idx, nil
}

// purgeRevisionFilesBestEffort drops stored content of a revision that is no
// longer referenced. Failures only leave unreachable objects behind.
func (s *Service) purgeRevisionFilesBestEffort(ctx context.Context, reviewID string, revision domainreview.Revision) {
	s.purgeFilesBestEffort(ctx, reviewID, revision.RevisionID, revision.Files...)
}

func (s *Service) purgeFilesBestEffort(ctx context.Context, reviewID string, revisionID string, files ...domainreview.ArtifactRef) {
	if revisionID == "" {
		return
	}
	logCtx := logging.WithReview(logging.WithAttrs(ctx, slog.String("component", "usecase.review")), reviewID, revisionID)
	for _, file := range files {
		if err := s.codeFiles.Delete(ctx, revisionID, file.ReviewFileID); err != nil {
			logging.Warn(logCtx, "delete code file failed", slog.String("file_id", file.ReviewFileID), slog.Any("err", errs.Loggable(err)))
		}
		if !file.HasOriginal {
			continue
		}
		if err := s.blobs.Delete(ctx, file.ReviewFileID); err != nil {
			logging.Warn(logCtx, "delete original failed", slog.String("file_id", file.ReviewFileID), slog.Any("err", errs.Loggable(err)))
		}
	}
}
