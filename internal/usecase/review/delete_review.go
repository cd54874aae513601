package review

import (
	"context"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

// DeleteReview removes a review document. Stored content of its revisions
// is cleaned up after the delete commits.
func (s *Service) DeleteReview(ctx context.Context, input DeleteReviewInput) error {
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

	var deleted domainreview.Review
	if err := s.withConflictRetry(ctx, "delete review", func(txCtx context.Context) error {
		review, err := s.loadReview(txCtx, reviewID)
		if err != nil {
			return err
		}
		if err := s.authorizeReviewChange(txCtx, actor, review); err != nil {
			return err
		}
		if err := s.repo.DeleteReview(txCtx, review); err != nil {
			return errs.Wrap(err, "delete review")
		}
		deleted = review
		return nil
	}); err != nil {
		return err
	}

	for _, revision := range deleted.Revisions {
		s.purgeRevisionFilesBestEffort(ctx, deleted.ReviewID, revision)
	}
	return nil
}
