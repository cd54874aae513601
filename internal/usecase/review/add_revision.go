package review

import (
	"context"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

// AddRevision appends a revision built from the upload. Owners may add to
// manual reviews; automatic reviews only accept the pipeline.
func (s *Service) AddRevision(ctx context.Context, input AddRevisionInput) (domainreview.Review, error) {
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
	fileName, err := normalizeUpload(input.FileName, input.Content)
	if err != nil {
		return domainreview.Review{}, err
	}

	current, err := s.loadReview(ctx, reviewID)
	if err != nil {
		return domainreview.Review{}, err
	}
	if err := s.authorizeReviewChange(ctx, actor, current); err != nil {
		return domainreview.Review{}, err
	}

	codeFile, err := s.parse(ctx, fileName, input.Content, current.RunAnalysis)
	if err != nil {
		return domainreview.Review{}, err
	}

	fileID := s.newID()
	revision := newRevision(s.newID(), actor, input.Label, s.now(), codeFile.Ref(fileID, true))

	var stored domainreview.Review
	if err := s.withConflictRetry(ctx, "add revision", func(txCtx context.Context) error {
		review, err := s.loadReview(txCtx, reviewID)
		if err != nil {
			return err
		}
		review = review.Clone()
		review.Revisions = append(review.Revisions, revision)

		if err := s.storeUpload(txCtx, revision.RevisionID, fileID, input.Content, codeFile); err != nil {
			return err
		}
		saved, err := s.repo.UpsertReview(txCtx, review)
		if err != nil {
			return errs.Wrap(err, "save review")
		}
		stored = saved
		return nil
	}); err != nil {
		return domainreview.Review{}, err
	}

	s.notifyNewRevisionBestEffort(ctx, stored, revision, actor)
	return stored, nil
}
