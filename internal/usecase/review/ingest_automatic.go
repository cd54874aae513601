package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

// IngestStatus is the last automatic ingest outcome for a package, kept in
// the cache for operators.
type IngestStatus struct {
	ReviewID           string    `json:"review_id"`
	RevisionID         string    `json:"revision_id"`
	Language           string    `json:"language"`
	PackageName        string    `json:"package_name"`
	CreatedNewRevision bool      `json:"created_new_revision"`
	PropagatedFrom     string    `json:"propagated_from,omitempty"`
	At                 time.Time `json:"at"`
}

// IngestAutomatic resolves the open automatic review of the uploaded
// package and appends a revision only when the API surface changed.
func (s *Service) IngestAutomatic(ctx context.Context, input IngestInput) (IngestResult, error) {
	if err := s.ready(ctx); err != nil {
		return IngestResult{}, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return IngestResult{}, err
	}
	fileName, err := normalizeUpload(input.FileName, input.Content)
	if err != nil {
		return IngestResult{}, err
	}

	codeFile, err := s.parse(ctx, fileName, input.Content, input.RunAnalysis)
	if err != nil {
		return IngestResult{}, err
	}
	if err := s.authorize(ctx, actor, nil, domainreview.CapabilityAutomaticReviewModifier); err != nil {
		return IngestResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.review"),
		slog.String("op", "ingest_automatic"),
		slog.String("language", codeFile.Language),
		slog.String("package", codeFile.PackageName),
	)
	logCtx = logging.WithActor(logCtx, actor)

	now := s.now()
	reviewID := s.newID()
	fileID := s.newID()
	revision := newRevision(s.newID(), actor, input.Label, now, codeFile.Ref(fileID, true))

	var result IngestResult
	var staged refreshStaging
	err = s.withConflictRetry(ctx, "ingest automatic", func(txCtx context.Context) error {
		result = IngestResult{}
		staged.begin()

		existing, found, err := s.repo.GetAutomaticForPackage(txCtx, codeFile.Language, codeFile.PackageName)
		if err != nil {
			return errs.Wrap(err, "find automatic review")
		}

		var review domainreview.Review
		appended := false
		refreshed := false
		if !found {
			review = domainreview.Review{
				ReviewID:     reviewID,
				Author:       actor,
				Name:         automaticReviewName(codeFile, fileName),
				CreationDate: now,
				IsAutomatic:  true,
				RunAnalysis:  input.RunAnalysis,
				Revisions:    []domainreview.Revision{revision.Clone()},
			}
			appended = true
			result.CreatedReview = true
		} else {
			review = existing.Clone()
			if domainreview.NeedsRefresh(review, s.canUpdate) {
				if err := s.refreshInPlace(txCtx, &review, &staged); err != nil {
					return errs.Wrap(err, "refresh automatic review")
				}
				refreshed = true
			}
			equivalent, err := s.matchesLastRevision(txCtx, review, codeFile, revision.Files[0])
			if err != nil {
				return err
			}
			if !equivalent {
				review.Revisions = append(review.Revisions, revision.Clone())
				appended = true
			}
		}

		if appended {
			if err := s.storeUpload(txCtx, revision.RevisionID, fileID, input.Content, codeFile); err != nil {
				return err
			}
			from, err := s.propagateApproval(txCtx, &review, codeFile)
			if err != nil {
				return err
			}
			result.PropagatedFrom = from
		}

		if appended || refreshed {
			saved, err := s.repo.UpsertReview(txCtx, review)
			if err != nil {
				return errs.Wrap(err, "save review")
			}
			review = saved
		}

		result.Review = review
		result.CreatedNewRevision = appended
		return nil
	})
	s.settleRefreshBestEffort(ctx, result.Review.ReviewID, &staged, err == nil)
	if err != nil {
		return IngestResult{}, err
	}

	last, _ := result.Review.LastRevision()
	if result.CreatedNewRevision {
		s.notifyNewRevisionBestEffort(ctx, result.Review, last, actor)
	}
	s.recordIngestStatus(ctx, IngestStatus{
		ReviewID:           result.Review.ReviewID,
		RevisionID:         last.RevisionID,
		Language:           codeFile.Language,
		PackageName:        codeFile.PackageName,
		CreatedNewRevision: result.CreatedNewRevision,
		PropagatedFrom:     result.PropagatedFrom,
		At:                 now,
	})

	logging.Info(logCtx, "automatic ingest done",
		slog.String("review_id", result.Review.ReviewID),
		slog.Bool("created_review", result.CreatedReview),
		slog.Bool("created_new_revision", result.CreatedNewRevision),
		slog.String("propagated_from", result.PropagatedFrom),
	)
	return result, nil
}

// matchesLastRevision compares the upload against the first file of the
// current revision. Missing parsed content counts as a change.
func (s *Service) matchesLastRevision(ctx context.Context, review domainreview.Review, codeFile domainreview.CodeFile, ref domainreview.ArtifactRef) (bool, error) {
	last, ok := review.LastRevision()
	if !ok || len(last.Files) == 0 {
		return false, nil
	}
	current := last.Files[0]
	if !domainreview.MayBeEquivalent(current, ref) {
		return false, nil
	}

	stored, err := s.codeFiles.Get(ctx, last.RevisionID, current.ReviewFileID)
	if errors.Is(err, domainreview.ErrNotFound) {
		logging.Warn(
			logging.WithReview(logging.WithAttrs(ctx, slog.String("component", "usecase.review")), review.ReviewID, last.RevisionID),
			"code file of current revision missing",
		)
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(err, "load current code file")
	}
	return domainreview.AreEquivalent(stored, codeFile), nil
}

func (s *Service) recordIngestStatus(ctx context.Context, status IngestStatus) {
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	s.setCacheBestEffort(ctx, cacheIngestStatusKey(status.Language, status.PackageName), string(payload))
}

func automaticReviewName(codeFile domainreview.CodeFile, fileName string) string {
	if name := strings.TrimSpace(codeFile.PackageName); name != "" {
		return name
	}
	return fileName
}
