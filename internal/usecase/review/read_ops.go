package review

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

func (s *Service) GetReview(ctx context.Context, reviewID string) (domainreview.Review, error) {
	if err := s.ready(ctx); err != nil {
		return domainreview.Review{}, err
	}
	reviewID, err := normalizeReviewID(reviewID)
	if err != nil {
		return domainreview.Review{}, err
	}
	return s.loadReview(ctx, reviewID)
}

// ListReviews returns open reviews unless IncludeClosed is set. Newest first.
func (s *Service) ListReviews(ctx context.Context, input ListReviewsInput) ([]domainreview.Review, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	filter := ports.ReviewFilter{
		Automatic:   input.Automatic,
		Language:    strings.TrimSpace(input.Language),
		PackageName: strings.TrimSpace(input.PackageName),
	}
	if !input.IncludeClosed {
		open := false
		filter.Closed = &open
	}

	reviews, err := s.repo.ListReviews(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list reviews")
	}
	return reviews, nil
}

// GetRevisionText renders every file of a revision with documentation.
// An empty revisionID selects the current revision.
func (s *Service) GetRevisionText(ctx context.Context, reviewID string, revisionID string) ([]RevisionFileText, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	reviewID, err := normalizeReviewID(reviewID)
	if err != nil {
		return nil, err
	}

	review, err := s.loadReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	var revision domainreview.Revision
	if strings.TrimSpace(revisionID) == "" {
		last, ok := review.LastRevision()
		if !ok {
			return nil, errs.Wrapf(domainreview.ErrRevisionNotFound, "review %s has no revisions", reviewID)
		}
		revision = last
	} else {
		idx := review.RevisionIndex(strings.TrimSpace(revisionID))
		if idx < 0 {
			return nil, errs.Wrapf(domainreview.ErrRevisionNotFound, "revision %s of review %s", revisionID, reviewID)
		}
		revision = review.Revisions[idx]
	}

	out := make([]RevisionFileText, 0, len(revision.Files))
	for _, file := range revision.Files {
		codeFile, err := s.codeFiles.Get(ctx, revision.RevisionID, file.ReviewFileID)
		if err != nil {
			return nil, errs.Wrapf(err, "load code file %s", file.ReviewFileID)
		}
		out = append(out, RevisionFileText{
			File:  file,
			Lines: codeFile.Render(domainreview.RenderOptions{ShowDocumentation: true}),
		})
	}
	return out, nil
}

// LastIngest reads the most recent automatic ingest outcome for a package.
// The status is best-effort: a cache miss or a broken entry reports false.
func (s *Service) LastIngest(ctx context.Context, language string, packageName string) (IngestStatus, bool, error) {
	if err := s.ready(ctx); err != nil {
		return IngestStatus{}, false, err
	}
	if s.cache == nil {
		return IngestStatus{}, false, nil
	}

	raw, found, err := s.cache.Get(ctx, cacheIngestStatusKey(strings.TrimSpace(language), strings.TrimSpace(packageName)))
	if err != nil {
		return IngestStatus{}, false, errs.Wrap(err, "read ingest status")
	}
	if !found {
		return IngestStatus{}, false, nil
	}

	var status IngestStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.review")),
			"ingest status entry is not valid json",
			slog.String("language", language),
			slog.String("package", packageName),
		)
		return IngestStatus{}, false, nil
	}
	return status, true, nil
}
