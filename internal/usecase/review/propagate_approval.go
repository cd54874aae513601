package review

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

type approvalCandidate struct {
	reviewID string
	revision domainreview.Revision
}

// propagateApproval copies approvers onto the last revision of an automatic
// review from an approved manual revision with the same API surface. It
// returns the revision the approvers came from, or "" when none matched.
func (s *Service) propagateApproval(ctx context.Context, review *domainreview.Review, current domainreview.CodeFile) (string, error) {
	if len(review.Revisions) == 0 {
		return "", nil
	}
	last := &review.Revisions[len(review.Revisions)-1]
	if last.IsApproved() || len(last.Files) == 0 {
		return "", nil
	}
	target := last.Files[0]

	candidates, err := s.approvalCandidates(ctx, target)
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		ref := candidate.revision.Files[0]
		if !domainreview.MayBeEquivalent(ref, target) {
			continue
		}
		codeFile, err := s.codeFiles.Get(ctx, candidate.revision.RevisionID, ref.ReviewFileID)
		if errors.Is(err, domainreview.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", errs.Wrapf(err, "load code file of revision %s", candidate.revision.RevisionID)
		}
		if !domainreview.AreEquivalent(codeFile, current) {
			continue
		}

		last.Approvers = domainreview.MergeApprovers(nil, candidate.revision.Approvers)
		logging.Info(
			logging.WithReview(logging.WithAttrs(ctx, slog.String("component", "usecase.review")), review.ReviewID, last.RevisionID),
			"approval propagated",
			slog.String("source_review_id", candidate.reviewID),
			slog.String("source_revision_id", candidate.revision.RevisionID),
		)
		return candidate.revision.RevisionID, nil
	}
	return "", nil
}

// approvalCandidates picks, per manual review of the same package, its most
// recent approved revision. Newest candidates come first, then by review id.
func (s *Service) approvalCandidates(ctx context.Context, target domainreview.ArtifactRef) ([]approvalCandidate, error) {
	manual := false
	reviews, err := s.repo.ListReviews(ctx, ports.ReviewFilter{
		Automatic:   &manual,
		Language:    target.Language,
		PackageName: target.PackageName,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list manual reviews")
	}

	candidates := make([]approvalCandidate, 0, len(reviews))
	for _, review := range reviews {
		for i := len(review.Revisions) - 1; i >= 0; i-- {
			revision := review.Revisions[i]
			if !revision.IsApproved() {
				continue
			}
			if len(revision.Files) > 0 && samePackage(revision.Files[0], target) {
				candidates = append(candidates, approvalCandidate{reviewID: review.ReviewID, revision: revision})
			}
			break
		}
	}

	slices.SortStableFunc(candidates, func(a, b approvalCandidate) int {
		if c := b.revision.CreationDate.Compare(a.revision.CreationDate); c != 0 {
			return c
		}
		return strings.Compare(a.reviewID, b.reviewID)
	})
	return candidates, nil
}

func samePackage(a, b domainreview.ArtifactRef) bool {
	return strings.EqualFold(a.Language, b.Language) && a.PackageName == b.PackageName
}
