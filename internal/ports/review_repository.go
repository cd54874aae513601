package ports

import (
	"context"
	"fmt"

	domainreview "apiview/internal/domain/review"
)

var (
	ErrReviewNotFound = fmt.Errorf("review %w", domainreview.ErrNotFound)
	ErrObjectNotFound = fmt.Errorf("object %w", domainreview.ErrNotFound)
)

// ReviewFilter narrows ListReviews. Nil pointers mean "any".
type ReviewFilter struct {
	Closed      *bool
	Automatic   *bool
	Language    string
	PackageName string
}

type ReviewReadRepository interface {
	GetReview(ctx context.Context, reviewID string) (domainreview.Review, error)
	ListReviews(ctx context.Context, filter ReviewFilter) ([]domainreview.Review, error)
	// GetAutomaticForPackage returns the open automatic review for the pair, if any.
	GetAutomaticForPackage(ctx context.Context, language string, packageName string) (domainreview.Review, bool, error)
}

// ReviewRepository stores review documents. UpsertReview is conditional on
// the ETag the review was read at and fails with ErrStorageConflict when the
// stored version moved on.
type ReviewRepository interface {
	ReviewReadRepository
	UpsertReview(ctx context.Context, review domainreview.Review) (domainreview.Review, error)
	DeleteReview(ctx context.Context, review domainreview.Review) error
}
