package ports

import (
	"context"

	domainreview "apiview/internal/domain/review"
)

//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks

// Notifier delivers subscription and new-revision events. Calls happen after
// the review document is committed.
type Notifier interface {
	Subscribe(ctx context.Context, review domainreview.Review, principal string) error
	NotifyNewRevision(ctx context.Context, review domainreview.Review, revision domainreview.Revision, author string) error
}
