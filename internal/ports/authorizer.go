package ports

import (
	"context"

	domainreview "apiview/internal/domain/review"
)

//go:generate mockgen -source=authorizer.go -destination=mocks/mock_authorizer.go -package=mocks

type Authorizer interface {
	Authorize(ctx context.Context, principal string, target domainreview.Owned, capability domainreview.Capability) (bool, error)
}
