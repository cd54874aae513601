package ports

import (
	"context"
	"time"
)

// Cache keeps small derived values next to the review store, such as the
// outcome of the last automatic ingest of a package. Entries are advisory:
// losing one never changes a review. A zero ttl keeps the entry until it is
// overwritten or deleted.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
