package ports

import (
	"context"

	domainreview "apiview/internal/domain/review"
)

// ObjectStore is a flat key/value byte store backing uploads and parsed files.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// BlobStore keeps raw uploads keyed by review file id.
type BlobStore interface {
	Upload(ctx context.Context, reviewFileID string, content []byte) error
	Get(ctx context.Context, reviewFileID string) ([]byte, error)
	Delete(ctx context.Context, reviewFileID string) error
}

// CodeFileStore keeps parsed content keyed by (revision id, review file id).
type CodeFileStore interface {
	Upsert(ctx context.Context, revisionID string, reviewFileID string, file domainreview.CodeFile) error
	Get(ctx context.Context, revisionID string, reviewFileID string) (domainreview.CodeFile, error)
	Delete(ctx context.Context, revisionID string, reviewFileID string) error
}
