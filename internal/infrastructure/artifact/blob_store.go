package artifact

import (
	"context"
	"errors"
	"strings"

	"apiview/internal/ports"
)

const originalsPrefix = "originals/"

// BlobStore keeps raw uploads under originals/<review file id>.
type BlobStore struct {
	objects ports.ObjectStore
}

var _ ports.BlobStore = (*BlobStore)(nil)

func NewBlobStore(objects ports.ObjectStore) *BlobStore {
	return &BlobStore{objects: objects}
}

func (s *BlobStore) Upload(ctx context.Context, reviewFileID string, content []byte) error {
	key, err := originalKey(reviewFileID)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, key, content)
}

func (s *BlobStore) Get(ctx context.Context, reviewFileID string) ([]byte, error) {
	key, err := originalKey(reviewFileID)
	if err != nil {
		return nil, err
	}
	return s.objects.Get(ctx, key)
}

func (s *BlobStore) Delete(ctx context.Context, reviewFileID string) error {
	key, err := originalKey(reviewFileID)
	if err != nil {
		return err
	}
	return s.objects.Delete(ctx, key)
}

func originalKey(reviewFileID string) (string, error) {
	reviewFileID = strings.TrimSpace(reviewFileID)
	if reviewFileID == "" {
		return "", errors.New("review file id is required")
	}
	return originalsPrefix + reviewFileID, nil
}
