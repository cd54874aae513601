package artifact

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

const codeFilesPrefix = "codefiles/"

// CodeFileStore keeps parsed code files under codefiles/<revision>/<file>
// with a read-through LRU in front of the object store.
type CodeFileStore struct {
	objects ports.ObjectStore
	codec   Codec
	cache   *lru.Cache[string, domainreview.CodeFile]
}

var _ ports.CodeFileStore = (*CodeFileStore)(nil)

// NewCodeFileStore builds a store; cacheEntries <= 0 disables the cache.
func NewCodeFileStore(objects ports.ObjectStore, codec Codec, cacheEntries int) (*CodeFileStore, error) {
	store := &CodeFileStore{objects: objects, codec: codec}
	if cacheEntries > 0 {
		cache, err := lru.New[string, domainreview.CodeFile](cacheEntries)
		if err != nil {
			return nil, errs.Wrap(err, "create code file cache")
		}
		store.cache = cache
	}
	return store, nil
}

func (s *CodeFileStore) Upsert(ctx context.Context, revisionID string, reviewFileID string, file domainreview.CodeFile) error {
	key, err := codeFileKey(revisionID, reviewFileID)
	if err != nil {
		return err
	}
	payload, err := s.codec.Encode(file)
	if err != nil {
		return err
	}
	if err := s.objects.Put(ctx, key, payload); err != nil {
		return err
	}
	// Drop rather than fill: the write may still roll back with its transaction.
	if s.cache != nil {
		s.cache.Remove(key)
	}
	return nil
}

func (s *CodeFileStore) Get(ctx context.Context, revisionID string, reviewFileID string) (domainreview.CodeFile, error) {
	key, err := codeFileKey(revisionID, reviewFileID)
	if err != nil {
		return domainreview.CodeFile{}, err
	}
	if s.cache != nil {
		if file, ok := s.cache.Get(key); ok {
			return cloneCodeFile(file), nil
		}
	}

	payload, err := s.objects.Get(ctx, key)
	if err != nil {
		return domainreview.CodeFile{}, err
	}
	file, err := s.codec.Decode(payload)
	if err != nil {
		return domainreview.CodeFile{}, errs.Wrapf(err, "decode %s", key)
	}
	// Reads inside a transaction may see writes that never commit.
	if s.cache != nil && !ports.InTx(ctx) {
		s.cache.Add(key, file)
	}
	return cloneCodeFile(file), nil
}

func (s *CodeFileStore) Delete(ctx context.Context, revisionID string, reviewFileID string) error {
	key, err := codeFileKey(revisionID, reviewFileID)
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(key)
	}
	return s.objects.Delete(ctx, key)
}

func codeFileKey(revisionID string, reviewFileID string) (string, error) {
	revisionID = strings.TrimSpace(revisionID)
	reviewFileID = strings.TrimSpace(reviewFileID)
	if revisionID == "" {
		return "", domainreview.ErrRevisionIDRequired
	}
	if reviewFileID == "" {
		return "", errors.New("review file id is required")
	}
	return codeFilesPrefix + revisionID + "/" + reviewFileID, nil
}

func cloneCodeFile(file domainreview.CodeFile) domainreview.CodeFile {
	file.Lines = append([]domainreview.CodeLine(nil), file.Lines...)
	return file
}
