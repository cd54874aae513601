package review

import (
	"path/filepath"
	"strings"
	"time"

	domainreview "apiview/internal/domain/review"
)

func newRevision(id string, author string, label string, createdAt time.Time, files ...domainreview.ArtifactRef) domainreview.Revision {
	return domainreview.Revision{
		RevisionID:   id,
		Author:       author,
		Label:        strings.TrimSpace(label),
		CreationDate: createdAt,
		Files:        files,
		Approvers:    []string{},
	}
}

func normalizeActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", domainreview.ErrActorRequired
	}
	return actor, nil
}

func normalizeUpload(fileName string, content []byte) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", domainreview.ErrFileNameRequired
	}
	if len(content) == 0 {
		return "", domainreview.ErrEmptyUpload
	}
	return filepath.Base(fileName), nil
}

func normalizeReviewID(reviewID string) (string, error) {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return "", domainreview.ErrReviewIDRequired
	}
	return reviewID, nil
}

func normalizeRevisionID(revisionID string) (string, error) {
	revisionID = strings.TrimSpace(revisionID)
	if revisionID == "" {
		return "", domainreview.ErrRevisionIDRequired
	}
	return revisionID, nil
}

func cacheIngestStatusKey(language string, packageName string) string {
	return "automatic_ingest:" + strings.ToLower(language) + "/" + packageName
}
