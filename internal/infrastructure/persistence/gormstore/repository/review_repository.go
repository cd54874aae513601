package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/infrastructure/persistence/gormstore/model"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
	"apiview/internal/ports"
)

// Fixed width so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type ReviewRepository struct {
	db *gorm.DB
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) GetReview(ctx context.Context, reviewID string) (domainreview.Review, error) {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return domainreview.Review{}, err
	}

	var row model.Review
	if err := db.Where("review_id = ?", strings.TrimSpace(reviewID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainreview.Review{}, ports.ErrReviewNotFound
		}
		return domainreview.Review{}, unavailable(err, "query review")
	}
	return mapReview(row), nil
}

func (r *ReviewRepository) ListReviews(ctx context.Context, filter ports.ReviewFilter) ([]domainreview.Review, error) {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Review{})
	if filter.Closed != nil {
		query = query.Where("is_closed = ?", *filter.Closed)
	}
	if filter.Automatic != nil {
		query = query.Where("is_automatic = ?", *filter.Automatic)
	}
	if language := languageKey(filter.Language); language != "" {
		query = query.Where("language = ?", language)
	}
	if packageName := strings.TrimSpace(filter.PackageName); packageName != "" {
		query = query.Where("package_name = ?", packageName)
	}

	var rows []model.Review
	if err := query.Order("created_at desc").Order("review_id asc").Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query reviews")
	}

	items := make([]domainreview.Review, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapReview(row))
	}
	return items, nil
}

func (r *ReviewRepository) GetAutomaticForPackage(ctx context.Context, language string, packageName string) (domainreview.Review, bool, error) {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return domainreview.Review{}, false, err
	}

	var rows []model.Review
	if err := db.
		Where("is_automatic = ? AND is_closed = ?", true, false).
		Where("language = ? AND package_name = ?", languageKey(language), packageName).
		Order("created_at asc").
		Order("review_id asc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return domainreview.Review{}, false, unavailable(err, "query automatic review")
	}
	if len(rows) == 0 {
		return domainreview.Review{}, false, nil
	}
	return mapReview(rows[0]), true, nil
}

// UpsertReview inserts a review with ETag zero and otherwise updates it only
// if the stored etag still equals review.ETag. The returned review carries
// the new ETag.
func (r *ReviewRepository) UpsertReview(ctx context.Context, review domainreview.Review) (domainreview.Review, error) {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return domainreview.Review{}, err
	}

	reviewID := strings.TrimSpace(review.ReviewID)
	if reviewID == "" {
		return domainreview.Review{}, domainreview.ErrReviewIDRequired
	}

	review = domainreview.NormalizeLegacy(review)
	row := toModel(review)
	now := time.Now().UTC().Format(timeLayout)
	row.UpdatedAt = now

	if review.ETag == 0 {
		var existing int64
		if err := db.Model(&model.Review{}).Where("review_id = ?", reviewID).Count(&existing).Error; err != nil {
			return domainreview.Review{}, unavailable(err, "check review existence")
		}
		if existing > 0 {
			return domainreview.Review{}, errs.Wrapf(domainreview.ErrStorageConflict, "review %s already exists", reviewID)
		}

		row.ETag = 1
		if err := db.Create(&row).Error; err != nil {
			return domainreview.Review{}, unavailable(err, "insert review")
		}
		review.ETag = row.ETag
		return review, nil
	}

	next := review.ETag + 1
	result := db.Model(&model.Review{}).
		Where("review_id = ? AND etag = ?", reviewID, review.ETag).
		Updates(map[string]any{
			"author":       row.Author,
			"name":         row.Name,
			"language":     row.Language,
			"package_name": row.PackageName,
			"is_closed":    row.IsClosed,
			"is_automatic": row.IsAutomatic,
			"run_analysis": row.RunAnalysis,
			"revisions":    row.Revisions,
			"files":        row.Files,
			"etag":         next,
			"updated_at":   row.UpdatedAt,
		})
	if result.Error != nil {
		return domainreview.Review{}, unavailable(result.Error, "update review")
	}
	if result.RowsAffected == 0 {
		return domainreview.Review{}, errs.Wrapf(domainreview.ErrStorageConflict, "review %s changed since etag %d", reviewID, review.ETag)
	}

	review.ETag = next
	return review, nil
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, review domainreview.Review) error {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	query := db.Where("review_id = ?", review.ReviewID)
	if review.ETag != 0 {
		query = query.Where("etag = ?", review.ETag)
	}
	result := query.Delete(&model.Review{})
	if result.Error != nil {
		return unavailable(result.Error, "delete review")
	}
	if result.RowsAffected == 0 {
		if review.ETag != 0 {
			return errs.Wrapf(domainreview.ErrStorageConflict, "review %s changed since etag %d", review.ReviewID, review.ETag)
		}
		return ports.ErrReviewNotFound
	}
	return nil
}

func unavailable(err error, msg string) error {
	return errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), msg)
}

func mapReview(row model.Review) domainreview.Review {
	revDocs := row.Revisions.Data()
	revisions := make([]domainreview.Revision, 0, len(revDocs))
	for _, doc := range revDocs {
		revisions = append(revisions, domainreview.Revision{
			RevisionID:   doc.RevisionID,
			Author:       doc.Author,
			Label:        doc.Label,
			CreationDate: doc.CreationDate.UTC(),
			Files:        mapFiles(doc.Files),
			Approvers:    append([]string(nil), doc.Approvers...),
		})
	}

	created, _ := time.Parse(timeLayout, row.CreatedAt)
	return domainreview.NormalizeLegacy(domainreview.Review{
		ReviewID:     row.ReviewID,
		Author:       row.Author,
		Name:         row.Name,
		CreationDate: created,
		IsClosed:     row.IsClosed,
		IsAutomatic:  row.IsAutomatic,
		RunAnalysis:  row.RunAnalysis,
		Revisions:    revisions,
		ETag:         row.ETag,
		LegacyFiles:  mapFiles(row.Files),
	})
}

func mapFiles(docs []model.FileDocument) []domainreview.ArtifactRef {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domainreview.ArtifactRef, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domainreview.ArtifactRef{
			ReviewFileID:  doc.ReviewFileID,
			Name:          doc.Name,
			Language:      doc.Language,
			PackageName:   doc.PackageName,
			VersionString: doc.VersionString,
			HasOriginal:   doc.HasOriginal,
			ContentHash:   doc.ContentHash,
		})
	}
	return out
}

func toModel(review domainreview.Review) model.Review {
	revisions := make([]model.RevisionDocument, 0, len(review.Revisions))
	for _, rev := range review.Revisions {
		approvers := rev.Approvers
		if approvers == nil {
			approvers = []string{}
		}
		revisions = append(revisions, model.RevisionDocument{
			RevisionID:   rev.RevisionID,
			Author:       rev.Author,
			Label:        rev.Label,
			CreationDate: rev.CreationDate.UTC(),
			Files:        toFileDocuments(rev.Files),
			Approvers:    approvers,
		})
	}

	return model.Review{
		ReviewID:    review.ReviewID,
		Author:      review.Author,
		Name:        review.Name,
		Language:    languageKey(review.Language()),
		PackageName: review.PackageName(),
		IsClosed:    review.IsClosed,
		IsAutomatic: review.IsAutomatic,
		RunAnalysis: review.RunAnalysis,
		Revisions:   datatypes.NewJSONType(revisions),
		Files:       datatypes.JSONSlice[model.FileDocument]{},
		ETag:        review.ETag,
		CreatedAt:   review.CreationDate.UTC().Format(timeLayout),
	}
}

func toFileDocuments(refs []domainreview.ArtifactRef) []model.FileDocument {
	out := make([]model.FileDocument, 0, len(refs))
	for _, ref := range refs {
		out = append(out, model.FileDocument{
			ReviewFileID:  ref.ReviewFileID,
			Name:          ref.Name,
			Language:      ref.Language,
			PackageName:   ref.PackageName,
			VersionString: ref.VersionString,
			HasOriginal:   ref.HasOriginal,
			ContentHash:   ref.ContentHash,
		})
	}
	return out
}

// languageKey is the indexed form of a language. Parsers report languages in
// whatever case the upload used; lookups must not depend on it.
func languageKey(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
