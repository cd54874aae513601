package notify

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/infrastructure/persistence/gormstore/model"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
)

// SubscriptionRepository records who follows which review.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Add(ctx context.Context, reviewID string, principal string) error {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return err
	}
	row := model.ReviewSubscriber{
		ReviewID:  strings.TrimSpace(reviewID),
		Principal: strings.TrimSpace(principal),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), "insert review subscriber")
	}
	return nil
}

func (r *SubscriptionRepository) List(ctx context.Context, reviewID string) ([]string, error) {
	db, err := uow.DBFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rows []model.ReviewSubscriber
	if err := db.Where("review_id = ?", strings.TrimSpace(reviewID)).Order("principal asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), "query review subscribers")
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Principal)
	}
	return out, nil
}
