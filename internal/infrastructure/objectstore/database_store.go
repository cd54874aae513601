package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/infrastructure/persistence/gormstore/model"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
	"apiview/internal/ports"
)

// DatabaseStore keeps objects in the blobs table. Writes join the unit of
// work transaction carried by ctx.
type DatabaseStore struct {
	db *gorm.DB
}

var _ ports.ObjectStore = (*DatabaseStore)(nil)

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Put(ctx context.Context, key string, content []byte) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	db, err := uow.DBFromContext(ctx, s.db)
	if err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}

	row := model.Blob{
		Key:       key,
		Content:   content,
		Size:      int64(len(content)),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"content":    row.Content,
			"size":       row.Size,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), "upsert blob")
	}
	return nil
}

func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	db, err := uow.DBFromContext(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var row model.Blob
	if err := db.Where("key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrapf(ports.ErrObjectNotFound, "get %s", key)
		}
		return nil, errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), "query blob")
	}
	return row.Content, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	db, err := uow.DBFromContext(ctx, s.db)
	if err != nil {
		return err
	}
	if err := db.Where("key = ?", key).Delete(&model.Blob{}).Error; err != nil {
		return errs.Wrap(errs.Tag(err, domainreview.ErrStorageUnavailable), "delete blob")
	}
	return nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	return key, nil
}
