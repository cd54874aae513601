package objectstore

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/infrastructure/persistence/gormstore/model"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
	"apiview/internal/ports"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "objects.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Blob{}))
	return db
}

func TestObjectStoreContract(t *testing.T) {
	stores := map[string]ports.ObjectStore{
		"memory":   NewMemoryStore(),
		"database": NewDatabaseStore(openDB(t)),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, "originals/f1", []byte("v1")))
			require.NoError(t, store.Put(ctx, "/originals/f1", []byte("v2")))

			got, err := store.Get(ctx, "originals/f1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, store.Delete(ctx, "originals/f1"))
			_, err = store.Get(ctx, "originals/f1")
			assert.ErrorIs(t, err, domainreview.ErrNotFound)

			assert.Error(t, store.Put(ctx, "  ", []byte("x")))
		})
	}
}

func TestDatabaseStoreJoinsTransaction(t *testing.T) {
	db := openDB(t)
	store := NewDatabaseStore(db)
	u := uow.NewUnitOfWork(db)
	ctx := context.Background()

	err := u.WithTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.Put(txCtx, "k", []byte("inside")))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, domainreview.ErrNotFound)
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)

	store, err := NewS3Store(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Bucket:    "apiview",
		Prefix:    "/reviews/",
	})
	require.NoError(t, err)

	key, err := store.objectKey("/originals/f1")
	require.NoError(t, err)
	assert.Equal(t, "reviews/originals/f1", key)
}
