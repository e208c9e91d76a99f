package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ArtSeek/internal/config"
	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/catalog/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conf := config.Default()
	conf.DatabaseConfig.Path = filepath.Join(t.TempDir(), "collections.db")
	db, err := initial.NewGormDB(conf, initial.DBOptions{Migrate: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func artwork(museum, ref string) *entity.Artwork {
	return &entity.Artwork{Museum: museum, AccessionRef: ref, Data: `{}`, UpdatedAt: time.Now()}
}

func TestRecordWriterCommitFlushesEveryCaller(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	w := NewRecordWriter(db)
	repo := NewArtworkRepository(db)

	ok, err := w.Insert(ctx, artwork(entity.MuseumMet, "1"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.Insert(ctx, artwork(entity.MuseumLouvre, "cl01"))
	require.NoError(t, err)
	assert.True(t, ok)

	// 只有一个来源调用 Commit，另一个来源挂起的行也被提交
	require.NoError(t, w.Commit())
	n, err := repo.CountByMuseum(ctx, entity.MuseumLouvre)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err = w.Insert(ctx, artwork(entity.MuseumMet, "1"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = w.Insert(ctx, artwork(entity.MuseumMet, "2"))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, w.Rollback())
	require.NoError(t, w.Commit())

	refs, err := repo.ListRefs(ctx, entity.MuseumMet)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, refs)
}
