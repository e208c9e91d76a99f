package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"testing"
	"time"

	"ArtSeek/internal/config"
	"ArtSeek/internal/initial"
	catalogEntity "ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/vision/domain/entity"
	"ArtSeek/internal/modules/vision/infrastructure/embedder"
	"ArtSeek/internal/modules/vision/infrastructure/persistence"
	"ArtSeek/internal/modules/vision/infrastructure/shard"

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
	for _, ref := range []string{"1", "2", "3"} {
		require.NoError(t, db.Create(&catalogEntity.Artwork{
			Museum: catalogEntity.MuseumMet, AccessionRef: ref, Data: `{}`, UpdatedAt: time.Now(),
		}).Error)
	}
	return db
}

type sliceSource struct {
	samples []*shard.Sample
}

func (s *sliceSource) Next() (*shard.Sample, error) {
	if len(s.samples) == 0 {
		return nil, io.EOF
	}
	smp := s.samples[0]
	s.samples = s.samples[1:]
	return smp, nil
}

func pngOf(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sample(t *testing.T, url string, artworkID int64, c color.Color) *shard.Sample {
	return &shard.Sample{URL: url, ArtworkID: artworkID, Width: 6, Height: 6, Image: pngOf(t, c), Format: "png"}
}

type failingEmbedder struct {
	inner  embedder.ImageEmbedder
	calls  int
	failOn int
}

func (f *failingEmbedder) EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errors.New("inference server overloaded")
	}
	return f.inner.EmbedImages(ctx, images)
}

func TestIngestDedupAndResume(t *testing.T) {
	db := openTestDB(t)
	repo := persistence.NewEmbeddingRepository(db)
	svc := NewIngestService(repo, embedder.NewMockEmbedder(12), IngestOptions{BatchSize: 3, Dim: 12})

	red, green := color.RGBA{R: 255, A: 255}, color.RGBA{G: 255, A: 255}
	src := &sliceSource{samples: []*shard.Sample{
		sample(t, "https://img/a.png", 1, red),
		sample(t, "https://img/a.png", 2, green),
		sample(t, "https://img/b.png", 2, green),
		sample(t, "https://img/c.png", 99, red),
		{URL: "https://img/d.png", ArtworkID: 3, Image: []byte("not an image")},
	}}
	res, err := svc.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Samples)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Orphaned)
	assert.Equal(t, 1, res.Undecodable)
	assert.Equal(t, 2, res.Inserted)

	row, err := repo.GetByURL(context.Background(), "https://img/a.png")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.ID)
	assert.Equal(t, int64(1), row.ArtworkID)

	vec, err := entity.DecodeVector(row.Vector)
	require.NoError(t, err)
	require.Len(t, vec, 12)
	var norm float64
	for _, f := range vec {
		norm += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	// 再跑一遍：全部已存在，不产生新行
	res, err = svc.Run(context.Background(), &sliceSource{samples: []*shard.Sample{
		sample(t, "https://img/a.png", 1, red),
		sample(t, "https://img/b.png", 2, green),
		sample(t, "https://img/e.png", 3, green),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Existing)
	assert.Equal(t, 1, res.Inserted)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	maxID, err := repo.MaxID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)
}

func TestIngestFailedBatchDoesNotStopRun(t *testing.T) {
	db := openTestDB(t)
	repo := persistence.NewEmbeddingRepository(db)
	em := &failingEmbedder{inner: embedder.NewMockEmbedder(6), failOn: 1}
	svc := NewIngestService(repo, em, IngestOptions{BatchSize: 2, Dim: 6})

	red := color.RGBA{R: 255, A: 255}
	res, err := svc.Run(context.Background(), &sliceSource{samples: []*shard.Sample{
		sample(t, "https://img/1.png", 1, red),
		sample(t, "https://img/2.png", 1, red),
		sample(t, "https://img/3.png", 2, red),
		sample(t, "https://img/4.png", 2, red),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 1, res.FailedBatches)
	assert.Equal(t, 2, res.Inserted)

	row, err := repo.GetByURL(context.Background(), "https://img/1.png")
	require.NoError(t, err)
	assert.Nil(t, row)

	// 失败的批次重跑后补齐
	res, err = svc.Run(context.Background(), &sliceSource{samples: []*shard.Sample{
		sample(t, "https://img/1.png", 1, red),
		sample(t, "https://img/2.png", 1, red),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestIngestDimensionMismatchFailsBatch(t *testing.T) {
	db := openTestDB(t)
	svc := NewIngestService(persistence.NewEmbeddingRepository(db), embedder.NewMockEmbedder(6), IngestOptions{BatchSize: 4, Dim: 12})

	res, err := svc.Run(context.Background(), &sliceSource{samples: []*shard.Sample{
		sample(t, "https://img/1.png", 1, color.RGBA{B: 255, A: 255}),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedBatches)
	assert.Zero(t, res.Inserted)
}
