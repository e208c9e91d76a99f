package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"ArtSeek/internal/modules/vision/application/dto/respond"
	"ArtSeek/internal/modules/vision/domain/entity"
	"ArtSeek/internal/modules/vision/domain/repository"
	"ArtSeek/internal/modules/vision/infrastructure/embedder"
	"ArtSeek/internal/modules/vision/infrastructure/shard"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
)

// SampleSource 惰性、确定顺序的样本流，结束时返回 io.EOF
type SampleSource interface {
	Next() (*shard.Sample, error)
}

type IngestOptions struct {
	BatchSize int
	// Dim 期望的向量维度，embedder 返回其它维度时整批失败
	Dim int
}

type IngestService interface {
	Run(ctx context.Context, src SampleSource) (*respond.IngestResult, error)
}

type ingestServiceImpl struct {
	repo     repository.EmbeddingRepository
	embedder embedder.ImageEmbedder
	opts     IngestOptions
}

func NewIngestService(repo repository.EmbeddingRepository, em embedder.ImageEmbedder, opts IngestOptions) IngestService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	return &ingestServiceImpl{repo: repo, embedder: em, opts: opts}
}

func (s *ingestServiceImpl) Run(ctx context.Context, src SampleSource) (*respond.IngestResult, error) {
	start := time.Now()
	res := &respond.IngestResult{}
	batch := make([]*shard.Sample, 0, s.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		idx := res.Batches
		res.Batches++
		inserted, err := s.processBatch(ctx, batch, res)
		if err != nil {
			// 单批失败不影响已提交的批次，继续下一批
			res.FailedBatches++
			metrics.IngestBatches.WithLabelValues("error").Inc()
			zlog.Error("ingest batch failed", zap.Int("batch", idx), zap.Int("size", len(batch)), zap.Error(err))
		} else {
			res.Inserted += inserted
			metrics.IngestBatches.WithLabelValues("ok").Inc()
			metrics.IngestRows.Add(float64(inserted))
			zlog.Info("ingest batch committed", zap.Int("batch", idx), zap.Int("inserted", inserted))
		}
		batch = batch[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sample, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read samples: %w", err)
		}
		res.Samples++
		batch = append(batch, sample)
		if len(batch) >= s.opts.BatchSize {
			flush()
		}
	}
	flush()

	res.DurationMs = time.Since(start).Milliseconds()
	zlog.Info("ingest finished",
		zap.Int("samples", res.Samples),
		zap.Int("inserted", res.Inserted),
		zap.Int("existing", res.Existing),
		zap.Int("failed_batches", res.FailedBatches),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}

func (s *ingestServiceImpl) processBatch(ctx context.Context, batch []*shard.Sample, res *respond.IngestResult) (int, error) {
	// 批内按 URL 去重，先到先得
	unique := make([]*shard.Sample, 0, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	urls := make([]string, 0, len(batch))
	for _, smp := range batch {
		if _, ok := inBatch[smp.URL]; ok {
			res.Duplicates++
			continue
		}
		inBatch[smp.URL] = struct{}{}
		unique = append(unique, smp)
		urls = append(urls, smp.URL)
	}

	existing, err := s.repo.ExistingURLs(ctx, urls)
	if err != nil {
		return 0, fmt.Errorf("query existing urls: %w", err)
	}
	fresh := unique[:0:0]
	artworkIDs := make([]int64, 0, len(unique))
	for _, smp := range unique {
		if _, ok := existing[smp.URL]; ok {
			res.Existing++
			continue
		}
		fresh = append(fresh, smp)
		artworkIDs = append(artworkIDs, smp.ArtworkID)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	known, err := s.repo.ExistingArtworkIDs(ctx, artworkIDs)
	if err != nil {
		return 0, fmt.Errorf("query artworks: %w", err)
	}

	todo := make([]*shard.Sample, 0, len(fresh))
	images := make([]image.Image, 0, len(fresh))
	for _, smp := range fresh {
		if _, ok := known[smp.ArtworkID]; !ok {
			res.Orphaned++
			zlog.Warn("ingest sample references unknown artwork", zap.String("url", smp.URL), zap.Int64("artwork_id", smp.ArtworkID))
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(smp.Image))
		if err != nil {
			res.Undecodable++
			zlog.Warn("ingest image decode failed", zap.String("url", smp.URL), zap.Error(err))
			continue
		}
		todo = append(todo, smp)
		images = append(images, img)
	}
	if len(todo) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedImages(ctx, images)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(todo) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d images", len(vectors), len(todo))
	}

	rows := make([]*entity.Embedding, 0, len(todo))
	now := time.Now()
	for i, smp := range todo {
		vec := vectors[i]
		if s.opts.Dim > 0 && len(vec) != s.opts.Dim {
			return 0, fmt.Errorf("embedding dimension %d, want %d", len(vec), s.opts.Dim)
		}
		if !entity.Normalize(vec) {
			res.Undecodable++
			zlog.Warn("ingest produced zero vector", zap.String("url", smp.URL))
			continue
		}
		rows = append(rows, &entity.Embedding{
			URL:          smp.URL,
			ArtworkID:    smp.ArtworkID,
			Vector:       entity.EncodeVector(vec),
			Width:        smp.Width,
			Height:       smp.Height,
			ThumbnailURL: smp.ThumbnailURL,
			CreatedAt:    now,
		})
	}

	if err := s.repo.InsertBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return len(rows), nil
}
