package service

import (
	"context"
	"fmt"
	"time"

	"ArtSeek/internal/modules/search/application/dto/respond"
	"ArtSeek/internal/modules/search/infrastructure/artifact"
	"ArtSeek/internal/modules/search/infrastructure/ivf"
	visionEntity "ArtSeek/internal/modules/vision/domain/entity"
	visionRepo "ArtSeek/internal/modules/vision/domain/repository"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/util"
	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
)

type IndexOptions struct {
	Dim          int
	ArtifactPath string
	NProbe       int
	ScanPageSize int
	Train        ivf.TrainOptions
}

type IndexService interface {
	// Build 全量扫描 embedding 表并生成新的索引文件；对齐校验失败时不写任何文件
	Build(ctx context.Context) (*respond.BuildResult, error)
}

type indexServiceImpl struct {
	repo  visionRepo.EmbeddingRepository
	store artifact.FileStore
	opts  IndexOptions
}

func NewIndexService(repo visionRepo.EmbeddingRepository, store artifact.FileStore, opts IndexOptions) IndexService {
	if opts.ScanPageSize <= 0 {
		opts.ScanPageSize = 2048
	}
	if opts.NProbe <= 0 {
		opts.NProbe = 16
	}
	return &indexServiceImpl{repo: repo, store: store, opts: opts}
}

func (s *indexServiceImpl) Build(ctx context.Context) (*respond.BuildResult, error) {
	start := time.Now()
	buildID := util.GenerateShortUUID()

	b, err := ivf.NewBuilder(s.opts.Dim)
	if err != nil {
		return nil, err
	}

	// 严格按 id 升序单线程扫描，每条都经过 Builder 的游标校验
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.repo.ScanOrdered(ctx, afterID, s.opts.ScanPageSize)
		if err != nil {
			return nil, fmt.Errorf("scan embeddings: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			vec, err := visionEntity.DecodeVector(row.Vector)
			if err != nil {
				return nil, fmt.Errorf("embedding %d: %w", row.ID, err)
			}
			if err := b.Add(row.ID, vec); err != nil {
				zlog.Error("index build aborted", zap.String("build_id", buildID), zap.Int64("id", row.ID), zap.Int("position", b.Len()), zap.Error(err))
				return nil, err
			}
			afterID = row.ID
		}
		if len(rows) < s.opts.ScanPageSize {
			break
		}
	}
	zlog.Info("index scan finished", zap.String("build_id", buildID), zap.Int("vectors", b.Len()))

	ix := b.Build(s.opts.Train, s.opts.NProbe)
	ix.Meta = ivf.Meta{BuildID: buildID, BuiltAt: time.Now().UTC()}

	if err := artifact.SaveIndex(ctx, s.store, s.opts.ArtifactPath, ix); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}
	metrics.IndexVectors.Set(float64(ix.Len()))

	res := &respond.BuildResult{
		BuildID:    buildID,
		Path:       s.opts.ArtifactPath,
		Vectors:    ix.Len(),
		NList:      ix.NList(),
		Dim:        ix.Dim(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	zlog.Info("index build finished",
		zap.String("build_id", res.BuildID),
		zap.Int("vectors", res.Vectors),
		zap.Int("nlist", res.NList),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}
