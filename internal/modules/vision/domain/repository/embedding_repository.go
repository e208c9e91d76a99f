package repository

import (
	"context"

	"ArtSeek/internal/modules/vision/domain/entity"
)

type EmbeddingRepository interface {
	// ExistingURLs 返回 urls 中已经入库的那部分
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	// ExistingArtworkIDs 返回 ids 中在 artwork 表里存在的那部分
	ExistingArtworkIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	// InsertBatch 单个事务内插入整批，失败整体回滚
	InsertBatch(ctx context.Context, rows []*entity.Embedding) error

	// ScanOrdered 按 id 升序分页读取（含向量），afterID 为上一页最后一条的 id
	ScanOrdered(ctx context.Context, afterID int64, limit int) ([]*entity.Embedding, error)
	// GetByURL 不存在时返回 nil, nil
	GetByURL(ctx context.Context, url string) (*entity.Embedding, error)
	// GetByIDs 不带向量列，返回顺序不保证
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Embedding, error)
	Count(ctx context.Context) (int64, error)
	MaxID(ctx context.Context) (int64, error)
}
