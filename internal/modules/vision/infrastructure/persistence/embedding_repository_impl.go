package persistence

import (
	"context"
	"errors"

	catalogEntity "ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/vision/domain/entity"
	"ArtSeek/internal/modules/vision/domain/repository"

	"gorm.io/gorm"
)

// 单条 IN 查询的参数上限，低于各方言的占位符限制
const inChunk = 500

// 查询侧不需要向量列
var lightColumns = []string{"id", "url", "artwork_id", "width", "height", "thumbnail_url"}

type embeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) repository.EmbeddingRepository {
	return &embeddingRepositoryImpl{db: db}
}

func (r *embeddingRepositoryImpl) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for start := 0; start < len(urls); start += inChunk {
		end := min(start+inChunk, len(urls))
		var found []string
		err := r.db.WithContext(ctx).Model(&entity.Embedding{}).
			Where("url IN ?", urls[start:end]).
			Pluck("url", &found).Error
		if err != nil {
			return nil, err
		}
		for _, u := range found {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func (r *embeddingRepositoryImpl) ExistingArtworkIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for start := 0; start < len(ids); start += inChunk {
		end := min(start+inChunk, len(ids))
		var found []int64
		err := r.db.WithContext(ctx).Model(&catalogEntity.Artwork{}).
			Where("id IN ?", ids[start:end]).
			Pluck("id", &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (r *embeddingRepositoryImpl) InsertBatch(ctx context.Context, rows []*entity.Embedding) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 逐行插入，保持自增 id 与批内顺序一致
		for _, row := range rows {
			if err := tx.Omit("Artwork").Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *embeddingRepositoryImpl) ScanOrdered(ctx context.Context, afterID int64, limit int) ([]*entity.Embedding, error) {
	if limit <= 0 {
		limit = 1024
	}
	var list []*entity.Embedding
	err := r.db.WithContext(ctx).
		Select("id", "vector").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *embeddingRepositoryImpl) GetByURL(ctx context.Context, url string) (*entity.Embedding, error) {
	var e entity.Embedding
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *embeddingRepositoryImpl) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Embedding, error) {
	out := make([]*entity.Embedding, 0, len(ids))
	for start := 0; start < len(ids); start += inChunk {
		end := min(start+inChunk, len(ids))
		var list []*entity.Embedding
		err := r.db.WithContext(ctx).
			Select(lightColumns).
			Where("id IN ?", ids[start:end]).
			Find(&list).Error
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func (r *embeddingRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Embedding{}).Count(&n).Error
	return n, err
}

func (r *embeddingRepositoryImpl) MaxID(ctx context.Context) (int64, error) {
	var maxID *int64
	err := r.db.WithContext(ctx).Model(&entity.Embedding{}).Select("MAX(id)").Scan(&maxID).Error
	if err != nil {
		return 0, err
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}
