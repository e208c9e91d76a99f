package persistence

import (
	"context"
	"errors"
	"sync"

	"ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/catalog/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type artworkRepositoryImpl struct {
	db *gorm.DB
}

func NewArtworkRepository(db *gorm.DB) repository.ArtworkRepository {
	return &artworkRepositoryImpl{db: db}
}

func (r *artworkRepositoryImpl) ListRefs(ctx context.Context, museum string) ([]string, error) {
	var refs []string
	err := r.db.WithContext(ctx).Model(&entity.Artwork{}).
		Where("museum = ?", museum).
		Pluck("accession_ref", &refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *artworkRepositoryImpl) ListByMuseum(ctx context.Context, museum string, afterID int64, limit int) ([]*entity.Artwork, error) {
	if limit <= 0 {
		limit = 500
	}
	var list []*entity.Artwork
	err := r.db.WithContext(ctx).
		Where("museum = ? AND id > ?", museum, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *artworkRepositoryImpl) CountByMuseum(ctx context.Context, museum string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Artwork{}).Where("museum = ?", museum).Count(&n).Error
	return n, err
}

// recordWriterImpl 持有一个懒打开的事务，所有写入在互斥锁下串行执行
type recordWriterImpl struct {
	mu sync.Mutex
	db *gorm.DB
	tx *gorm.DB
}

func NewRecordWriter(db *gorm.DB) repository.RecordWriter {
	return &recordWriterImpl{db: db}
}

func (w *recordWriterImpl) Insert(ctx context.Context, artwork *entity.Artwork) (bool, error) {
	if artwork == nil {
		return false, errors.New("nil artwork")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tx == nil {
		tx := w.db.Begin()
		if tx.Error != nil {
			return false, tx.Error
		}
		w.tx = tx
	}
	res := w.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(artwork)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (w *recordWriterImpl) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit().Error
	w.tx = nil
	return err
}

func (w *recordWriterImpl) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback().Error
	w.tx = nil
	return err
}
