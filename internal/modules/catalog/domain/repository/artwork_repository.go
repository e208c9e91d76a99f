package repository

import (
	"context"

	"ArtSeek/internal/modules/catalog/domain/entity"
)

type ArtworkRepository interface {
	// ListRefs 返回某来源已落库的全部 accession_ref
	ListRefs(ctx context.Context, museum string) ([]string, error)
	// ListByMuseum 按 id 升序分页读取，afterID 为上一页最后一条的 id
	ListByMuseum(ctx context.Context, museum string, afterID int64, limit int) ([]*entity.Artwork, error)
	CountByMuseum(ctx context.Context, museum string) (int64, error)
}

// RecordWriter 记录库的唯一写入口。实现必须串行化所有写入。
// 多个来源共用同一个 RecordWriter 时，挂起的写入不按来源区分：任一调用方 Commit
// 都会把其它来源尚未提交的行一并提交，调用方不能假设提交粒度是单个来源
type RecordWriter interface {
	// Insert insert-or-ignore，返回是否真的新增了一行
	Insert(ctx context.Context, artwork *entity.Artwork) (bool, error)
	// Commit 提交当前挂起的全部写入（不论由哪个调用方写入）；没有挂起写入时是 no-op
	Commit() error
	Rollback() error
}
