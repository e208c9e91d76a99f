package repository

import (
	"context"
	"encoding/json"
)

// CatalogSource 上游馆藏目录的抽象
type CatalogSource interface {
	Museum() string
	// ListRefs 返回来源当前公开的完整、去重后的编号快照；任何部分失败都返回 error
	ListRefs(ctx context.Context) ([]string, error)
	// Fetch 拉取单条原始记录；对象不存在时返回 source.ErrNotFound
	Fetch(ctx context.Context, ref string) (json.RawMessage, error)
}
