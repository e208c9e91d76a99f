// Package artifact 负责索引文件的持久化：本地磁盘或 S3 兼容对象存储，内容经 zstd 压缩
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"

	"ArtSeek/internal/config"
)

// ErrNotExist 与 os.ErrNotExist 相同，便于调用方统一判断
var ErrNotExist = os.ErrNotExist

// Writer 写入在 Commit 前对读者不可见；Abort 丢弃已写内容
type Writer interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileStore 以正斜杠分隔的相对路径寻址。实现必须并发安全
type FileStore interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string) (Writer, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// NewFromConfig 按 storageConfig.backend 创建存储
func NewFromConfig(ctx context.Context, sc config.StorageConfig) (FileStore, error) {
	switch sc.Backend {
	case "", "local":
		return NewLocal(sc.LocalRoot)
	case "s3":
		return NewS3FromOptions(ctx, S3Options{
			Bucket:    sc.Bucket,
			Prefix:    sc.Prefix,
			Region:    sc.Region,
			Endpoint:  sc.Endpoint,
			PathStyle: sc.PathStyle,
		})
	default:
		return nil, fmt.Errorf("artifact: unknown backend %q", sc.Backend)
	}
}
