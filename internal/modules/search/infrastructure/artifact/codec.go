package artifact

import (
	"context"
	"fmt"

	"ArtSeek/internal/modules/search/infrastructure/ivf"

	"github.com/klauspost/compress/zstd"
)

// SaveIndex zstd 压缩后原子写入；任何一步失败都不会留下可见的半成品
func SaveIndex(ctx context.Context, store FileStore, path string, ix *ivf.Index) (err error) {
	w, err := store.Write(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort()
		}
	}()

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err = ix.Save(enc); err != nil {
		_ = enc.Close()
		return err
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("artifact: flush zstd: %w", err)
	}
	return w.Commit()
}

func LoadIndex(ctx context.Context, store FileStore, path string) (*ivf.Index, error) {
	rc, err := store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec, err := zstd.NewReader(rc)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return ivf.Load(dec)
}
