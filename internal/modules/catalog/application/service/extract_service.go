package service

import (
	"context"
	"io"

	"ArtSeek/internal/modules/catalog/application/dto/respond"
	"ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/catalog/domain/repository"
	"ArtSeek/internal/modules/catalog/infrastructure/extract"
	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
)

const extractPageSize = 500

type ExtractService interface {
	// Export 把所有记录的候选图片写成 CSV 清单（URL,ID,THUMBNAIL），URL 全局去重
	Export(ctx context.Context, w io.Writer) (*respond.ExtractResult, error)
}

type extractServiceImpl struct {
	repo repository.ArtworkRepository
}

func NewExtractService(repo repository.ArtworkRepository) ExtractService {
	return &extractServiceImpl{repo: repo}
}

// 先 Louvre 后 Met，与历史清单的顺序保持一致
var extractOrder = []string{entity.MuseumLouvre, entity.MuseumMet}

func (s *extractServiceImpl) Export(ctx context.Context, w io.Writer) (*respond.ExtractResult, error) {
	mw, err := extract.NewManifestWriter(w)
	if err != nil {
		return nil, err
	}
	res := &respond.ExtractResult{}

	for _, museum := range extractOrder {
		var afterID int64
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			page, err := s.repo.ListByMuseum(ctx, museum, afterID, extractPageSize)
			if err != nil {
				return nil, err
			}
			if len(page) == 0 {
				break
			}
			for _, a := range page {
				afterID = a.ID
				res.Artworks++

				obj, err := extract.Decode(a.Museum, []byte(a.Data))
				if err != nil {
					res.Undecoded++
					zlog.Warn("extract decode failed", zap.Int64("artwork_id", a.ID), zap.String("museum", a.Museum), zap.Error(err))
					continue
				}
				for _, c := range obj.Images() {
					res.Candidates++
					if _, err := mw.Add(a.ID, c); err != nil {
						return nil, err
					}
				}
			}
			if len(page) < extractPageSize {
				break
			}
		}
	}

	if err := mw.Flush(); err != nil {
		return nil, err
	}
	res.Written = mw.Rows()
	res.Duplicates = mw.Duplicates()
	zlog.Info("extract finished",
		zap.Int("artworks", res.Artworks),
		zap.Int("candidates", res.Candidates),
		zap.Int("written", res.Written),
		zap.Int("duplicates", res.Duplicates))
	return res, nil
}
