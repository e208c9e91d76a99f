package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ArtSeek/internal/modules/search/application/dto/respond"
	"ArtSeek/internal/modules/search/infrastructure/cache"
	"ArtSeek/internal/modules/search/infrastructure/ivf"
	visionEntity "ArtSeek/internal/modules/vision/domain/entity"
	visionRepo "ArtSeek/internal/modules/vision/domain/repository"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/xerr"
	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
)

// ErrStoreMismatch 索引里的位置在 embedding 表中找不到对应行
var ErrStoreMismatch = errors.New("index does not match embedding store")

type QueryService interface {
	// Search 与 url 对应图片最相似的结果，第 offset 名起取 limit 条；url 未入库时返回空
	Search(ctx context.Context, url string, offset, limit int) ([]respond.ImageItem, error)
	// Random 对整个索引做无放回抽样；seed 为 nil 时每次随机
	Random(ctx context.Context, offset, limit int, seed *int64) ([]respond.ImageItem, error)
	Info() respond.IndexInfo
}

type queryServiceImpl struct {
	index *ivf.Index
	repo  visionRepo.EmbeddingRepository
	cache cache.SearchCache
}

// NewQueryService searchCache 可以为 nil
func NewQueryService(index *ivf.Index, repo visionRepo.EmbeddingRepository, searchCache cache.SearchCache) QueryService {
	return &queryServiceImpl{index: index, repo: repo, cache: searchCache}
}

// CheckAlignment 启动时确认索引最后一个位置在 embedding 表中存在
func CheckAlignment(ctx context.Context, index *ivf.Index, repo visionRepo.EmbeddingRepository) error {
	n := index.Len()
	if n == 0 {
		return nil
	}
	maxID, err := repo.MaxID(ctx)
	if err != nil {
		return err
	}
	if maxID < int64(n) {
		return fmt.Errorf("%w: index has %d vectors, max embedding id is %d", ErrStoreMismatch, n, maxID)
	}
	rows, err := repo.GetByIDs(ctx, []int64{int64(n)})
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return fmt.Errorf("%w: embedding id %d missing", ErrStoreMismatch, n)
	}
	return nil
}

func validatePage(offset, limit int) error {
	if offset < 0 || limit <= 0 {
		return xerr.New(xerr.BadRequest, "offset must be >= 0 and limit > 0")
	}
	return nil
}

func (s *queryServiceImpl) Search(ctx context.Context, url string, offset, limit int) (items []respond.ImageItem, err error) {
	start := time.Now()
	defer func() { observe("search", start, err) }()

	if err := validatePage(offset, limit); err != nil {
		return nil, err
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = cache.SearchKey(s.index.Meta.BuildID, url, offset, limit)
		if b, ok, cerr := s.cache.Get(ctx, cacheKey); cerr != nil {
			zlog.Warn("search cache get failed", zap.Error(cerr))
		} else if ok {
			var cached []respond.ImageItem
			if json.Unmarshal(b, &cached) == nil {
				return cached, nil
			}
		}
	}

	if offset >= s.index.Len() {
		return []respond.ImageItem{}, nil
	}

	row, err := s.repo.GetByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return []respond.ImageItem{}, nil
	}
	vec, err := visionEntity.DecodeVector(row.Vector)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(vec, min(offset+limit, s.index.Len()))
	if err != nil {
		return nil, err
	}
	if offset >= len(hits) {
		return []respond.ImageItem{}, nil
	}
	hits = hits[offset:]

	positions := make([]int, len(hits))
	for i, h := range hits {
		positions[i] = h.Pos
	}
	items, err = s.fetchInOrder(ctx, positions)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, merr := json.Marshal(items); merr == nil {
			if cerr := s.cache.Set(ctx, cacheKey, b); cerr != nil {
				zlog.Warn("search cache set failed", zap.Error(cerr))
			}
		}
	}
	return items, nil
}

func (s *queryServiceImpl) Random(ctx context.Context, offset, limit int, seed *int64) (items []respond.ImageItem, err error) {
	start := time.Now()
	defer func() { observe("random", start, err) }()

	if err := validatePage(offset, limit); err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(uint64(*seed), 0x2545f4914f6cdd1d))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	positions := samplePositions(rng, s.index.Len(), offset, limit)
	if len(positions) == 0 {
		return []respond.ImageItem{}, nil
	}
	return s.fetchInOrder(ctx, positions)
}

// samplePositions 稀疏 Fisher-Yates：只展开随机排列的前 min(offset+limit, population) 项，
// 返回其中 [offset, offset+limit) 这一段。同一个 rng 序列下，不同分页取到的是同一个排列的不同片段
func samplePositions(rng *rand.Rand, population, offset, limit int) []int {
	if offset >= population {
		return nil
	}
	take := offset + min(limit, population-offset)

	swapped := make(map[int]int, take)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	picked := make([]int, take)
	for i := 0; i < take; i++ {
		j := i + rng.IntN(population-i)
		picked[i] = at(j)
		swapped[j] = at(i)
	}
	return picked[offset:take]
}

// fetchInOrder 位置 p 对应 id p+1；批量取行后按传入顺序重排
func (s *queryServiceImpl) fetchInOrder(ctx context.Context, positions []int) ([]respond.ImageItem, error) {
	ids := make([]int64, len(positions))
	for i, p := range positions {
		ids[i] = int64(p) + 1
	}
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*visionEntity.Embedding, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	items := make([]respond.ImageItem, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			zlog.Error("index position has no embedding row", zap.Int64("id", id), zap.String("build_id", s.index.Meta.BuildID))
			metrics.QueryMissingRows.Inc()
			continue
		}
		items = append(items, respond.ImageItem{
			URL:          r.URL,
			Width:        r.Width,
			Height:       r.Height,
			ThumbnailURL: r.ThumbnailURL,
		})
	}
	return items, nil
}

func (s *queryServiceImpl) Info() respond.IndexInfo {
	return respond.IndexInfo{
		Status:  "ok",
		BuildID: s.index.Meta.BuildID,
		BuiltAt: s.index.Meta.BuiltAt,
		Vectors: s.index.Len(),
		NList:   s.index.NList(),
		Dim:     s.index.Dim(),
		NProbe:  s.index.NProbe(),
	}
}

func observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueryLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
