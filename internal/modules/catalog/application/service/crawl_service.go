package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ArtSeek/internal/modules/catalog/application/dto/respond"
	"ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/catalog/domain/event"
	"ArtSeek/internal/modules/catalog/domain/repository"
	"ArtSeek/internal/modules/catalog/infrastructure/mq"
	"ArtSeek/internal/modules/catalog/infrastructure/source"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/util"
	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type CrawlOptions struct {
	// MaxInflight 所有来源共享的并发拉取上限
	MaxInflight int
	// RatePerSecond 全局放行速率上限；突发为 1，相邻两次放行至少间隔 1/RatePerSecond。<=0 不限速
	RatePerSecond float64
	ProgressEvery int
	// Topic 非空且 Publisher 不为 nil 时发布 crawl_cycle 事件
	Topic string
}

type CrawlService interface {
	// Run 并发抓取所有来源，全部结束后返回；单个来源的失败不影响其它来源
	Run(ctx context.Context) (*respond.CrawlResult, error)
}

type crawlServiceImpl struct {
	sources   []repository.CatalogSource
	repo      repository.ArtworkRepository
	writer    repository.RecordWriter
	publisher mq.Publisher
	opts      CrawlOptions

	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewCrawlService publisher 可以为 nil
func NewCrawlService(
	sources []repository.CatalogSource,
	repo repository.ArtworkRepository,
	writer repository.RecordWriter,
	publisher mq.Publisher,
	opts CrawlOptions,
) CrawlService {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 50
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	return &crawlServiceImpl{
		sources:   sources,
		repo:      repo,
		writer:    writer,
		publisher: publisher,
		opts:      opts,
		sem:       semaphore.NewWeighted(int64(opts.MaxInflight)),
		limiter:   newLimiter(opts.RatePerSecond),
	}
}

func newLimiter(ratePerSecond float64) *rate.Limiter {
	if ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), 1)
}

func (s *crawlServiceImpl) Run(ctx context.Context) (*respond.CrawlResult, error) {
	start := time.Now()
	res := &respond.CrawlResult{
		RunID:     util.GenerateShortUUID(),
		Sources:   make([]*respond.SourceCycle, len(s.sources)),
		StartedAt: start,
	}
	zlog.Info("crawl run started", zap.String("run_id", res.RunID), zap.Int("sources", len(s.sources)))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Sources[i] = s.crawlSource(ctx, res.RunID, src)
		}()
	}
	wg.Wait()
	res.DurationMs = time.Since(start).Milliseconds()

	var errs []error
	for _, sc := range res.Sources {
		if sc.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sc.Museum, sc.Err))
		}
	}
	zlog.Info("crawl run finished",
		zap.String("run_id", res.RunID),
		zap.Int64("inserted", res.Inserted()),
		zap.Int64("duration_ms", res.DurationMs),
		zap.Int("failed_sources", len(errs)))
	return res, errors.Join(errs...)
}

func (s *crawlServiceImpl) crawlSource(ctx context.Context, runID string, src repository.CatalogSource) *respond.SourceCycle {
	museum := src.Museum()
	cycle := &respond.SourceCycle{Museum: museum}
	defer s.finishCycle(ctx, runID, cycle)

	current, err := src.ListRefs(ctx)
	if err != nil {
		// 列表不完整时不信任任何部分结果
		cycle.Err = fmt.Errorf("list refs: %w", err)
		return cycle
	}
	cycle.Listed = len(current)

	persisted, err := s.repo.ListRefs(ctx, museum)
	if err != nil {
		cycle.Err = fmt.Errorf("load persisted refs: %w", err)
		return cycle
	}
	cycle.Persisted = len(persisted)

	missing := diffRefs(current, persisted)
	cycle.Missing = len(missing)
	zlog.Info("crawl source diffed",
		zap.String("run_id", runID),
		zap.String("museum", museum),
		zap.Int("listed", cycle.Listed),
		zap.Int("persisted", cycle.Persisted),
		zap.Int("missing", cycle.Missing))
	if len(missing) == 0 {
		return cycle
	}

	var (
		itemWG sync.WaitGroup
		done   atomic.Int64
	)
	for _, ref := range missing {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		itemWG.Add(1)
		go func() {
			defer itemWG.Done()
			defer s.sem.Release(1)

			if err := s.limiter.Wait(ctx); err != nil {
				atomic.AddInt64(&cycle.Failed, 1)
				return
			}
			s.crawlItem(ctx, src, ref, cycle)

			if n := done.Add(1); n%int64(s.opts.ProgressEvery) == 0 {
				zlog.Info("crawl progress",
					zap.String("museum", museum),
					zap.Int64("done", n),
					zap.Int("missing", cycle.Missing))
			}
		}()
	}
	itemWG.Wait()

	if err := ctx.Err(); err != nil {
		// 被取消：挂起的行仍然提交，重跑时 diff 会跳过它们
		zlog.Warn("crawl source interrupted", zap.String("museum", museum), zap.Error(err))
	}
	if err := s.writer.Commit(); err != nil {
		cycle.Err = fmt.Errorf("commit: %w", err)
	}
	return cycle
}

func (s *crawlServiceImpl) crawlItem(ctx context.Context, src repository.CatalogSource, ref string, cycle *respond.SourceCycle) {
	museum := src.Museum()
	doc, err := src.Fetch(ctx, ref)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			atomic.AddInt64(&cycle.NotFound, 1)
			metrics.CrawlFetches.WithLabelValues(museum, "not_found").Inc()
			return
		}
		atomic.AddInt64(&cycle.Failed, 1)
		metrics.CrawlFetches.WithLabelValues(museum, "error").Inc()
		zlog.Warn("crawl fetch failed", zap.String("museum", museum), zap.String("ref", ref), zap.Error(err))
		return
	}
	atomic.AddInt64(&cycle.Fetched, 1)
	metrics.CrawlFetches.WithLabelValues(museum, "ok").Inc()

	inserted, err := s.writer.Insert(ctx, &entity.Artwork{
		Museum:       museum,
		AccessionRef: ref,
		Data:         string(doc),
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		atomic.AddInt64(&cycle.Failed, 1)
		zlog.Error("crawl insert failed", zap.String("museum", museum), zap.String("ref", ref), zap.Error(err))
		return
	}
	if inserted {
		atomic.AddInt64(&cycle.Inserted, 1)
		metrics.CrawlInserted.WithLabelValues(museum).Inc()
	}
}

func (s *crawlServiceImpl) finishCycle(ctx context.Context, runID string, cycle *respond.SourceCycle) {
	status := "ok"
	if cycle.Err != nil {
		status = "error"
		zlog.Error("crawl source aborted", zap.String("run_id", runID), zap.String("museum", cycle.Museum), zap.Error(cycle.Err))
	} else {
		zlog.Info("crawl source finished",
			zap.String("run_id", runID),
			zap.String("museum", cycle.Museum),
			zap.Int64("inserted", cycle.Inserted),
			zap.Int64("not_found", cycle.NotFound),
			zap.Int64("failed", cycle.Failed))
	}
	metrics.CrawlCycles.WithLabelValues(cycle.Museum, status).Inc()

	if s.publisher == nil || s.opts.Topic == "" {
		return
	}
	ev := event.CrawlCycleEvent{
		Type:       event.EventTypeCrawlCycle,
		RunID:      runID,
		Museum:     cycle.Museum,
		Listed:     cycle.Listed,
		Missing:    cycle.Missing,
		Inserted:   cycle.Inserted,
		Failed:     cycle.Failed,
		FinishedAt: time.Now().UTC(),
	}
	if cycle.Err != nil {
		ev.Error = cycle.Err.Error()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.publisher.Publish(pubCtx, mq.Message{
		Topic:   s.opts.Topic,
		Key:     []byte(cycle.Museum),
		Value:   b,
		Headers: map[string]string{"event_type": event.EventTypeCrawlCycle},
	}); err != nil {
		// 通知失败不影响已提交的数据
		zlog.Warn("publish crawl event failed", zap.String("museum", cycle.Museum), zap.Error(err))
	}
}

// diffRefs current − persisted，保持 current 的顺序
func diffRefs(current, persisted []string) []string {
	have := make(map[string]struct{}, len(persisted))
	for _, r := range persisted {
		have[r] = struct{}{}
	}
	var missing []string
	for _, r := range current {
		if _, ok := have[r]; ok {
			continue
		}
		missing = append(missing, r)
	}
	return missing
}
