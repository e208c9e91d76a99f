package scheduler

import (
	"context"
	"fmt"
	"strings"

	"ArtSeek/internal/modules/catalog/application/service"
	"ArtSeek/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CrawlScheduler 按 cron 表达式周期性执行抓取；上一轮未结束时跳过本轮
type CrawlScheduler struct {
	cron    *cron.Cron
	crawl   service.CrawlService
	spec    string
	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
}

func NewCrawlScheduler(crawl service.CrawlService, spec string) (*CrawlScheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	logger := cronLogger{}
	m := &CrawlScheduler{
		// 使用标准5段Cron表达式（不含秒）
		cron:  cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		crawl: crawl,
		spec:  spec,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	id, err := m.cron.AddFunc(spec, m.runOnce)
	if err != nil {
		m.cancel()
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	m.entryID = id
	return m, nil
}

func (m *CrawlScheduler) runOnce() {
	res, err := m.crawl.Run(m.ctx)
	if err != nil {
		zlog.Error("scheduled crawl finished with errors", zap.Error(err))
		return
	}
	zlog.Info("scheduled crawl finished", zap.String("run_id", res.RunID), zap.Int64("inserted", res.Inserted()))
}

func (m *CrawlScheduler) Start() {
	m.cron.Start()
	zlog.Info("crawl scheduler started", zap.String("cron", m.spec), zap.Time("next", m.cron.Entry(m.entryID).Next))
}

// Stop 取消正在运行的抓取并等待其退出
func (m *CrawlScheduler) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
	zlog.Info("crawl scheduler stopped")
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zlog.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zlog.Error("cron: "+msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
