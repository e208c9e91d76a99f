package event

import "time"

// EventTypeCrawlCycle 每个来源完成一次抓取周期后发出
const EventTypeCrawlCycle = "crawl_cycle"

type CrawlCycleEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Museum     string    `json:"museum"`
	Listed     int       `json:"listed"`
	Missing    int       `json:"missing"`
	Inserted   int64     `json:"inserted"`
	Failed     int64     `json:"failed"`
	Error      string    `json:"error,omitempty"` // 列表失败或提交失败时非空
	FinishedAt time.Time `json:"finished_at"`
}
