package respond

import "time"

// SourceCycle 单个来源一次抓取周期的统计
type SourceCycle struct {
	Museum    string `json:"museum"`
	Listed    int    `json:"listed"`    // 上游列表条数（去重后）
	Persisted int    `json:"persisted"` // 开始前已落库条数
	Missing   int    `json:"missing"`   // 本次需要拉取的条数
	Fetched   int64  `json:"fetched"`   // 成功拉取
	Inserted  int64  `json:"inserted"`  // 实际新增（insert-or-ignore 后）
	NotFound  int64  `json:"not_found"`
	Failed    int64  `json:"failed"`
	Err       error  `json:"-"`
}

type CrawlResult struct {
	RunID      string         `json:"run_id"`
	Sources    []*SourceCycle `json:"sources"`
	DurationMs int64          `json:"duration_ms"`
	StartedAt  time.Time      `json:"started_at"`
}

// Inserted 所有来源新增行数之和
func (r *CrawlResult) Inserted() int64 {
	var n int64
	for _, s := range r.Sources {
		n += s.Inserted
	}
	return n
}

type ExtractResult struct {
	Artworks   int `json:"artworks"`
	Undecoded  int `json:"undecoded"`
	Candidates int `json:"candidates"`
	Written    int `json:"written"`
	Duplicates int `json:"duplicates"`
}
