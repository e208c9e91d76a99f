package respond

import "time"

// ImageItem 单张图片结果
type ImageItem struct {
	URL          string  `json:"url"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

// ResultsRespond /search 与 /random 的响应体
type ResultsRespond struct {
	Results []ImageItem `json:"results"`
}

// IndexInfo 当前加载的索引信息（/healthz）
type IndexInfo struct {
	Status  string    `json:"status"`
	BuildID string    `json:"build_id"`
	BuiltAt time.Time `json:"built_at"`
	Vectors int       `json:"vectors"`
	NList   int       `json:"nlist"`
	Dim     int       `json:"dim"`
	NProbe  int       `json:"nprobe"`
}

// BuildResult 一次索引构建的结果
type BuildResult struct {
	BuildID    string `json:"build_id"`
	Path       string `json:"path"`
	Vectors    int    `json:"vectors"`
	NList      int    `json:"nlist"`
	Dim        int    `json:"dim"`
	DurationMs int64  `json:"duration_ms"`
}
