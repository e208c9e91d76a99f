package respond

type IngestResult struct {
	Batches       int   `json:"batches"`
	FailedBatches int   `json:"failed_batches"`
	Samples       int   `json:"samples"`
	Existing      int   `json:"existing"`    // 已入库，跳过
	Duplicates    int   `json:"duplicates"`  // 同批内重复 URL
	Orphaned      int   `json:"orphaned"`    // artwork 不存在
	Undecodable   int   `json:"undecodable"` // 图片解码失败或向量为零
	Inserted      int   `json:"inserted"`
	DurationMs    int64 `json:"duration_ms"`
}
