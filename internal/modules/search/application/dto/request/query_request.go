package request

// SearchRequest GET /search
type SearchRequest struct {
	URL    string `form:"url" binding:"required"` // 参考图片 URL（必填）
	Offset *int   `form:"offset"`                 // 默认 0
	Limit  *int   `form:"limit"`                  // 默认 queryConfig.defaultLimit
}

// RandomRequest GET /random
type RandomRequest struct {
	Offset *int   `form:"offset"`
	Limit  *int   `form:"limit"`
	Seed   *int64 `form:"seed"` // 同一个 seed 多次翻页得到同一个随机序列
}
