package http

import (
	"fmt"

	"ArtSeek/internal/modules/search/application/dto/request"
	"ArtSeek/internal/modules/search/application/dto/respond"
	"ArtSeek/internal/modules/search/application/service"
	"ArtSeek/pkg/back"
	"ArtSeek/pkg/xerr"
	"ArtSeek/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueryLimits struct {
	DefaultLimit int
	MaxLimit     int
}

// QueryHandler 相似检索与随机浏览
type QueryHandler struct {
	querySvc service.QueryService
	limits   QueryLimits
}

func NewQueryHandler(querySvc service.QueryService, limits QueryLimits) *QueryHandler {
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 20
	}
	if limits.MaxLimit < limits.DefaultLimit {
		limits.MaxLimit = limits.DefaultLimit
	}
	return &QueryHandler{querySvc: querySvc, limits: limits}
}

// page 补齐默认值并校验范围
func (h *QueryHandler) page(offset, limit *int) (int, int, error) {
	o, l := 0, h.limits.DefaultLimit
	if offset != nil {
		o = *offset
	}
	if limit != nil {
		l = *limit
	}
	if o < 0 {
		return 0, 0, xerr.New(xerr.BadRequest, "offset must be >= 0")
	}
	if l <= 0 || l > h.limits.MaxLimit {
		return 0, 0, xerr.New(xerr.BadRequest, fmt.Sprintf("limit must be in [1, %d]", h.limits.MaxLimit))
	}
	return o, l, nil
}

// Search
//
// 路由: GET /search?url=&offset=&limit=
// 响应体: ResultsRespond，未入库的 url 返回空列表
func (h *QueryHandler) Search(c *gin.Context) {
	var req request.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	offset, limit, err := h.page(req.Offset, req.Limit)
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	items, err := h.querySvc.Search(c.Request.Context(), req.URL, offset, limit)
	if err != nil {
		zlog.Error("search failed", zap.String("url", req.URL), zap.Error(err))
		back.Result(c, nil, err)
		return
	}
	back.Success(c, respond.ResultsRespond{Results: items})
}

// Random
//
// 路由: GET /random?offset=&limit=&seed=
func (h *QueryHandler) Random(c *gin.Context) {
	var req request.RandomRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	offset, limit, err := h.page(req.Offset, req.Limit)
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	items, err := h.querySvc.Random(c.Request.Context(), offset, limit, req.Seed)
	if err != nil {
		zlog.Error("random failed", zap.Error(err))
		back.Result(c, nil, err)
		return
	}
	back.Success(c, respond.ResultsRespond{Results: items})
}

// Healthz 当前加载的索引信息
func (h *QueryHandler) Healthz(c *gin.Context) {
	back.Success(c, h.querySvc.Info())
}
