package http

import (
	"slices"

	"ArtSeek/internal/config"
	searchHandler "ArtSeek/internal/modules/search/interface/http"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewEngine 组装只读查询服务的路由。依赖由调用方显式构造后传入
func NewEngine(conf *config.Config, queryH *searchHandler.QueryHandler) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if slices.Contains(conf.AllowOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = conf.AllowOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	ge.Use(cors.New(corsConfig))
	ge.Use(ssl.SecureHandler(conf.MainConfig.Host, conf.MainConfig.Port, conf.ForceTLS, gin.Mode() != gin.ReleaseMode))

	ge.GET("/search", queryH.Search)
	ge.GET("/random", queryH.Random)
	ge.GET("/healthz", queryH.Healthz)
	ge.GET("/metrics", gin.WrapH(metrics.Handler()))

	return ge
}
