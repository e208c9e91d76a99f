package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ArtSeek/internal/config"
	"ArtSeek/internal/modules/search/application/dto/respond"
	searchHandler "ArtSeek/internal/modules/search/interface/http"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuery struct{}

func (stubQuery) Search(context.Context, string, int, int) ([]respond.ImageItem, error) {
	return []respond.ImageItem{}, nil
}

func (stubQuery) Random(context.Context, int, int, *int64) ([]respond.ImageItem, error) {
	return []respond.ImageItem{}, nil
}

func (stubQuery) Info() respond.IndexInfo { return respond.IndexInfo{Status: "ok"} }

func newTestEngine(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	conf := config.Default()
	if len(origins) > 0 {
		conf.AllowOrigins = origins
	}
	h := searchHandler.NewQueryHandler(stubQuery{}, searchHandler.QueryLimits{DefaultLimit: 20, MaxLimit: 200})
	return NewEngine(conf, h)
}

func TestEngineRoutes(t *testing.T) {
	ge := newTestEngine()
	for _, target := range []string{"/search?url=x", "/random", "/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		ge.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, w.Code, target)
	}

	w := httptest.NewRecorder()
	ge.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?url=x", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestEngineCORS(t *testing.T) {
	ge := newTestEngine("https://gallery.example")

	req := httptest.NewRequest(http.MethodGet, "/random", nil)
	req.Header.Set("Origin", "https://gallery.example")
	w := httptest.NewRecorder()
	ge.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://gallery.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/random", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w = httptest.NewRecorder()
	ge.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
