package embedder

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"ArtSeek/internal/config"
)

// ImageEmbedder 图片向量化黑盒。返回的向量条数与输入一致，未必已归一化
type ImageEmbedder interface {
	EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error)
}

type EmbedderMeta struct {
	Provider string
	Model    string
	Dim      int
}

func NewEmbedderFromConfig(conf *config.Config) (ImageEmbedder, EmbedderMeta, error) {
	if conf == nil {
		return nil, EmbedderMeta{}, fmt.Errorf("nil config")
	}
	ec := conf.EmbeddingConfig
	dim := ec.Dimensions
	model := strings.TrimSpace(ec.Model)

	switch strings.ToLower(strings.TrimSpace(ec.Provider)) {
	case "", "mock":
		if model == "" {
			model = "mock-grid"
		}
		return NewMockEmbedder(dim), EmbedderMeta{Provider: "mock", Model: model, Dim: dim}, nil
	case "http":
		endpoint := strings.TrimSpace(ec.Endpoint)
		if endpoint == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("http embedding missing endpoint")
		}
		timeout := 120 * time.Second
		if ec.TimeoutSeconds > 0 {
			timeout = time.Duration(ec.TimeoutSeconds) * time.Second
		}
		em := NewHTTPEmbedder(HTTPConfig{
			Endpoint:  endpoint,
			APIKey:    strings.TrimSpace(ec.APIKey),
			Model:     model,
			ImageSize: ec.ImageSize,
			Timeout:   timeout,
		})
		return em, EmbedderMeta{Provider: "http", Model: model, Dim: dim}, nil
	default:
		return nil, EmbedderMeta{}, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
}
