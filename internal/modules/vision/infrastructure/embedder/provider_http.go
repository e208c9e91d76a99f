package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"
)

type HTTPConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	ImageSize int
	Timeout   time.Duration
}

// HTTPEmbedder 调用外部推理服务：POST base64 JPEG，返回等长的向量列表
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	return &HTTPEmbedder{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type embedRequest struct {
	Model     string   `json:"model,omitempty"`
	ImageSize int      `json:"image_size,omitempty"`
	Images    []string `json:"images"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (e *HTTPEmbedder) EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}
	req := embedRequest{Model: e.cfg.Model, ImageSize: e.cfg.ImageSize, Images: make([]string, len(images))}
	var buf bytes.Buffer
	for i, img := range images {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
			return nil, fmt.Errorf("encode image %d: %w", i, err)
		}
		req.Images[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding endpoint status %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("embedding endpoint: %s", out.Error)
	}
	if len(out.Embeddings) != len(images) {
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d images", len(out.Embeddings), len(images))
	}
	return out.Embeddings, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
