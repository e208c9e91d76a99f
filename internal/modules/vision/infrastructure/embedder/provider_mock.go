package embedder

import (
	"context"
	"image"
	"math"
)

// MockEmbedder 按像素网格取平均色做特征，同一张图总得到同一个向量，相近的图得到相近的向量
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embedOne(img)
	}
	return out, nil
}

func (m *MockEmbedder) embedOne(img image.Image) []float32 {
	vec := make([]float32, m.Dim)
	if m.Dim == 0 || img == nil {
		return vec
	}
	b := img.Bounds()
	if b.Empty() {
		return vec
	}

	cells := (m.Dim + 2) / 3
	cols := int(math.Ceil(math.Sqrt(float64(cells))))
	rows := (cells + cols - 1) / cols
	for j := range vec {
		cell, channel := j/3, j%3
		cx, cy := cell%cols, cell/cols
		x0 := b.Min.X + cx*b.Dx()/cols
		x1 := b.Min.X + (cx+1)*b.Dx()/cols
		y0 := b.Min.Y + cy*b.Dy()/rows
		y1 := b.Min.Y + (cy+1)*b.Dy()/rows
		vec[j] = cellMean(img, x0, x1, y0, y1, channel) - 0.5
	}
	return vec
}

// cellMean 单元格内某通道的平均值，映射到 [0,1]。单元格退化成空区域时取左上角像素
func cellMean(img image.Image, x0, x1, y0, y1, channel int) float32 {
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	var sum float64
	var n int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			switch channel {
			case 0:
				sum += float64(r)
			case 1:
				sum += float64(g)
			default:
				sum += float64(bl)
			}
			n++
		}
	}
	return float32(sum / float64(n) / 0xffff)
}
