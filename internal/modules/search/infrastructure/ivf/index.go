package ivf

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// ErrMisaligned 扫描到的行 id 与即将写入的位置不对应（id 必须等于 位置+1）
var ErrMisaligned = errors.New("ivf: ordinal misaligned with index position")

// Hit 一次近邻查询的结果，Pos 为 0 起始的索引位置
type Hit struct {
	Pos   int
	Score float32
}

// Meta 构建信息，随索引一起持久化
type Meta struct {
	BuildID string
	BuiltAt time.Time
}

// Index 倒排文件 + 原始向量（IVF-Flat），内积度量。构建后只读
type Index struct {
	Meta Meta

	dim       int
	nlist     int
	centroids []float32 // nlist*dim
	lists     [][]uint32
	vectors   []float32 // n*dim，按位置排列
	n         int
	nprobe    atomic.Int32
}

func (ix *Index) Dim() int   { return ix.dim }
func (ix *Index) NList() int { return ix.nlist }
func (ix *Index) Len() int   { return ix.n }

func (ix *Index) NProbe() int { return int(ix.nprobe.Load()) }

// SetNProbe 查询时探测的簇数，超过 nlist 时按 nlist 处理
func (ix *Index) SetNProbe(nprobe int) {
	if nprobe < 1 {
		nprobe = 1
	}
	ix.nprobe.Store(int32(nprobe))
}

// Vector 返回 pos 位置向量的只读视图
func (ix *Index) Vector(pos int) []float32 {
	if pos < 0 || pos >= ix.n {
		return nil
	}
	return ix.vectors[pos*ix.dim : (pos+1)*ix.dim]
}

// Builder 按扫描顺序逐条接收向量，用单调游标保证位置与 id 对齐
type Builder struct {
	dim     int
	vectors []float32
	cursor  int
}

func NewBuilder(dim int) (*Builder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("ivf: invalid dimension %d", dim)
	}
	return &Builder{dim: dim}, nil
}

// Add 追加 ordinalID 对应的向量。ordinalID 必须恰好等于当前位置+1
func (b *Builder) Add(ordinalID int64, vec []float32) error {
	if ordinalID != int64(b.cursor)+1 {
		return fmt.Errorf("%w: position %d got id %d", ErrMisaligned, b.cursor, ordinalID)
	}
	if len(vec) != b.dim {
		return fmt.Errorf("ivf: id %d has dimension %d, want %d", ordinalID, len(vec), b.dim)
	}
	b.vectors = append(b.vectors, vec...)
	b.cursor++
	return nil
}

func (b *Builder) Len() int { return b.cursor }

// NListFor 簇数取 sqrt(n) 向下取整，至少为 1
func NListFor(n int) int {
	if n <= 0 {
		return 0
	}
	return max(1, int(math.Sqrt(float64(n))))
}

// Build 训练质心并按位置顺序把每条向量挂到最近的簇上
func (b *Builder) Build(opts TrainOptions, nprobe int) *Index {
	n := b.cursor
	ix := &Index{dim: b.dim, n: n, vectors: b.vectors}
	ix.SetNProbe(nprobe)
	if n == 0 {
		return ix
	}

	ix.nlist = NListFor(n)
	ix.centroids = trainSpherical(b.vectors, b.dim, ix.nlist, opts)
	ix.lists = make([][]uint32, ix.nlist)
	for pos := 0; pos < n; pos++ {
		c := nearestCentroid(ix.Vector(pos), ix.centroids, b.dim)
		ix.lists[c] = append(ix.lists[c], uint32(pos))
	}
	return ix
}

// better 分数高者优先，分数相同时位置小者优先
func better(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Pos < b.Pos
}

// hitHeap 以“最差”结果为堆顶，便于淘汰
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// Search 返回至多 k 个结果，按 (分数降序, 位置升序) 排列。同一索引上的结果对 k 满足前缀一致
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("ivf: query dimension %d, want %d", len(query), ix.dim)
	}
	if k <= 0 || ix.n == 0 {
		return nil, nil
	}

	probes := ix.probe(query, min(ix.NProbe(), ix.nlist))
	k = min(k, ix.n)
	h := make(hitHeap, 0, k)
	for _, c := range probes {
		for _, p := range ix.lists[c] {
			pos := int(p)
			hit := Hit{Pos: pos, Score: dot(query, ix.Vector(pos))}
			if len(h) < k {
				heap.Push(&h, hit)
			} else if better(hit, h[0]) {
				h[0] = hit
				heap.Fix(&h, 0)
			}
		}
	}

	out := []Hit(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out, nil
}

// probe 与 query 内积最大的 nprobe 个簇
func (ix *Index) probe(query []float32, nprobe int) []int {
	type cs struct {
		id    int
		score float32
	}
	scores := make([]cs, ix.nlist)
	for j := 0; j < ix.nlist; j++ {
		scores[j] = cs{id: j, score: dot(query, ix.centroids[j*ix.dim:(j+1)*ix.dim])}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return scores[a].id < scores[b].id
	})
	out := make([]int, nprobe)
	for i := range out {
		out[i] = scores[i].id
	}
	return out
}
