package ivf

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
)

// TrainOptions 球面 k-means 训练参数
type TrainOptions struct {
	Iterations int
	// PerList 每个簇最多使用的训练样本数，总样本上限为 PerList*nlist
	PerList int
	Seed    int64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.Iterations <= 0 {
		o.Iterations = 20
	}
	if o.PerList <= 0 {
		o.PerList = 256
	}
	return o
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// nearestCentroid 内积最大的质心；并列时取下标小的
func nearestCentroid(vec, centroids []float32, dim int) int {
	best, bestScore := 0, float32(math.Inf(-1))
	k := len(centroids) / dim
	for j := 0; j < k; j++ {
		if s := dot(vec, centroids[j*dim:(j+1)*dim]); s > bestScore {
			best, bestScore = j, s
		}
	}
	return best
}

// trainSpherical 在 vectors（n*dim 平铺）上训练 k 个单位长度质心。
// 样本数超过 PerList*k 时按固定种子抽样，结果只取决于输入与种子
func trainSpherical(vectors []float32, dim, k int, opts TrainOptions) []float32 {
	opts = opts.withDefaults()
	n := len(vectors) / dim
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), 0x9e3779b97f4a7c15))

	sample := vectors
	if limit := opts.PerList * k; n > limit {
		perm := rng.Perm(n)[:limit]
		sample = make([]float32, 0, limit*dim)
		for _, p := range perm {
			sample = append(sample, vectors[p*dim:(p+1)*dim]...)
		}
	}
	m := len(sample) / dim

	centroids := make([]float32, k*dim)
	for j, p := range rng.Perm(m)[:k] {
		copy(centroids[j*dim:(j+1)*dim], sample[p*dim:(p+1)*dim])
	}

	assign := make([]int, m)
	for i := range assign {
		assign[i] = -1
	}
	sums := make([]float32, k*dim)
	counts := make([]int, k)
	workers := runtime.GOMAXPROCS(0)

	for iter := 0; iter < opts.Iterations; iter++ {
		changed := assignParallel(sample, centroids, dim, assign, workers)
		if changed == 0 && iter > 0 {
			break
		}

		clear(sums)
		clear(counts)
		for i := 0; i < m; i++ {
			c := assign[i]
			vec := sample[i*dim : (i+1)*dim]
			row := sums[c*dim : (c+1)*dim]
			for d := range row {
				row[d] += vec[d]
			}
			counts[c]++
		}
		for j := 0; j < k; j++ {
			dst := centroids[j*dim : (j+1)*dim]
			if counts[j] == 0 {
				// 空簇用随机样本重新播种
				p := rng.IntN(m)
				copy(dst, sample[p*dim:(p+1)*dim])
				continue
			}
			copy(dst, sums[j*dim:(j+1)*dim])
			normalize(dst)
		}
	}
	return centroids
}

func assignParallel(sample, centroids []float32, dim int, assign []int, workers int) int {
	m := len(assign)
	if workers < 1 {
		workers = 1
	}
	chunk := (m + workers - 1) / workers
	changed := make([]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, m)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				c := nearestCentroid(sample[i*dim:(i+1)*dim], centroids, dim)
				if assign[i] != c {
					assign[i] = c
					changed[w]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range changed {
		total += c
	}
	return total
}
