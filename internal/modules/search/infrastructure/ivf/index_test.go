package ivf

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomUnit(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	normalize(v)
	return v
}

func buildRandom(t *testing.T, n, dim int, seed uint64) (*Index, [][]float32) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 7))
	b, err := NewBuilder(dim)
	require.NoError(t, err)
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = randomUnit(rng, dim)
		require.NoError(t, b.Add(int64(i+1), vecs[i]))
	}
	ix := b.Build(TrainOptions{Iterations: 10, PerList: 64, Seed: 42}, 4)
	return ix, vecs
}

func TestBuilderRejectsMisalignedIDs(t *testing.T) {
	b, err := NewBuilder(2)
	require.NoError(t, err)
	require.NoError(t, b.Add(1, []float32{1, 0}))

	err = b.Add(3, []float32{0, 1})
	assert.ErrorIs(t, err, ErrMisaligned)
	assert.Equal(t, 1, b.Len())

	assert.Error(t, b.Add(2, []float32{0, 1, 0}))
	require.NoError(t, b.Add(2, []float32{0, 1}))
	assert.Equal(t, 2, b.Len())

	_, err = NewBuilder(0)
	assert.Error(t, err)
}

func TestNListFor(t *testing.T) {
	assert.Equal(t, 0, NListFor(0))
	assert.Equal(t, 1, NListFor(1))
	assert.Equal(t, 1, NListFor(3))
	assert.Equal(t, 10, NListFor(100))
	assert.Equal(t, 31, NListFor(999))
}

func TestSearchNearDuplicates(t *testing.T) {
	b, err := NewBuilder(3)
	require.NoError(t, err)
	a := []float32{1, 0, 0}
	bb := []float32{0.99, 0.14, 0}
	normalize(bb)
	c := []float32{0, 0, 1}
	for i, v := range [][]float32{a, bb, c} {
		require.NoError(t, b.Add(int64(i+1), v))
	}
	ix := b.Build(TrainOptions{Seed: 1}, 16)
	require.Equal(t, 3, ix.Len())
	require.Equal(t, 1, ix.NList())

	hits, err := ix.Search(a, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Pos)
	assert.Equal(t, 1, hits[1].Pos)

	hits, err = ix.Search(c, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 2, hits[0].Pos)
}

func TestSearchReflexive(t *testing.T) {
	ix, vecs := buildRandom(t, 400, 16, 3)
	require.Equal(t, 20, ix.NList())
	ix.SetNProbe(1)

	for pos, v := range vecs {
		hits, err := ix.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, pos, hits[0].Pos)
	}
}

func TestSearchPrefixConsistent(t *testing.T) {
	ix, vecs := buildRandom(t, 300, 8, 5)

	full, err := ix.Search(vecs[17], 20)
	require.NoError(t, err)
	require.Len(t, full, 20)
	first, err := ix.Search(vecs[17], 10)
	require.NoError(t, err)
	assert.Equal(t, full[:10], first)

	for i := 1; i < len(full); i++ {
		assert.True(t, !better(full[i], full[i-1]), "results must be sorted")
	}
}

func TestSearchTiesBrokenByPosition(t *testing.T) {
	b, err := NewBuilder(2)
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Add(int64(i), []float32{1, 0}))
	}
	ix := b.Build(TrainOptions{Seed: 9}, 8)

	hits, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].Pos, hits[1].Pos, hits[2].Pos})
}

func TestSearchEdgeCases(t *testing.T) {
	b, err := NewBuilder(4)
	require.NoError(t, err)
	empty := b.Build(TrainOptions{}, 4)
	assert.Zero(t, empty.Len())
	hits, err := empty.Search([]float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	ix, _ := buildRandom(t, 10, 4, 1)
	_, err = ix.Search([]float32{1, 0}, 3)
	assert.Error(t, err)
	hits, err = ix.Search([]float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	ix.SetNProbe(1000)
	hits, err = ix.Search([]float32{1, 0, 0, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, hits, 10)
}

func TestSearchLargeKBoundedByIndexSize(t *testing.T) {
	ix, vecs := buildRandom(t, 3, 4, 1)
	ix.SetNProbe(1000)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	hits, err := ix.Search(vecs[0], 50_000_001)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

	hits, err = ix.Search(vecs[0], math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestBuildDeterministic(t *testing.T) {
	a, _ := buildRandom(t, 200, 8, 11)
	b, _ := buildRandom(t, 200, 8, 11)
	assert.Equal(t, a.centroids, b.centroids)
	assert.Equal(t, a.lists, b.lists)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ix, vecs := buildRandom(t, 150, 8, 21)
	ix.Meta = Meta{BuildID: "b-1", BuiltAt: time.Unix(1700000000, 0).UTC()}

	var buf bytes.Buffer
	require.NoError(t, ix.Save(&buf))
	got, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, ix.Meta, got.Meta)
	assert.Equal(t, ix.Dim(), got.Dim())
	assert.Equal(t, ix.NList(), got.NList())
	assert.Equal(t, ix.Len(), got.Len())
	assert.Equal(t, ix.NProbe(), got.NProbe())

	want, err := ix.Search(vecs[3], 15)
	require.NoError(t, err)
	have, err := got.Search(vecs[3], 15)
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestSaveLoadEmpty(t *testing.T) {
	b, err := NewBuilder(4)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, b.Build(TrainOptions{}, 2).Save(&buf))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Zero(t, got.Len())
	assert.Equal(t, 4, got.Dim())
}

func TestLoadRejectsCorruptInput(t *testing.T) {
	ix, _ := buildRandom(t, 20, 4, 2)
	var buf bytes.Buffer
	require.NoError(t, ix.Save(&buf))
	raw := buf.Bytes()

	bad := append([]byte("NOPE"), raw[4:]...)
	_, err := Load(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrCorrupt)

	badVersion := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(badVersion[4:], 99)
	_, err = Load(bytes.NewReader(badVersion))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Load(bytes.NewReader(raw[:len(raw)-10]))
	assert.Error(t, err)
}
