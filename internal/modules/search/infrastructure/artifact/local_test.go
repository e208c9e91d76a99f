package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ArtSeek/internal/config"
	"ArtSeek/internal/modules/search/infrastructure/ivf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalWriteCommitIsAtomic(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)
	ctx := context.Background()

	w, err := store.Write(ctx, "idx/index.ivf")
	require.NoError(t, err)
	_, err = io.WriteString(w, "v1")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "idx/index.ivf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Commit())
	b, err := os.ReadFile(filepath.Join(root, "idx", "index.ivf"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))

	// 中途放弃的写入不影响已有文件，也不留临时文件
	w, err = store.Write(ctx, "idx/index.ivf")
	require.NoError(t, err)
	_, err = io.WriteString(w, "v2-partial")
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	b, err = os.ReadFile(filepath.Join(root, "idx", "index.ivf"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))
	entries, err := os.ReadDir(filepath.Join(root, "idx"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"../outside", "/etc/passwd", ".", "a/../../b"} {
		_, err := store.Write(ctx, p)
		assert.Error(t, err, p)
	}
}

func TestLocalReadMissingAndDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Read(ctx, "nope.ivf")
	assert.ErrorIs(t, err, ErrNotExist)
	require.NoError(t, store.Delete(ctx, "nope.ivf"))
}

func TestSaveLoadIndexThroughStores(t *testing.T) {
	b, err := ivf.NewBuilder(3)
	require.NoError(t, err)
	for i, v := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.6, 0.8, 0}} {
		require.NoError(t, b.Add(int64(i+1), v))
	}
	ix := b.Build(ivf.TrainOptions{Seed: 3}, 2)
	ix.Meta.BuildID = "abc"

	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	stores := map[string]FileStore{
		"local": local,
		"s3":    NewS3(newMockS3(), "artseek", "p"),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, SaveIndex(ctx, store, "index.ivf", ix))

			got, err := LoadIndex(ctx, store, "index.ivf")
			require.NoError(t, err)
			assert.Equal(t, 4, got.Len())
			assert.Equal(t, "abc", got.Meta.BuildID)

			hits, err := got.Search([]float32{0, 1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, 1, hits[0].Pos)

			_, err = LoadIndex(ctx, store, "other.ivf")
			assert.ErrorIs(t, err, ErrNotExist)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	store, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "local", LocalRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewFromConfig(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.Error(t, err)
}
