package shard

import (
	"archive/tar"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	name string
	body []byte
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func tarBytes(t *testing.T, members []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(m.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func readAll(t *testing.T, r *Reader) []*Sample {
	t.Helper()
	var out []*Sample
	for {
		s, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, s)
	}
}

func TestReaderOrderAndFields(t *testing.T) {
	dir := t.TempDir()
	red := pngBytes(t, color.RGBA{R: 255, A: 255})

	writeFile(t, dir, "00001.tar", tarBytes(t, []member{
		{"000010000.png", red},
		{"000010000.json", []byte(`{"url":"https://img/c.png","caption":"7","status":"success","width":384,"height":384,"original_width":1200,"original_height":900}`)},
		{"000010001.jpg", red},
		{"000010001.json", []byte(`{"url":"https://img/d.jpg","caption":8,"status":"success","width":10,"height":20,"thumbnail_url":"https://img/d_s.jpg"}`)},
	}))
	writeFile(t, dir, "00000.tar", tarBytes(t, []member{
		{"000000000.png", red},
		{"000000000.txt", []byte("3")},
		{"000000000.json", []byte(`{"url":"https://img/a.png","caption":"3","status":"success","THUMBNAIL":"https://img/a_s.png"}`)},
		{"000000001.png", red},
		{"000000001.json", []byte(`{"url":"https://img/b.png","caption":"4","status":"failed_to_download"}`)},
		{"000000002.json", []byte(`{"url":"https://img/e.png","caption":"5","status":"success"}`)},
	}))

	paths, err := Glob(filepath.Join(dir, "*.tar"))
	require.NoError(t, err)
	require.Len(t, paths, 2)

	r := NewReader(paths)
	defer r.Close()
	samples := readAll(t, r)

	require.Len(t, samples, 3)
	assert.Equal(t, "https://img/a.png", samples[0].URL)
	assert.Equal(t, int64(3), samples[0].ArtworkID)
	require.NotNil(t, samples[0].ThumbnailURL)
	assert.Equal(t, "https://img/a_s.png", *samples[0].ThumbnailURL)
	assert.Equal(t, "png", samples[0].Format)

	assert.Equal(t, "https://img/c.png", samples[1].URL)
	assert.Equal(t, 1200, samples[1].Width)
	assert.Equal(t, 900, samples[1].Height)
	assert.Nil(t, samples[1].ThumbnailURL)

	assert.Equal(t, "https://img/d.jpg", samples[2].URL)
	assert.Equal(t, int64(8), samples[2].ArtworkID)
	assert.Equal(t, 10, samples[2].Width)
	assert.Equal(t, "jpg", samples[2].Format)
	require.NotNil(t, samples[2].ThumbnailURL)
	assert.Equal(t, "https://img/d_s.jpg", *samples[2].ThumbnailURL)

	// 下载失败的样本和缺图的样本
	assert.Equal(t, 2, r.Skipped())
}

func TestReaderSkipsCorruptShard(t *testing.T) {
	dir := t.TempDir()
	red := pngBytes(t, color.RGBA{R: 255, A: 255})

	good := tarBytes(t, []member{
		{"k0.png", red},
		{"k0.json", []byte(`{"url":"https://img/0.png","caption":"1","status":"success"}`)},
	})
	// 第二个分片在最后一个成员的数据中间被截断
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range []member{
		{"k1.png", red},
		{"k1.json", []byte(`{"url":"https://img/1.png","caption":"1","status":"success"}`)},
		{"k2.png", red},
		{"k2.json", append([]byte(`{"url":"https://img/2.png","caption":"1","status":"success","pad":"`), append(bytes.Repeat([]byte("x"), 2000), '"', '}')...)},
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(m.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Flush())
	truncated := buf.Bytes()[:buf.Len()-1000]

	paths := []string{
		writeFile(t, dir, "a.tar", good),
		writeFile(t, dir, "b.tar", truncated),
		writeFile(t, dir, "c.tar", bytes.Repeat([]byte("garbage!"), 128)),
		writeFile(t, dir, "d.tar", good),
	}

	r := NewReader(paths)
	defer r.Close()
	samples := readAll(t, r)

	urls := make([]string, 0, len(samples))
	for _, s := range samples {
		urls = append(urls, s.URL)
	}
	assert.Equal(t, []string{"https://img/0.png", "https://img/1.png", "https://img/0.png"}, urls)
	assert.Equal(t, 1, r.Skipped())
}

func TestReaderSkipsOversizeSampleOnly(t *testing.T) {
	old := maxMemberBytes
	maxMemberBytes = 1024
	t.Cleanup(func() { maxMemberBytes = old })

	dir := t.TempDir()
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	p := writeFile(t, dir, "00000.tar", tarBytes(t, []member{
		{"k0.png", red},
		{"k0.json", []byte(`{"url":"https://img/0.png","caption":"1","status":"success"}`)},
		{"k1.png", bytes.Repeat([]byte{0xff}, 4096)},
		{"k1.json", []byte(`{"url":"https://img/1.png","caption":"1","status":"success"}`)},
		{"k2.png", red},
		{"k2.json", []byte(`{"url":"https://img/2.png","caption":"1","status":"success"}`)},
	}))

	r := NewReader([]string{p})
	defer r.Close()
	samples := readAll(t, r)

	require.Len(t, samples, 2)
	assert.Equal(t, "https://img/0.png", samples[0].URL)
	assert.Equal(t, "https://img/2.png", samples[1].URL)
	assert.Equal(t, 1, r.Skipped())
}

func TestParseCaption(t *testing.T) {
	id, err := parseCaption([]byte(`"42"`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = parseCaption([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{``, `null`, `"abc"`, `"-1"`, `0`} {
		_, err := parseCaption([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestSplitKey(t *testing.T) {
	key, ext := splitKey("dir/000001.original.JPG")
	assert.Equal(t, "dir/000001", key)
	assert.Equal(t, "original.jpg", ext)

	key, ext = splitKey("noext")
	assert.Equal(t, "noext", key)
	assert.Empty(t, ext)
}
