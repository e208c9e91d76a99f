package shard

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ArtSeek/pkg/zlog"

	"go.uber.org/zap"
)

var maxMemberBytes int64 = 64 << 20

var errMemberTooLarge = errors.New("member too large")

// Sample 一张下载好的图片及其元数据
type Sample struct {
	Shard        string
	Key          string
	URL          string
	ArtworkID    int64
	Width        int
	Height       int
	ThumbnailURL *string
	Image        []byte
	Format       string
}

type sampleMeta struct {
	URL            string          `json:"url"`
	Caption        json.RawMessage `json:"caption"`
	Status         string          `json:"status"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	OriginalWidth  int             `json:"original_width"`
	OriginalHeight int             `json:"original_height"`
	ThumbnailURL   string          `json:"thumbnail_url"`
	Thumbnail      string          `json:"THUMBNAIL"`
}

type group struct {
	key    string
	image  []byte
	format string
	meta   []byte

	// oversize 组内有超限成员，整组丢弃
	oversize bool
}

// Reader 顺序读取一组 webdataset tar 分片：先按分片文件名，再按分片内顺序
type Reader struct {
	paths []string
	idx   int

	f     *os.File
	tr    *tar.Reader
	shard string
	cur   *group

	skipped int
}

// Glob 按字典序返回匹配的分片路径
func Glob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func NewReader(paths []string) *Reader {
	p := append([]string(nil), paths...)
	sort.Strings(p)
	return &Reader{paths: p}
}

// Skipped 因状态失败、字段缺失或分片损坏而丢弃的样本数
func (r *Reader) Skipped() int { return r.skipped }

// Next 返回下一个完整样本；全部读完返回 io.EOF。损坏的分片会被记录并跳过
func (r *Reader) Next() (*Sample, error) {
	for {
		if r.tr == nil {
			if r.idx >= len(r.paths) {
				return nil, io.EOF
			}
			p := r.paths[r.idx]
			r.idx++
			f, err := os.Open(p)
			if err != nil {
				zlog.Warn("open shard failed", zap.String("shard", p), zap.Error(err))
				continue
			}
			r.f, r.tr, r.shard = f, tar.NewReader(f), p
		}

		hdr, err := r.tr.Next()
		if errors.Is(err, io.EOF) {
			s := r.flush()
			r.closeShard()
			if s != nil {
				return s, nil
			}
			continue
		}
		if err != nil {
			r.abandonShard(err)
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		key, ext := splitKey(hdr.Name)
		var ready *Sample
		if r.cur != nil && r.cur.key != key {
			ready = r.flush()
		}
		if r.cur == nil {
			r.cur = &group{key: key}
		}

		switch ext {
		case "jpg", "jpeg", "png", "json":
			b, err := readMember(r.tr, hdr.Size)
			if errors.Is(err, errMemberTooLarge) {
				zlog.Warn("shard member too large, skipping sample",
					zap.String("shard", r.shard), zap.String("member", hdr.Name), zap.Int64("size", hdr.Size))
				r.cur.oversize = true
				if _, err = io.Copy(io.Discard, r.tr); err == nil {
					break
				}
			}
			if err != nil {
				r.abandonShard(err)
				if ready != nil {
					return ready, nil
				}
				continue
			}
			if ext == "json" {
				r.cur.meta = b
			} else {
				r.cur.image, r.cur.format = b, ext
			}
		}

		if ready != nil {
			return ready, nil
		}
	}
}

func (r *Reader) Close() error {
	r.cur = nil
	return r.closeShard()
}

func (r *Reader) closeShard() error {
	var err error
	if r.f != nil {
		err = r.f.Close()
	}
	r.f, r.tr, r.shard = nil, nil, ""
	return err
}

func (r *Reader) abandonShard(cause error) {
	zlog.Warn("corrupt shard, skipping rest", zap.String("shard", r.shard), zap.Error(cause))
	if r.cur != nil {
		r.skipped++
		r.cur = nil
	}
	_ = r.closeShard()
}

// flush 把当前分组转成样本；不完整或无效时返回 nil
func (r *Reader) flush() *Sample {
	g := r.cur
	r.cur = nil
	if g == nil {
		return nil
	}
	s, err := buildSample(r.shard, g)
	if err != nil {
		r.skipped++
		zlog.Debug("shard sample skipped", zap.String("shard", r.shard), zap.String("key", g.key), zap.Error(err))
		return nil
	}
	return s
}

func buildSample(shardPath string, g *group) (*Sample, error) {
	if g.oversize {
		return nil, errMemberTooLarge
	}
	if len(g.image) == 0 {
		return nil, errors.New("no image member")
	}
	if len(g.meta) == 0 {
		return nil, errors.New("no json member")
	}
	var m sampleMeta
	if err := json.Unmarshal(g.meta, &m); err != nil {
		return nil, fmt.Errorf("decode json member: %w", err)
	}
	if m.Status != "" && m.Status != "success" {
		return nil, fmt.Errorf("download status %q", m.Status)
	}
	url := strings.TrimSpace(m.URL)
	if url == "" {
		return nil, errors.New("missing url")
	}
	artworkID, err := parseCaption(m.Caption)
	if err != nil {
		return nil, err
	}

	s := &Sample{
		Shard:     shardPath,
		Key:       g.key,
		URL:       url,
		ArtworkID: artworkID,
		Width:     m.OriginalWidth,
		Height:    m.OriginalHeight,
		Image:     g.image,
		Format:    g.format,
	}
	if s.Width == 0 {
		s.Width = m.Width
	}
	if s.Height == 0 {
		s.Height = m.Height
	}
	thumb := strings.TrimSpace(m.ThumbnailURL)
	if thumb == "" {
		thumb = strings.TrimSpace(m.Thumbnail)
	}
	if thumb != "" {
		s.ThumbnailURL = &thumb
	}
	return s, nil
}

// parseCaption caption 是清单里的 artwork id，可能被写成字符串或数字
func parseCaption(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing caption")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid caption %s", string(raw))
	}
	return id, nil
}

// splitKey webdataset 约定：文件名第一个点之前是样本 key
func splitKey(name string) (string, string) {
	dir, base := path.Split(name)
	i := strings.Index(base, ".")
	if i < 0 {
		return name, ""
	}
	return dir + base[:i], strings.ToLower(base[i+1:])
}

func readMember(r io.Reader, size int64) ([]byte, error) {
	if size > maxMemberBytes {
		return nil, fmt.Errorf("%w: %d bytes", errMemberTooLarge, size)
	}
	return io.ReadAll(io.LimitReader(r, size))
}
