package extract

import (
	"encoding/csv"
	"io"
	"strconv"
)

var manifestHeader = []string{"URL", "ID", "THUMBNAIL"}

// ManifestWriter 输出给外部下载器的 CSV 清单，按 URL 去重（先到先得）
type ManifestWriter struct {
	w    *csv.Writer
	seen map[string]struct{}
	rows int
	dups int
}

func NewManifestWriter(w io.Writer) (*ManifestWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(manifestHeader); err != nil {
		return nil, err
	}
	return &ManifestWriter{w: cw, seen: make(map[string]struct{})}, nil
}

// Add 返回是否写入；重复 URL 返回 false
func (m *ManifestWriter) Add(artworkID int64, c Candidate) (bool, error) {
	if _, ok := m.seen[c.URL]; ok {
		m.dups++
		return false, nil
	}
	m.seen[c.URL] = struct{}{}
	if err := m.w.Write([]string{c.URL, strconv.FormatInt(artworkID, 10), c.Thumbnail}); err != nil {
		return false, err
	}
	m.rows++
	return true, nil
}

func (m *ManifestWriter) Rows() int       { return m.rows }
func (m *ManifestWriter) Duplicates() int { return m.dups }

func (m *ManifestWriter) Flush() error {
	m.w.Flush()
	return m.w.Error()
}
