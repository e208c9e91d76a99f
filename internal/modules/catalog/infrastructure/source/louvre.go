package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/catalog/domain/repository"

	"golang.org/x/sync/errgroup"
)

const (
	louvreArkMarker     = "/ark:/53355/"
	louvreSitemapPath   = "/sitemap.xml"
	louvreSitemapFanout = 4
)

type louvreSource struct {
	client  *Client
	baseURL string
}

// NewLouvreSource 目录 B：没有平铺列表，需要遍历两级 sitemap
func NewLouvreSource(client *Client, baseURL string) repository.CatalogSource {
	return &louvreSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *louvreSource) Museum() string { return entity.MuseumLouvre }

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDoc 同时兼容 <sitemapindex> 与 <urlset>
type sitemapDoc struct {
	Sitemaps []sitemapLoc `xml:"sitemap"`
	URLs     []sitemapLoc `xml:"url"`
}

func (s *louvreSource) fetchSitemap(ctx context.Context, u string) (*sitemapDoc, error) {
	body, err := s.client.get(ctx, u, "application/xml")
	if err != nil {
		return nil, err
	}
	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", u, err)
	}
	return &doc, nil
}

func (s *louvreSource) ListRefs(ctx context.Context) ([]string, error) {
	index, err := s.fetchSitemap(ctx, s.baseURL+louvreSitemapPath)
	if err != nil {
		return nil, fmt.Errorf("louvre sitemap index: %w", err)
	}

	children := make([]string, 0, len(index.Sitemaps))
	for _, sm := range index.Sitemaps {
		if loc := strings.TrimSpace(sm.Loc); loc != "" {
			children = append(children, loc)
		}
	}

	// 按子 sitemap 下标收集，保证输出顺序与索引一致
	perChild := make([][]string, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(louvreSitemapFanout)
	for i, child := range children {
		g.Go(func() error {
			doc, err := s.fetchSitemap(gctx, child)
			if err != nil {
				return fmt.Errorf("louvre child sitemap: %w", err)
			}
			refs := make([]string, 0, len(doc.URLs))
			for _, u := range doc.URLs {
				if ref, ok := ExtractLouvreRef(u.Loc); ok {
					refs = append(refs, ref)
				}
			}
			perChild[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]struct{})
	for _, refs := range perChild {
		for _, ref := range refs {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out, nil
}

// ExtractLouvreRef 从 sitemap 的 loc 中取出 ark 编号；不含标记或结果不合法时返回 false
func ExtractLouvreRef(loc string) (string, bool) {
	loc = strings.TrimSpace(loc)
	idx := strings.LastIndex(loc, louvreArkMarker)
	if idx < 0 {
		return "", false
	}
	ref := strings.TrimSuffix(loc[idx+len(louvreArkMarker):], ".json")
	if ref == "" || strings.ContainsAny(ref, "/?#& \t\r\n") {
		return "", false
	}
	return ref, true
}

func (s *louvreSource) Fetch(ctx context.Context, ref string) (json.RawMessage, error) {
	body, err := s.client.get(ctx, s.baseURL+louvreArkMarker+ref+".json", "application/json")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("louvre object %s: malformed json", ref)
	}
	return json.RawMessage(body), nil
}
