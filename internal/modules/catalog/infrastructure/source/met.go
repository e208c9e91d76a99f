package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ArtSeek/internal/modules/catalog/domain/entity"
	"ArtSeek/internal/modules/catalog/domain/repository"
)

const metObjectsPath = "/public/collection/v1/objects"

type metSource struct {
	client  *Client
	baseURL string
}

// NewMetSource 目录 A：一次请求拿到全部 objectID
func NewMetSource(client *Client, baseURL string) repository.CatalogSource {
	return &metSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *metSource) Museum() string { return entity.MuseumMet }

type metListing struct {
	Total     int     `json:"total"`
	ObjectIDs []int64 `json:"objectIDs"`
}

func (s *metSource) ListRefs(ctx context.Context) ([]string, error) {
	body, err := s.client.get(ctx, s.baseURL+metObjectsPath, "application/json")
	if err != nil {
		return nil, fmt.Errorf("met listing: %w", err)
	}
	var listing metListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("met listing: decode: %w", err)
	}

	refs := make([]string, 0, len(listing.ObjectIDs))
	seen := make(map[int64]struct{}, len(listing.ObjectIDs))
	for _, id := range listing.ObjectIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, strconv.FormatInt(id, 10))
	}
	return refs, nil
}

func (s *metSource) Fetch(ctx context.Context, ref string) (json.RawMessage, error) {
	body, err := s.client.get(ctx, s.baseURL+metObjectsPath+"/"+ref, "application/json")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("met object %s: malformed json", ref)
	}
	return json.RawMessage(body), nil
}
