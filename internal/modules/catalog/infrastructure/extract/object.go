package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"ArtSeek/internal/modules/catalog/domain/entity"
)

// Candidate 一条待下载的图片
type Candidate struct {
	URL       string
	Thumbnail string
}

// Object 按来源区分的记录载荷。只有本包内的类型实现它
type Object interface {
	Museum() string
	Images() []Candidate
	sealed()
}

type MetObject struct {
	ObjectID          int64    `json:"objectID"`
	PrimaryImage      string   `json:"primaryImage"`
	PrimaryImageSmall string   `json:"primaryImageSmall"`
	AdditionalImages  []string `json:"additionalImages"`
}

func (MetObject) Museum() string { return entity.MuseumMet }
func (MetObject) sealed()        {}

// Images 主图只要求是 http(s)，附图还要求常见图片后缀
func (o MetObject) Images() []Candidate {
	var out []Candidate
	if primary := strings.TrimSpace(o.PrimaryImage); isHTTP(primary) {
		thumb := strings.TrimSpace(o.PrimaryImageSmall)
		if !isHTTP(thumb) {
			thumb = ""
		}
		out = append(out, Candidate{URL: primary, Thumbnail: thumb})
	}
	for _, u := range o.AdditionalImages {
		u = strings.TrimSpace(u)
		if IsValidImageURL(u) {
			out = append(out, Candidate{URL: u})
		}
	}
	return out
}

type LouvreImage struct {
	URLImage     string `json:"urlImage"`
	URLThumbnail string `json:"urlThumbnail"`
}

type LouvreObject struct {
	ARKID string        `json:"arkId"`
	Image []LouvreImage `json:"image"`
}

func (LouvreObject) Museum() string { return entity.MuseumLouvre }
func (LouvreObject) sealed()        {}

func (o LouvreObject) Images() []Candidate {
	var out []Candidate
	for _, img := range o.Image {
		u := strings.TrimSpace(img.URLImage)
		if !IsValidImageURL(u) {
			continue
		}
		thumb := strings.TrimSpace(img.URLThumbnail)
		if !isHTTP(thumb) {
			thumb = ""
		}
		out = append(out, Candidate{URL: u, Thumbnail: thumb})
	}
	return out
}

// Decode 根据 museum 把原始 JSON 解成对应的载荷类型
func Decode(museum string, data []byte) (Object, error) {
	switch museum {
	case entity.MuseumMet:
		var o MetObject
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("decode met object: %w", err)
		}
		return o, nil
	case entity.MuseumLouvre:
		var o LouvreObject
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("decode louvre object: %w", err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown museum %q", museum)
	}
}

func isHTTP(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// IsValidImageURL http(s) 且以 jpg/jpeg/png/gif 结尾（忽略大小写）
func IsValidImageURL(u string) bool {
	u = strings.TrimSpace(u)
	if !isHTTP(u) {
		return false
	}
	l := strings.ToLower(u)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(l, ext) {
			return true
		}
	}
	return false
}
