package entity

import "time"

// 馆藏来源
const (
	MuseumMet    = "met"
	MuseumLouvre = "louvre"
)

// Artwork 单条馆藏原始记录，(museum, accession_ref) 唯一
type Artwork struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Museum       string    `gorm:"column:museum;type:varchar(16);not null;uniqueIndex:uk_artwork_museum_ref,priority:1"`
	AccessionRef string    `gorm:"column:accession_ref;type:varchar(191);not null;uniqueIndex:uk_artwork_museum_ref,priority:2"` // 来源侧的对象编号
	Data         string    `gorm:"column:data;not null"`                                                                       // 上游原始 JSON
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Artwork) TableName() string {
	return "artwork"
}
