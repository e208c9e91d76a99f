package entity

import (
	"time"

	catalogEntity "ArtSeek/internal/modules/catalog/domain/entity"
)

// Embedding 每个去重后的图片 URL 一行。id 自增，索引中第 i 个位置对应 id = i+1
type Embedding struct {
	ID           int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	URL          string                 `gorm:"column:url;type:varchar(768);not null;uniqueIndex:uk_embedding_url"`
	ArtworkID    int64                  `gorm:"column:artwork_id;not null;index"`
	Artwork      *catalogEntity.Artwork `gorm:"foreignKey:ArtworkID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Vector       []byte                 `gorm:"column:vector;not null"` // little-endian float32 * D，已 L2 归一化
	Width        int                    `gorm:"column:width"`
	Height       int                    `gorm:"column:height"`
	ThumbnailURL *string                `gorm:"column:thumbnail_url;type:varchar(1024)"`
	CreatedAt    time.Time              `gorm:"column:created_at"`
}

func (Embedding) TableName() string {
	return "embedding"
}
