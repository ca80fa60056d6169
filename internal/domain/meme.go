package domain

import "time"

// Meme is the record kept for every generated meme.
// The image itself lives in object storage under StorageKey.
type Meme struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	StorageKey   string    `gorm:"type:text;not null;uniqueIndex:idx_memes_storage_key" json:"storage_key"`
	URL          string    `gorm:"type:text" json:"url"`
	Caption      string    `gorm:"type:text;not null" json:"caption"`
	FaceDetected bool      `gorm:"index:idx_memes_face" json:"face_detected"`
	OverlayAsset string    `gorm:"type:text" json:"overlay_asset,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FileSize     int64     `json:"file_size"`
	SourceName   string    `gorm:"type:text" json:"source_name,omitempty"`
	SourceFormat string    `gorm:"type:text" json:"source_format"`
	FontSource   string    `gorm:"type:text" json:"font_source"`
	CreatedAt    time.Time `gorm:"index:idx_memes_created_at" json:"created_at"`
}

// TableName returns the database table name for Meme.
func (Meme) TableName() string {
	return "memes"
}

// MemeFilter narrows a listing. A nil FaceDetected matches every record.
type MemeFilter struct {
	FaceDetected *bool
}
