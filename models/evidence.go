package models

import "time"

// Evidence is a photo attached to a violation by the reporting officer.
// StorePath is the original file, ThumbPath a generated 320px thumbnail.
type Evidence struct {
	ID          uint       `gorm:"primaryKey" json:"evidence_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"-"`
	ViolationID uint       `gorm:"not null;index;uniqueIndex:idx_violation_file" json:"violation_id"`
	Violation   *Violation `gorm:"foreignKey:ViolationID" json:"-"`
	FileName    string     `gorm:"size:255;not null;uniqueIndex:idx_violation_file" json:"file_name"`
	StorePath   string     `gorm:"size:512;not null" json:"store_path"`
	ThumbPath   string     `gorm:"size:512" json:"thumb_path"`
	ContentType string     `gorm:"size:64" json:"content_type"`
	UploadedBy  uint       `gorm:"not null;index" json:"uploaded_by"`
}
