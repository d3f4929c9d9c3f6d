package models

import "time"

// ViolationType is a seeded reference row: a category of infraction with its
// statutory base fine.
type ViolationType struct {
	ID          uint      `gorm:"primaryKey" json:"type_id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
	TypeName    string    `gorm:"size:100;not null;uniqueIndex" json:"type_name"`
	BaseFine    float64   `gorm:"not null" json:"base_fine"`
	Description string    `gorm:"size:255" json:"description"`
}

// Area is a seeded reference row: a location violations are reported in.
type Area struct {
	ID        uint      `gorm:"primaryKey" json:"area_id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	AreaName  string    `gorm:"size:100;not null;uniqueIndex:idx_area_city" json:"area_name"`
	City      string    `gorm:"size:100;not null;uniqueIndex:idx_area_city" json:"city"`
}
