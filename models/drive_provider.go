package models

import "time"

// DriveProvider ist ein konfigurierter Cloud-Speicher (z.B. Baidu Netdisk).
type DriveProvider struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key       string `json:"key" gorm:"uniqueIndex;size:64;not null"` // z.B. "baidu"
	Label     string `json:"label" gorm:"not null"`
	Alias     string `json:"alias,omitempty" gorm:"size:64"`
	IsCustom  bool   `json:"is_custom" gorm:"default:false"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
	Enabled   bool   `json:"enabled"`
}

// TableName gibt explizit den Tabellennamen an.
func (DriveProvider) TableName() string {
	return "drive_providers"
}
