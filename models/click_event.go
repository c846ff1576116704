package models

import "time"

// ClickEvent ist ein Eintrag im Klick-Protokoll. Zeilen werden nur angelegt, nie geändert.
type ClickEvent struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ArticleID      uint      `json:"article_id" gorm:"index;not null"`
	TypeToken      string    `json:"type" gorm:"column:type_token;size:64;index"`
	AttachmentSlot int       `json:"attachment_slot"`
	UserID         uint      `json:"user_id" gorm:"default:0"` // 0 = anonym
	ClientIP       string    `json:"client_ip" gorm:"size:64"`
	UserAgent      string    `json:"user_agent" gorm:"type:text"`
	Referer        string    `json:"referer" gorm:"type:text"`
	Success        bool      `json:"success"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

// TableName gibt explizit den Tabellennamen an.
func (ClickEvent) TableName() string {
	return "click_events"
}
