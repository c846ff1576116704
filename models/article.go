package models

import "time"

// Article ist ein Beitrag, dessen Download-Seite ausgeliefert wird.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title   string `json:"title" gorm:"not null"`
	Excerpt string `json:"excerpt,omitempty" gorm:"type:text"`
	Author  string `json:"author,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}

// ArticleMeta ist ein Schlüssel/Wert-Eintrag eines Artikels (z.B. "mcd_baidu_url").
type ArticleMeta struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ArticleID uint   `json:"article_id" gorm:"uniqueIndex:idx_article_meta_key;not null"`
	MetaKey   string `json:"meta_key" gorm:"uniqueIndex:idx_article_meta_key;size:191;not null"`
	MetaValue string `json:"meta_value" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (ArticleMeta) TableName() string {
	return "article_meta"
}
