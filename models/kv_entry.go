package models

// KVEntry ist ein Schlüssel mit Ablaufzeit für Installationen ohne Redis.
type KVEntry struct {
	Key       string `gorm:"column:kv_key;primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	ExpiresAt int64  `gorm:"index;not null"` // Unix-Millisekunden
}

// TableName gibt explizit den Tabellennamen an.
func (KVEntry) TableName() string {
	return "kv_entries"
}
