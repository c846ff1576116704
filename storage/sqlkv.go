package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multidrive/models"
)

// SQLKV speichert Schlüssel in der Tabelle kv_entries. Abgelaufene Zeilen
// werden beim Lesen ignoriert und per Purge entfernt.
type SQLKV struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLKV erstellt den SQL-basierten KV-Speicher.
func NewSQLKV(db *gorm.DB) *SQLKV {
	return &SQLKV{db: db, now: time.Now}
}

// WithClock ersetzt die Uhr (für Tests).
func (s *SQLKV) WithClock(now func() time.Time) *SQLKV {
	s.now = now
	return s
}

func (s *SQLKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := models.KVEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: s.now().Add(ttl).UnixMilli(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&entry).Error
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).
		Where("kv_key = ? AND expires_at > ?", key, s.now().UnixMilli()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Purge löscht alle abgelaufenen Einträge und gibt deren Anzahl zurück.
func (s *SQLKV) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UnixMilli()).
		Delete(&models.KVEntry{})
	return res.RowsAffected, res.Error
}
