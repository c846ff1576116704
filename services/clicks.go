package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"multidrive/models"
)

const (
	recentCacheTTL = 60 * time.Second
	maxRecent      = 500
)

// TypeCount ist die Anzahl der Klicks pro Typ-Token.
type TypeCount struct {
	TypeToken string `json:"type"`
	Clicks    int64  `json:"clicks"`
}

// ClickLedger ist das Klick-Protokoll. Es wird nur angehängt; Recent ist bis zu
// 60 Sekunden gecacht.
type ClickLedger struct {
	db     *gorm.DB
	recent *expirable.LRU[int, []models.ClickEvent]
	logger *zap.Logger
}

// NewClickLedger erstellt das Klick-Protokoll.
func NewClickLedger(db *gorm.DB, logger *zap.Logger) *ClickLedger {
	return &ClickLedger{
		db:     db,
		recent: expirable.NewLRU[int, []models.ClickEvent](16, nil, recentCacheTTL),
		logger: logger,
	}
}

// Append speichert ein neues Ereignis. Bereits gespeicherte Ereignisse werden abgelehnt.
func (l *ClickLedger) Append(ctx context.Context, ev *models.ClickEvent) error {
	if ev.ID != 0 {
		return fmt.Errorf("click event %d already stored", ev.ID)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return l.db.WithContext(ctx).Create(ev).Error
}

// Recent liefert die n neuesten Ereignisse, neueste zuerst.
func (l *ClickLedger) Recent(ctx context.Context, n int) ([]models.ClickEvent, error) {
	if n < 1 {
		n = 1
	}
	if n > maxRecent {
		n = maxRecent
	}
	if cached, ok := l.recent.Get(n); ok {
		return slices.Clone(cached), nil
	}
	var events []models.ClickEvent
	if err := l.db.WithContext(ctx).Order("created_at desc, id desc").Limit(n).Find(&events).Error; err != nil {
		return nil, err
	}
	l.recent.Add(n, events)
	return slices.Clone(events), nil
}

// Between liefert alle Ereignisse in [from, to), älteste zuerst.
func (l *ClickLedger) Between(ctx context.Context, from, to time.Time) ([]models.ClickEvent, error) {
	var events []models.ClickEvent
	err := l.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at, id").
		Find(&events).Error
	return events, err
}

// SummaryByType zählt die Klicks eines Artikels pro Typ-Token.
func (l *ClickLedger) SummaryByType(ctx context.Context, articleID uint) ([]TypeCount, error) {
	var out []TypeCount
	err := l.db.WithContext(ctx).Model(&models.ClickEvent{}).
		Select("type_token, count(*) as clicks").
		Where("article_id = ?", articleID).
		Group("type_token").
		Order("clicks desc").
		Scan(&out).Error
	return out, err
}
