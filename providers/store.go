package providers

import (
	"context"
	"sync/atomic"

	"gorm.io/gorm"

	"multidrive/models"
)

// Holder hält die aktuelle Registry; Admin-Änderungen tauschen sie atomar aus.
type Holder struct {
	cur atomic.Pointer[Registry]
}

// NewHolder erstellt einen Holder mit Startwert.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.cur.Store(r)
	return h
}

// Current liefert die aktive Registry.
func (h *Holder) Current() *Registry {
	return h.cur.Load()
}

// Swap ersetzt die aktive Registry.
func (h *Holder) Swap(r *Registry) {
	h.cur.Store(r)
}

// Load baut eine Registry aus allen aktivierten Providern der Datenbank.
func Load(ctx context.Context, db *gorm.DB) (*Registry, error) {
	var rows []models.DriveProvider
	if err := db.WithContext(ctx).Where("enabled = ?", true).Order("sort_order, key").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]Provider, 0, len(rows))
	for _, row := range rows {
		list = append(list, FromModel(row))
	}
	return NewRegistry(list)
}

// FromModel wandelt eine Datenbankzeile in einen Provider um.
func FromModel(m models.DriveProvider) Provider {
	return Provider{
		Key:       m.Key,
		Label:     m.Label,
		Alias:     m.Alias,
		IsCustom:  m.IsCustom,
		SortOrder: m.SortOrder,
	}
}
