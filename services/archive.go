package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"multidrive/models"
	"multidrive/storage"
)

const archivePrefix = "clicks/"

// ClickSource liefert Klick-Ereignisse eines Zeitraums.
type ClickSource interface {
	Between(ctx context.Context, from, to time.Time) ([]models.ClickEvent, error)
}

// ClickArchiver exportiert Klick-Ereignisse tageweise als gzip-JSON-Lines nach S3
// und hält nur die neuesten Keep Archive.
type ClickArchiver struct {
	Source ClickSource
	Store  storage.ObjectStore
	Keep   int
	Logger *zap.Logger
}

// ArchiveKey liefert den Objektnamen für einen Tag (UTC).
func ArchiveKey(day time.Time) string {
	return archivePrefix + day.UTC().Format("2006-01-02") + ".jsonl.gz"
}

// ExportDay schreibt alle Ereignisse des Tages (UTC) in ein Archiv-Objekt.
// Ein erneuter Lauf überschreibt das Objekt des Tages.
func (a *ClickArchiver) ExportDay(ctx context.Context, day time.Time) (string, int, error) {
	d := day.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	events, err := a.Source.Between(ctx, from, from.Add(24*time.Hour))
	if err != nil {
		return "", 0, fmt.Errorf("load click events: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return "", 0, err
		}
	}
	if err := gz.Close(); err != nil {
		return "", 0, err
	}

	key := ArchiveKey(from)
	if err := a.Store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("upload %s: %w", key, err)
	}
	a.Logger.Info("Click archive uploaded", zap.String("key", key), zap.Int("events", len(events)))
	return key, len(events), nil
}

// Rotate löscht alle Archive außer den Keep neuesten.
func (a *ClickArchiver) Rotate(ctx context.Context) (int, error) {
	objs, err := a.Store.List(ctx, archivePrefix)
	if err != nil {
		return 0, err
	}
	if a.Keep <= 0 || len(objs) <= a.Keep {
		return 0, nil
	}
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].LastModified.After(objs[j].LastModified)
	})

	deleted := 0
	for _, obj := range objs[a.Keep:] {
		if err := a.Store.Delete(ctx, obj.Key); err != nil {
			a.Logger.Warn("Fehler beim Löschen eines Archivs", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
