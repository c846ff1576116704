package storage

import (
	"context"
	"time"
)

// KV ist ein gemeinsam genutzter Schlüssel/Wert-Speicher mit Ablaufzeit.
// Set überschreibt immer; Get liefert nur nicht abgelaufene Werte.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}
