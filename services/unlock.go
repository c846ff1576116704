package services

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"multidrive/storage"
)

const (
	// UnlockTTL ist die Lebensdauer einer freigeschalteten Szene.
	UnlockTTL = 10 * time.Minute

	unlockKeyPrefix = "mcd:unlock:"
	maxSceneLen     = 128
)

// UnlockLedger merkt sich freigeschaltete Szenen für UnlockTTL.
// Es wird nie gelöscht; Einträge laufen ab.
type UnlockLedger struct {
	kv  storage.KV
	ttl time.Duration
}

// NewUnlockLedger erstellt das Ledger auf einem gemeinsamen KV-Speicher.
func NewUnlockLedger(kv storage.KV) *UnlockLedger {
	return &UnlockLedger{kv: kv, ttl: UnlockTTL}
}

// ValidScene prüft ein Szene-Token: nicht leer, begrenzte Länge, keine Steuerzeichen.
func ValidScene(scene string) bool {
	if scene == "" || len(scene) > maxSceneLen {
		return false
	}
	for _, r := range scene {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// MarkUnlocked setzt die Szene (erneut) für UnlockTTL auf freigeschaltet.
func (l *UnlockLedger) MarkUnlocked(ctx context.Context, scene string) error {
	if !ValidScene(scene) {
		return fmt.Errorf("%w: scene", ErrInvalidParams)
	}
	return l.kv.Set(ctx, unlockKeyPrefix+scene, "1", l.ttl)
}

// IsUnlocked meldet, ob genau diese Szene freigeschaltet und nicht abgelaufen ist.
func (l *UnlockLedger) IsUnlocked(ctx context.Context, scene string) (bool, error) {
	if !ValidScene(scene) {
		return false, nil
	}
	val, ok, err := l.kv.Get(ctx, unlockKeyPrefix+scene)
	if err != nil {
		return false, err
	}
	return ok && val == "1", nil
}
