package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"multidrive/providers/wechat"
	"multidrive/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenLifetime = 7200 * time.Second
	tokenSafetyMargin    = 60 * time.Second
)

// TokenFetcher holt ein neues App-Token von der Plattform.
type TokenFetcher func(ctx context.Context) (wechat.Token, error)

// TokenCache hält das App-Access-Token im gemeinsamen KV-Speicher und erneuert es
// bei Bedarf. Gleichzeitige Erneuerungen werden zusammengefasst.
type TokenCache struct {
	kv     storage.KV
	key    string
	fetch  TokenFetcher
	logger *zap.Logger
	group  singleflight.Group
}

// NewTokenCache erstellt den Cache; der Schlüssel hängt von App-ID und Secret ab.
func NewTokenCache(kv storage.KV, appID, appSecret string, fetch TokenFetcher, logger *zap.Logger) *TokenCache {
	sum := sha256.Sum256([]byte(appID + ":" + appSecret))
	return &TokenCache{
		kv:     kv,
		key:    "wechat:token:" + hex.EncodeToString(sum[:])[:32],
		fetch:  fetch,
		logger: logger,
	}
}

// TokenTTL berechnet die Cache-Dauer aus expires_in (Sekunden) abzüglich 60s.
// Ohne Angabe gelten 7200s. Ein Ergebnis <= 0 bedeutet: nicht cachen.
func TokenTTL(expiresIn int) time.Duration {
	lifetime := defaultTokenLifetime
	if expiresIn > 0 {
		lifetime = time.Duration(expiresIn) * time.Second
	}
	return lifetime - tokenSafetyMargin
}

// Get liefert ein gültiges Token aus dem Cache oder holt ein neues.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	tok, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn("Token cache read failed, fetching new token", zap.Error(err))
	} else if ok && tok != "" {
		return tok, nil
	}

	v, err, _ := c.group.Do(c.key, func() (interface{}, error) {
		t, err := c.fetch(ctx)
		if err != nil {
			return "", err
		}
		if ttl := TokenTTL(t.ExpiresIn); ttl > 0 {
			if err := c.kv.Set(ctx, c.key, t.AccessToken, ttl); err != nil {
				c.logger.Warn("Token cache write failed", zap.Error(err))
			}
		}
		return t.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
