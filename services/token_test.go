package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multidrive/providers/wechat"
)

func TestTokenTTL(t *testing.T) {
	assert.Equal(t, 7140*time.Second, TokenTTL(7200))
	assert.Equal(t, 7140*time.Second, TokenTTL(0))
	assert.Equal(t, 240*time.Second, TokenTTL(300))
	assert.LessOrEqual(t, TokenTTL(60), time.Duration(0))
	assert.Less(t, TokenTTL(30), time.Duration(0))
}

func TestTokenCache_CachesUntilExpiry(t *testing.T) {
	kv := newMemKV()
	calls := 0
	fetch := func(context.Context) (wechat.Token, error) {
		calls++
		return wechat.Token{AccessToken: "tok", ExpiresIn: 7200}, nil
	}
	c := NewTokenCache(kv, "app", "secret", fetch, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tok, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	}
	assert.Equal(t, 1, calls)

	kv.advance(7141 * time.Second)
	_, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenCache_ShortLivedTokenNotCached(t *testing.T) {
	kv := newMemKV()
	calls := 0
	fetch := func(context.Context) (wechat.Token, error) {
		calls++
		return wechat.Token{AccessToken: "short", ExpiresIn: 30}, nil
	}
	c := NewTokenCache(kv, "app", "secret", fetch, zap.NewNop())

	for i := 0; i < 2; i++ {
		tok, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "short", tok)
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, kv.sets)
}

func TestTokenCache_KeyDependsOnCredentials(t *testing.T) {
	kv := newMemKV()
	fetchA := func(context.Context) (wechat.Token, error) { return wechat.Token{AccessToken: "a"}, nil }
	fetchB := func(context.Context) (wechat.Token, error) { return wechat.Token{AccessToken: "b"}, nil }

	a, err := NewTokenCache(kv, "app", "one", fetchA, zap.NewNop()).Get(context.Background())
	require.NoError(t, err)
	b, err := NewTokenCache(kv, "app", "two", fetchB, zap.NewNop()).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}

func TestTokenCache_FetchError(t *testing.T) {
	kv := newMemKV()
	fetch := func(context.Context) (wechat.Token, error) { return wechat.Token{}, errStorage }
	_, err := NewTokenCache(kv, "app", "secret", fetch, zap.NewNop()).Get(context.Background())
	assert.ErrorIs(t, err, errStorage)
	assert.Zero(t, kv.sets)
}

func TestTokenCache_ReadErrorFallsBackToFetch(t *testing.T) {
	kv := newMemKV()
	kv.err = errStorage
	fetch := func(context.Context) (wechat.Token, error) { return wechat.Token{AccessToken: "fresh"}, nil }
	tok, err := NewTokenCache(kv, "app", "secret", fetch, zap.NewNop()).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}
