package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multidrive/config"
)

type fakeSocial struct {
	openID       string
	exchangeErr  error
	subscribed   bool
	subscribeErr error

	gotCode  string
	gotToken string
	gotOpen  string
}

func (f *fakeSocial) AuthorizeURL(redirectURI, scope, state string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	return "https://open.example.com/authorize?" + q.Encode()
}

func (f *fakeSocial) ExchangeCode(_ context.Context, code string) (string, error) {
	f.gotCode = code
	return f.openID, f.exchangeErr
}

func (f *fakeSocial) IsSubscribed(_ context.Context, accessToken, openID string) (bool, error) {
	f.gotToken, f.gotOpen = accessToken, openID
	return f.subscribed, f.subscribeErr
}

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) Get(context.Context) (string, error) { return f.token, f.err }

func followConfig() *config.Config {
	return &config.Config{
		UnlockMode:       config.UnlockModeWeChatFollow,
		WeChatAppID:      "app",
		WeChatAppSecret:  "secret",
		WeChatFollowHint: "follow us",
	}
}

func TestVerifier_BypassWithoutCredentials(t *testing.T) {
	for _, cfg := range []*config.Config{
		{UnlockMode: config.UnlockModePacing},
		{UnlockMode: config.UnlockModeWeChatFollow},
	} {
		kv := newMemKV()
		ledger := NewUnlockLedger(kv)
		v := NewVerifier(cfg, &fakeSocial{}, fakeTokens{}, ledger, zap.NewNop())

		res, err := v.Unlock(context.Background(), UnlockRequest{Scene: "s1"})
		require.NoError(t, err)
		assert.Equal(t, StateUnlocked, res.State)
		assert.True(t, res.Bypassed)

		ok, _ := ledger.IsUnlocked(context.Background(), "s1")
		assert.True(t, ok)
	}
}

func TestVerifier_PacingModeIgnoresCredentials(t *testing.T) {
	cfg := followConfig()
	cfg.UnlockMode = config.UnlockModePacing
	social := &fakeSocial{}
	v := NewVerifier(cfg, social, fakeTokens{token: "t"}, NewUnlockLedger(newMemKV()), zap.NewNop())

	res, err := v.Unlock(context.Background(), UnlockRequest{Scene: "s1", Code: "c"})
	require.NoError(t, err)
	assert.True(t, res.Bypassed)
	assert.Empty(t, social.gotCode)
}

func TestVerifier_InvalidScene(t *testing.T) {
	v := NewVerifier(followConfig(), &fakeSocial{}, fakeTokens{}, NewUnlockLedger(newMemKV()), zap.NewNop())
	_, err := v.Unlock(context.Background(), UnlockRequest{Scene: ""})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestVerifier_AwaitingCode(t *testing.T) {
	ledger := NewUnlockLedger(newMemKV())
	v := NewVerifier(followConfig(), &fakeSocial{}, fakeTokens{}, ledger, zap.NewNop())

	res, err := v.Unlock(context.Background(), UnlockRequest{
		Scene:       "s1",
		CallbackURL: "https://example.com/unlock/s1",
	})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, res.State)

	u, err := url.Parse(res.AuthorizeURL)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/unlock/s1", u.Query().Get("redirect_uri"))
	assert.Equal(t, "snsapi_base", u.Query().Get("scope"))

	ok, _ := ledger.IsUnlocked(context.Background(), "s1")
	assert.False(t, ok)
}

func TestVerifier_SubscribedUnlocks(t *testing.T) {
	ledger := NewUnlockLedger(newMemKV())
	social := &fakeSocial{openID: "open-1", subscribed: true}
	v := NewVerifier(followConfig(), social, fakeTokens{token: "app-token"}, ledger, zap.NewNop())

	res, err := v.Unlock(context.Background(), UnlockRequest{Scene: "s1", Code: "code-1"})
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, res.State)
	assert.False(t, res.Bypassed)
	assert.Equal(t, "code-1", social.gotCode)
	assert.Equal(t, "app-token", social.gotToken)
	assert.Equal(t, "open-1", social.gotOpen)

	ok, _ := ledger.IsUnlocked(context.Background(), "s1")
	assert.True(t, ok)
}

func TestVerifier_NotSubscribed(t *testing.T) {
	ledger := NewUnlockLedger(newMemKV())
	social := &fakeSocial{openID: "open-1", subscribed: false}
	v := NewVerifier(followConfig(), social, fakeTokens{token: "t"}, ledger, zap.NewNop())

	res, err := v.Unlock(context.Background(), UnlockRequest{Scene: "s1", Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, StateFollowRequired, res.State)
	assert.Equal(t, "follow us", res.Message)

	ok, _ := ledger.IsUnlocked(context.Background(), "s1")
	assert.False(t, ok)
}

func TestVerifier_UpstreamErrors(t *testing.T) {
	cases := map[string]struct {
		social *fakeSocial
		tokens fakeTokens
	}{
		"exchange":  {&fakeSocial{exchangeErr: errStorage}, fakeTokens{token: "t"}},
		"token":     {&fakeSocial{openID: "o"}, fakeTokens{err: errStorage}},
		"subscribe": {&fakeSocial{openID: "o", subscribeErr: errStorage}, fakeTokens{token: "t"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ledger := NewUnlockLedger(newMemKV())
			v := NewVerifier(followConfig(), tc.social, tc.tokens, ledger, zap.NewNop())

			_, err := v.Unlock(context.Background(), UnlockRequest{Scene: "s1", Code: "c"})
			assert.ErrorIs(t, err, ErrUpstream)
			assert.Equal(t, CodeNetwork, ErrorCode(err))

			ok, _ := ledger.IsUnlocked(context.Background(), "s1")
			assert.False(t, ok)
		})
	}
}

func TestCallbackURL(t *testing.T) {
	assert.Equal(t, "https://example.com/unlock/abc", CallbackURL("https", "example.com", "/unlock/abc"))
	assert.Equal(t, "http://example.com:8080/unlock/abc", CallbackURL("HTTP", "example.com:8080", "unlock/abc"))
	assert.Equal(t, "https://example.com/unlock/abc", CallbackURL("javascript", "exam\r\nple.com", "/unlock/abc"))
}
