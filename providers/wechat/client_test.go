package wechat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"multidrive/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		WeChatAppID:      "wx123",
		WeChatAppSecret:  "secret",
		WeChatAPIBaseURL: srv.URL,
		WeChatOpenURL:    "https://open.example.com",
	}
	return NewClient(cfg, zap.NewNop())
}

func TestClient_SendsUserAgent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":7200}`))
	})

	tok, err := c.FetchAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok.AccessToken)
}

func TestClient_AuthorizeURL(t *testing.T) {
	c := NewClient(&config.Config{WeChatAppID: "wx123", WeChatOpenURL: "https://open.weixin.qq.com"}, zap.NewNop())
	got := c.AuthorizeURL("https://example.com/unlock/abc", "snsapi_base", "mcd_unlock")

	assert.True(t, strings.HasPrefix(got, "https://open.weixin.qq.com/connect/oauth2/authorize?appid=wx123&redirect_uri="))
	assert.Contains(t, got, "redirect_uri="+url.QueryEscape("https://example.com/unlock/abc"))
	assert.Contains(t, got, "scope=snsapi_base")
	assert.True(t, strings.HasSuffix(got, "#wechat_redirect"))
}

func TestClient_ExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sns/oauth2/access_token", r.URL.Path)
		assert.Equal(t, "the-code", r.URL.Query().Get("code"))
		assert.Equal(t, "authorization_code", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"user-token","openid":"o-42"}`))
	})

	openID, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "o-42", openID)
}

func TestClient_ExchangeCode_Failures(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"missing openid", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"x"}`))
		}},
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errcode":40029,"errmsg":"invalid code"}`))
		}},
		{"bad status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			_, err := c.ExchangeCode(context.Background(), "c")
			assert.Error(t, err)
		})
	}
}

func TestClient_APIErrorIsTyped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":40001,"errmsg":"invalid credential"}`))
	})
	_, err := c.FetchAccessToken(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 40001, apiErr.ErrCode)
}

func TestClient_FetchAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/token", r.URL.Path)
		assert.Equal(t, "client_credential", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":7200}`))
	})

	tok, err := c.FetchAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Token{AccessToken: "app-token", ExpiresIn: 7200}, tok)
}

func TestClient_IsSubscribed(t *testing.T) {
	for _, sub := range []int{0, 1} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/cgi-bin/user/info", r.URL.Path)
			assert.Equal(t, "app-token", r.URL.Query().Get("access_token"))
			assert.Equal(t, "o-42", r.URL.Query().Get("openid"))
			if sub == 1 {
				_, _ = w.Write([]byte(`{"subscribe":1,"openid":"o-42"}`))
				return
			}
			_, _ = w.Write([]byte(`{"subscribe":0,"openid":"o-42"}`))
		})
		ok, err := c.IsSubscribed(context.Background(), "app-token", "o-42")
		require.NoError(t, err)
		assert.Equal(t, sub == 1, ok)
	}
}
