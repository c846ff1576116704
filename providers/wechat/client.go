package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"multidrive/config"

	"go.uber.org/zap"
)

// Jeder Aufruf der Plattform ist nach RequestTimeout abgebrochen.
const RequestTimeout = 10 * time.Second

// UserAgent wird bei allen Aufrufen der Plattform gesendet.
const UserAgent = "multidrive/1.0 (+wechat-follow-unlock)"

// userAgentTransport setzt auf jeder Anfrage den User-Agent des Dienstes.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.Transport.RoundTrip(req)
}

// httpClient wird für alle Aufrufe der Plattform verwendet.
var httpClient = &http.Client{
	Timeout:   RequestTimeout,
	Transport: &userAgentTransport{Transport: http.DefaultTransport},
}

// APIError ist der Fehlerteil jeder WeChat-Antwort.
type APIError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.ErrCode, e.ErrMsg)
}

// Token ist ein App-Access-Token der Plattform.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type oauthResponse struct {
	APIError
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
}

type tokenResponse struct {
	APIError
	Token
}

type userInfoResponse struct {
	APIError
	Subscribe int    `json:"subscribe"`
	OpenID    string `json:"openid"`
}

// Client kapselt die Aufrufe an die WeChat-API (OAuth, Token, Nutzerinfo).
type Client struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Client
}

// NewClient erstellt einen neuen WeChat-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger, HTTP: httpClient}
}

// AuthorizeURL baut die OAuth-URL, auf die der Nutzer weitergeleitet wird.
// Die Parameter-Reihenfolge ist von WeChat vorgegeben.
func (c *Client) AuthorizeURL(redirectURI, scope, state string) string {
	return fmt.Sprintf("%s/connect/oauth2/authorize?appid=%s&redirect_uri=%s&response_type=code&scope=%s&state=%s#wechat_redirect",
		c.Config.WeChatOpenURL,
		url.QueryEscape(c.Config.WeChatAppID),
		url.QueryEscape(redirectURI),
		url.QueryEscape(scope),
		url.QueryEscape(state))
}

// ExchangeCode tauscht einen OAuth-Code gegen die OpenID des Nutzers.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("appid", c.Config.WeChatAppID)
	q.Set("secret", c.Config.WeChatAppSecret)
	q.Set("code", code)
	q.Set("grant_type", "authorization_code")

	var resp oauthResponse
	if err := c.getJSON(ctx, "/sns/oauth2/access_token", q, &resp); err != nil {
		return "", err
	}
	if resp.OpenID == "" {
		return "", fmt.Errorf("wechat oauth response without openid")
	}
	return resp.OpenID, nil
}

// FetchAccessToken holt ein neues App-Access-Token.
func (c *Client) FetchAccessToken(ctx context.Context) (Token, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", c.Config.WeChatAppID)
	q.Set("secret", c.Config.WeChatAppSecret)

	var resp tokenResponse
	if err := c.getJSON(ctx, "/cgi-bin/token", q, &resp); err != nil {
		return Token{}, err
	}
	if resp.AccessToken == "" {
		return Token{}, fmt.Errorf("wechat token response without access_token")
	}
	return resp.Token, nil
}

// IsSubscribed prüft, ob der Nutzer dem Offiziellen Account folgt.
func (c *Client) IsSubscribed(ctx context.Context, accessToken, openID string) (bool, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("openid", openID)
	q.Set("lang", "zh_CN")

	var resp userInfoResponse
	if err := c.getJSON(ctx, "/cgi-bin/user/info", q, &resp); err != nil {
		return false, err
	}
	return resp.Subscribe == 1, nil
}

// getJSON ruft einen API-Pfad auf und dekodiert die Antwort. Nicht-2xx, kaputtes JSON
// und errcode != 0 sind Fehler. Es gibt keine Wiederholungen.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{ apiError() *APIError }) error {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Config.WeChatAPIBaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	log := c.Logger.With(zap.String("path", path))
	log.Debug("Rufe WeChat API auf.")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wechat request failed with status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wechat response not parseable: %w", err)
	}
	if apiErr := out.apiError(); apiErr.ErrCode != 0 {
		log.Warn("WeChat API meldet Fehler", zap.Int("errcode", apiErr.ErrCode), zap.String("errmsg", apiErr.ErrMsg))
		return apiErr
	}
	return nil
}

func (e *APIError) apiError() *APIError { return e }
