package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"multidrive/config"
	"multidrive/providers/wechat"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// UnlockState ist der Zustand eines Unlock-Versuchs.
type UnlockState string

const (
	StateStart                UnlockState = "start"
	StateAwaitingCode         UnlockState = "awaiting_code"
	StateExchangingCode       UnlockState = "exchanging_code"
	StateCheckingSubscription UnlockState = "checking_subscription"
	StateUnlocked             UnlockState = "unlocked"
	StateFollowRequired       UnlockState = "follow_required"
)

const (
	oauthScope = "snsapi_base"
	oauthState = "mcd_unlock"
)

var unlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mcd_unlock_attempts_total",
	Help: "Unlock attempts by final state.",
}, []string{"state"})

// SocialClient ist der Teil der Plattform-API, den der Verifier braucht.
type SocialClient interface {
	AuthorizeURL(redirectURI, scope, state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	IsSubscribed(ctx context.Context, accessToken, openID string) (bool, error)
}

// AccessTokenSource liefert ein App-Access-Token.
type AccessTokenSource interface {
	Get(ctx context.Context) (string, error)
}

// UnlockRequest ist ein Aufruf der Unlock-Route.
type UnlockRequest struct {
	Scene       string
	Code        string
	CallbackURL string
}

// UnlockResult beschreibt, wie der Aufrufer antworten soll.
type UnlockResult struct {
	State        UnlockState
	AuthorizeURL string // nur bei StateAwaitingCode
	Bypassed     bool
	Message      string
}

// Verifier führt den Unlock-Ablauf aus: Bypass, OAuth-Weiterleitung,
// Code-Tausch und Follow-Prüfung.
type Verifier struct {
	mode       string
	client     SocialClient
	tokens     AccessTokenSource
	ledger     *UnlockLedger
	logger     *zap.Logger
	followHint string
}

// NewVerifier erstellt den Verifier. client und tokens dürfen nil sein, wenn
// keine Zugangsdaten konfiguriert sind; dann wird immer direkt freigeschaltet.
func NewVerifier(cfg *config.Config, client SocialClient, tokens AccessTokenSource, ledger *UnlockLedger, logger *zap.Logger) *Verifier {
	v := &Verifier{
		mode:       cfg.UnlockMode,
		ledger:     ledger,
		logger:     logger,
		followHint: cfg.WeChatFollowHint,
	}
	if cfg.WeChatConfigured() {
		v.client = client
		v.tokens = tokens
	}
	return v
}

// NewWeChatVerifier verdrahtet Verifier, WeChat-Client und Token-Cache.
func NewWeChatVerifier(cfg *config.Config, client *wechat.Client, tokens *TokenCache, ledger *UnlockLedger, logger *zap.Logger) *Verifier {
	return NewVerifier(cfg, client, tokens, ledger, logger)
}

func (v *Verifier) gated() bool {
	return v.mode == config.UnlockModeWeChatFollow && v.client != nil && v.tokens != nil
}

// Unlock führt einen Schritt des Ablaufs aus. Fehler der Plattform werden als
// ErrUpstream gemeldet und nicht wiederholt; die Szene bleibt dann gesperrt.
func (v *Verifier) Unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error) {
	if !ValidScene(req.Scene) {
		return UnlockResult{}, fmt.Errorf("%w: scene", ErrInvalidParams)
	}
	log := v.logger.With(zap.String("scene", req.Scene))

	// START
	if !v.gated() {
		if err := v.ledger.MarkUnlocked(ctx, req.Scene); err != nil {
			return UnlockResult{}, err
		}
		unlocksTotal.WithLabelValues(string(StateUnlocked)).Inc()
		log.Debug("Unlock ohne Prüfung (Bypass)", zap.String("mode", v.mode))
		return UnlockResult{State: StateUnlocked, Bypassed: true}, nil
	}

	// AWAITING_CODE
	if req.Code == "" {
		return UnlockResult{
			State:        StateAwaitingCode,
			AuthorizeURL: v.client.AuthorizeURL(req.CallbackURL, oauthScope, oauthState),
		}, nil
	}

	// EXCHANGING_CODE
	openID, err := v.client.ExchangeCode(ctx, req.Code)
	if err != nil {
		unlocksTotal.WithLabelValues("upstream_error").Inc()
		log.Warn("Code exchange failed", zap.Error(err))
		return UnlockResult{State: StateExchangingCode}, fmt.Errorf("%w: code exchange: %v", ErrUpstream, err)
	}

	token, err := v.tokens.Get(ctx)
	if err != nil {
		unlocksTotal.WithLabelValues("upstream_error").Inc()
		log.Warn("Access token unavailable", zap.Error(err))
		return UnlockResult{State: StateCheckingSubscription}, fmt.Errorf("%w: access token: %v", ErrUpstream, err)
	}

	// CHECKING_SUBSCRIPTION
	subscribed, err := v.client.IsSubscribed(ctx, token, openID)
	if err != nil {
		unlocksTotal.WithLabelValues("upstream_error").Inc()
		log.Warn("Subscription check failed", zap.Error(err))
		return UnlockResult{State: StateCheckingSubscription}, fmt.Errorf("%w: subscription check: %v", ErrUpstream, err)
	}
	if !subscribed {
		unlocksTotal.WithLabelValues(string(StateFollowRequired)).Inc()
		log.Info("User does not follow the account")
		return UnlockResult{State: StateFollowRequired, Message: v.followHint}, nil
	}

	if err := v.ledger.MarkUnlocked(ctx, req.Scene); err != nil {
		return UnlockResult{}, err
	}
	unlocksTotal.WithLabelValues(string(StateUnlocked)).Inc()
	log.Info("Scene unlocked after follow check")
	return UnlockResult{State: StateUnlocked}, nil
}

// CallbackURL baut die Rücksprung-URL aus Schema, Host und Pfad und entfernt
// Steuerzeichen. Query und Fragment werden nie übernommen.
func CallbackURL(scheme, host, path string) string {
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, s)
	}
	scheme = strings.ToLower(strip(scheme))
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	path = strip(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + strip(host) + path
}
