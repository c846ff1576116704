package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"multidrive/models"
	"multidrive/providers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const maxTypeTokenLen = 64

var (
	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcd_redirects_total",
		Help: "Redirect attempts by outcome code.",
	}, []string{"code"})

	clickLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcd_click_log_failures_total",
		Help: "Click events that could not be stored.",
	})
)

// RegistrySource liefert die aktuell gültige Provider-Registry.
type RegistrySource interface {
	Current() *providers.Registry
}

// MetaReader liest einzelne Metadaten eines Artikels. Fehlende Felder ergeben "".
type MetaReader interface {
	GetMeta(ctx context.Context, articleID uint, key string) (string, error)
}

// ClickRecorder nimmt Klick-Ereignisse entgegen.
type ClickRecorder interface {
	Append(ctx context.Context, ev *models.ClickEvent) error
}

// UnlockChecker beantwortet, ob eine Szene freigeschaltet ist.
type UnlockChecker interface {
	IsUnlocked(ctx context.Context, scene string) (bool, error)
}

// UnlockOverride darf das Sperr-Flag eines Links seitenweit überschreiben.
type UnlockOverride func(ctx context.Context, req RedirectRequest, requiresUnlock bool) bool

// Authorizer darf einen Download mit ErrPermissionDenied ablehnen.
type Authorizer func(ctx context.Context, req RedirectRequest) error

// TargetFilter meldet, ob auf eine normalisierte Ziel-URL weitergeleitet werden darf.
type TargetFilter func(target string) bool

// RedirectRequest sind die Eingaben der Redirect-Route.
type RedirectRequest struct {
	ArticleID uint
	Type      string
	Slot      int
	Scene     string

	UserID    uint
	ClientIP  string
	UserAgent string
	Referer   string
}

// RedirectEngine löst einen Tracking-Link zur Ziel-URL auf.
type RedirectEngine struct {
	registry  RegistrySource
	meta      MetaReader
	unlocks   UnlockChecker
	clicks    ClickRecorder
	override  UnlockOverride
	authorize Authorizer
	allow     TargetFilter
	logger    *zap.Logger
	now       func() time.Time
}

// RedirectOption konfiguriert die Engine.
type RedirectOption func(*RedirectEngine)

// WithUnlockOverride setzt die seitenweite Überschreibung des Sperr-Flags.
func WithUnlockOverride(o UnlockOverride) RedirectOption {
	return func(e *RedirectEngine) { e.override = o }
}

// WithAuthorizer setzt eine zusätzliche Berechtigungsprüfung.
func WithAuthorizer(a Authorizer) RedirectOption {
	return func(e *RedirectEngine) { e.authorize = a }
}

// WithTargetFilter beschränkt die erlaubten Ziele. Abgelehnte Ziele ergeben
// ErrPermissionDenied und keinen Klick-Eintrag.
func WithTargetFilter(f TargetFilter) RedirectOption {
	return func(e *RedirectEngine) { e.allow = f }
}

// WithClock ersetzt die Uhr für created_at.
func WithClock(now func() time.Time) RedirectOption {
	return func(e *RedirectEngine) { e.now = now }
}

// NewRedirectEngine erstellt die Engine.
func NewRedirectEngine(registry RegistrySource, meta MetaReader, unlocks UnlockChecker, clicks ClickRecorder, logger *zap.Logger, opts ...RedirectOption) *RedirectEngine {
	e := &RedirectEngine{
		registry: registry,
		meta:     meta,
		unlocks:  unlocks,
		clicks:   clicks,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClampSlot bringt einen Slot in [1, MaxSlots]; 0 und negative Werte werden 1.
func ClampSlot(slot int) int {
	if slot < 1 {
		return 1
	}
	if slot > providers.MaxSlots {
		return providers.MaxSlots
	}
	return slot
}

// ParseSlot liest einen Slot aus der Anfrage. Leere oder ungültige Werte ergeben 1,
// zu große Zahlen (auch Überläufe) MaxSlots.
func ParseSlot(raw string) int {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return 1
		}
		return providers.MaxSlots
	}
	if err != nil {
		return 1
	}
	return ClampSlot(n)
}

// ParseFlag wertet ein gespeichertes Checkbox-Feld aus.
func ParseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Redirect prüft die Anfrage, wendet die Unlock-Sperre und die Zielfreigabe an,
// protokolliert den Klick und gibt die Ziel-URL zurück.
func (e *RedirectEngine) Redirect(ctx context.Context, req RedirectRequest) (string, error) {
	target, err := e.resolve(ctx, &req)
	redirectsTotal.WithLabelValues(codeLabel(err)).Inc()
	if err != nil {
		return "", err
	}

	ev := &models.ClickEvent{
		ArticleID:      req.ArticleID,
		TypeToken:      req.Type,
		AttachmentSlot: req.Slot,
		UserID:         req.UserID,
		ClientIP:       req.ClientIP,
		UserAgent:      req.UserAgent,
		Referer:        req.Referer,
		Success:        true,
		CreatedAt:      e.now().UTC(),
	}
	if err := e.clicks.Append(ctx, ev); err != nil {
		clickLogFailuresTotal.Inc()
		e.logger.Warn("Click event could not be stored", zap.Uint("article_id", req.ArticleID), zap.Error(err))
	}
	return target, nil
}

func (e *RedirectEngine) resolve(ctx context.Context, req *RedirectRequest) (string, error) {
	req.Type = strings.TrimSpace(req.Type)
	if req.ArticleID == 0 || req.Type == "" || len(req.Type) > maxTypeTokenLen {
		return "", fmt.Errorf("%w: article id and type are required", ErrInvalidParams)
	}
	req.Slot = ClampSlot(req.Slot)

	p, err := e.registry.Current().Resolve(req.Type)
	if err != nil {
		return "", err
	}
	fields := p.FieldsFor(req.Slot)

	raw, err := e.meta.GetMeta(ctx, req.ArticleID, fields.URL)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fields.URL, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: %s for article %d", ErrLinkNotConfigured, fields.URL, req.ArticleID)
	}
	target, err := NormalizeLink(raw)
	if err != nil {
		return "", err
	}

	flag, err := e.meta.GetMeta(ctx, req.ArticleID, fields.Unlock)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fields.Unlock, err)
	}
	requiresUnlock := ParseFlag(flag)
	if e.override != nil {
		requiresUnlock = e.override(ctx, *req, requiresUnlock)
	}

	if requiresUnlock {
		if req.Scene == "" {
			return "", fmt.Errorf("%w: no scene", ErrUnlockRequired)
		}
		ok, err := e.unlocks.IsUnlocked(ctx, req.Scene)
		if err != nil {
			return "", fmt.Errorf("unlock ledger: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w: scene %q", ErrUnlockRequired, req.Scene)
		}
	}

	if e.authorize != nil {
		if err := e.authorize(ctx, *req); err != nil {
			return "", err
		}
	}
	if e.allow != nil && !e.allow(target) {
		return "", fmt.Errorf("%w: target host of %q not allowed", ErrPermissionDenied, target)
	}
	return target, nil
}

func codeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
