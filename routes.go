package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"multidrive/config"
	"multidrive/services"
	"multidrive/web"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled: API_SECRET_KEY not set"})
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware begrenzt Anfragen pro Client-IP. Mit Redis teilen sich alle
// Instanzen das Limit.
func (a *app) rateLimitMiddleware() (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(a.cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	var store limiter.Store
	if a.redis != nil {
		store, err = sredis.NewStoreWithOptions(a.redis, limiter.StoreOptions{Prefix: "mcd_limiter"})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStore()
	}
	// Schlüssel ist gin's ClientIP: Forwarded-Header zählen nur hinter TRUSTED_PROXIES.
	return mgin.NewMiddleware(limiter.New(store, rate),
		mgin.WithKeyGetter(func(c *gin.Context) string { return c.ClientIP() }),
	), nil
}

func (a *app) router() (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	limit, err := a.rateLimitMiddleware()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	if err := router.SetTrustedProxies(a.cfg.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(tmpl)

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/download/:article_id", a.handleDownloadPage)
	router.GET("/go/:article_id/:type", limit, a.handleRedirect)
	router.GET("/unlock/:scene", limit, a.handleUnlock)
	router.GET("/unlock/:scene/status", a.handleUnlockStatus)

	a.setupAdminRoutes(router)
	return router, nil
}

func (a *app) handleDownloadPage(c *gin.Context) {
	articleID, _ := strconv.ParseUint(c.Param("article_id"), 10, 32)
	slot := services.ParseSlot(c.Query("slot"))

	pc := services.PageContext{
		ArticleID: uint(articleID),
		Slot:      slot,
		UserID:    a.userID(c),
	}
	if a.cfg.UnlockMode != config.UnlockModeNone {
		pc.Scene = uuid.NewString()
	}
	view, err := a.pages.Build(c.Request.Context(), pc)
	if err != nil {
		a.renderError(c, err, "")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "download.tmpl", gin.H{
		"Title":    view.Info.Name,
		"SiteName": a.cfg.SiteName,
		"Page":     view,
	})
}

func (a *app) handleRedirect(c *gin.Context) {
	articleID, _ := strconv.ParseUint(c.Param("article_id"), 10, 32)
	slot := services.ParseSlot(c.Query("slot"))

	req := services.RedirectRequest{
		ArticleID: uint(articleID),
		Type:      c.Param("type"),
		Slot:      slot,
		Scene:     c.Query("scene"),
		UserID:    a.userID(c),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
	target, err := a.engine.Redirect(c.Request.Context(), req)
	if err != nil {
		a.renderError(c, err, "")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

func (a *app) handleUnlock(c *gin.Context) {
	scene := c.Param("scene")
	callback := services.CallbackURL(a.requestScheme(c), c.Request.Host, c.Request.URL.Path)

	res, err := a.verifier.Unlock(c.Request.Context(), services.UnlockRequest{
		Scene:       scene,
		Code:        c.Query("code"),
		CallbackURL: callback,
	})
	if err != nil {
		retry := ""
		if errors.Is(err, services.ErrUpstream) {
			retry = c.Request.URL.Path
		}
		a.renderError(c, err, retry)
		return
	}

	switch res.State {
	case services.StateAwaitingCode:
		c.Redirect(http.StatusFound, res.AuthorizeURL)
	case services.StateFollowRequired:
		c.HTML(http.StatusOK, "follow_required.tmpl", gin.H{
			"Title":    "Follow required",
			"SiteName": a.cfg.SiteName,
			"Message":  res.Message,
			"RetryURL": c.Request.URL.Path,
		})
	default:
		c.HTML(http.StatusOK, "unlock_success.tmpl", gin.H{
			"Title":    "Unlocked",
			"SiteName": a.cfg.SiteName,
		})
	}
}

func (a *app) handleUnlockStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	ok, err := a.ledger.IsUnlocked(c.Request.Context(), c.Param("scene"))
	if err != nil {
		a.log.Warn("Unlock status lookup failed", zap.Error(err))
	}
	unlocked := 0
	if ok {
		unlocked = 1
	}
	c.JSON(http.StatusOK, gin.H{"unlocked": unlocked})
}

// renderError zeigt eine freundliche Fehlerseite. Technische Details sehen nur
// Admins im Debug-Modus.
func (a *app) renderError(c *gin.Context, err error, retryURL string) {
	code := services.ErrorCode(err)
	status := services.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		a.log.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.String("code", code), zap.Error(err))
	} else {
		a.log.Info("Request rejected", zap.String("path", c.Request.URL.Path), zap.String("code", code), zap.Error(err))
	}

	data := gin.H{
		"Title":    "Error",
		"SiteName": a.cfg.SiteName,
		"Code":     code,
		"Message":  services.UserMessage(code),
		"RetryURL": retryURL,
	}
	if gin.IsDebugging() && a.cfg.APISecretKey != "" && c.GetHeader("X-API-KEY") == a.cfg.APISecretKey {
		data["Detail"] = err.Error()
	}
	c.HTML(status, "error.tmpl", data)
}

func (a *app) userID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.GetHeader(a.cfg.UserIDHeader), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func (a *app) requestScheme(c *gin.Context) string {
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" && len(a.cfg.TrustedProxies) > 0 {
		return strings.TrimSpace(strings.Split(p, ",")[0])
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
