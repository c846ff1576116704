package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"multidrive/models"
	"multidrive/providers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errInvalidProviders markiert Änderungen, die keine gültige Registry ergeben.
var errInvalidProviders = errors.New("invalid provider configuration")

func (a *app) setupAdminRoutes(router *gin.Engine) {
	rg := router.Group("/admin")
	rg.Use(apiKeyAuthMiddleware(a.cfg))

	a.setupProviderRoutes(rg)
	a.setupArticleRoutes(rg)
	a.setupClickRoutes(rg)
}

func (a *app) setupProviderRoutes(rg *gin.RouterGroup) {
	type providerInput struct {
		Key       string `json:"key" binding:"required"`
		Label     string `json:"label" binding:"required"`
		Alias     string `json:"alias"`
		IsCustom  bool   `json:"is_custom"`
		SortOrder int    `json:"sort_order"`
		Enabled   *bool  `json:"enabled"`
	}
	apply := func(m *models.DriveProvider, in providerInput) {
		m.Key, m.Label, m.Alias = in.Key, in.Label, in.Alias
		m.IsCustom, m.SortOrder = in.IsCustom, in.SortOrder
		m.Enabled = in.Enabled == nil || *in.Enabled
	}

	rg.GET("/providers", func(c *gin.Context) {
		var rows []models.DriveProvider
		if err := a.db.Order("sort_order, key").Find(&rows).Error; err != nil {
			a.log.Error("Database query for providers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, rows)
	})

	rg.POST("/providers", func(c *gin.Context) {
		var in providerInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		var row models.DriveProvider
		apply(&row, in)
		err := a.changeProviders(c.Request.Context(), func(tx *gorm.DB) error { return tx.Create(&row).Error })
		if a.providerChangeFailed(c, err) {
			return
		}
		c.JSON(http.StatusCreated, row)
	})

	rg.PUT("/providers/:id", func(c *gin.Context) {
		id, ok := idParam(c, "id", "invalid provider id")
		if !ok {
			return
		}
		var row models.DriveProvider
		if err := a.db.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var in providerInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		apply(&row, in)
		err := a.changeProviders(c.Request.Context(), func(tx *gorm.DB) error { return tx.Save(&row).Error })
		if a.providerChangeFailed(c, err) {
			return
		}
		c.JSON(http.StatusOK, row)
	})

	rg.DELETE("/providers/:id", func(c *gin.Context) {
		id, ok := idParam(c, "id", "invalid provider id")
		if !ok {
			return
		}
		err := a.changeProviders(c.Request.Context(), func(tx *gorm.DB) error {
			res := tx.Delete(&models.DriveProvider{}, id)
			if res.Error == nil && res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return res.Error
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		if a.providerChangeFailed(c, err) {
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// changeProviders führt eine Änderung in einer Transaktion aus, baut daraus die neue
// Registry und tauscht sie nur aus, wenn sie gültig ist.
func (a *app) changeProviders(ctx context.Context, change func(tx *gorm.DB) error) error {
	var next *providers.Registry
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := change(tx); err != nil {
			return err
		}
		reg, err := providers.Load(ctx, tx)
		if err != nil {
			return errors.Join(errInvalidProviders, err)
		}
		next = reg
		return nil
	})
	if err != nil {
		return err
	}
	a.registry.Swap(next)
	a.log.Info("Provider registry reloaded", zap.Int("count", next.Len()))
	return nil
}

func (a *app) providerChangeFailed(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errInvalidProviders):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		a.log.Error("Provider change failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save provider"})
	}
	return true
}

// idParam liest eine numerische ID aus dem Pfad; an gorm geht nur die Zahl.
func idParam(c *gin.Context, name, msg string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return 0, false
	}
	return uint(id), true
}

func (a *app) setupArticleRoutes(rg *gin.RouterGroup) {
	parseID := func(c *gin.Context) (uint, bool) {
		return idParam(c, "id", "invalid article id")
	}

	rg.PUT("/articles/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var article models.Article
		if err := c.ShouldBindJSON(&article); err != nil || article.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		article.ID = id
		if err := a.meta.SaveArticle(c.Request.Context(), &article); err != nil {
			a.log.Error("DB error saving article", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save article"})
			return
		}
		c.JSON(http.StatusOK, article)
	})

	rg.GET("/articles/:id/meta", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		meta, err := a.meta.AllMeta(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, meta)
	})

	rg.PUT("/articles/:id/meta", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var values map[string]string
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if _, err := a.meta.GetArticle(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		if err := a.meta.SetMeta(c.Request.Context(), id, values); err != nil {
			a.log.Error("DB error saving article meta", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save meta"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": len(values)})
	})
}

func (a *app) setupClickRoutes(rg *gin.RouterGroup) {
	rg.GET("/clicks/recent", func(c *gin.Context) {
		n, _ := strconv.Atoi(c.DefaultQuery("n", "50"))
		events, err := a.clicks.Recent(c.Request.Context(), n)
		if err != nil {
			a.log.Error("Database query for recent clicks failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, events)
	})

	rg.GET("/clicks/summary/:article_id", func(c *gin.Context) {
		id, ok := idParam(c, "article_id", "invalid article id")
		if !ok {
			return
		}
		summary, err := a.clicks.SummaryByType(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}
