package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"multidrive/config"
	"multidrive/models"
	"multidrive/providers"
	"multidrive/providers/wechat"
	"multidrive/services"
	"multidrive/storage"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := migrate(db); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}
	seedDefaultProviders(db, logging)

	// Setup shared key/value store
	ctx := context.Background()
	var redisClient *redis.Client
	var kv storage.KV
	var sqlKV *storage.SQLKV
	if cfg.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logging.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		kv = storage.NewRedisKV(redisClient)
		logging.Info("Unlock ledger backed by redis.")
	} else {
		sqlKV = storage.NewSQLKV(db)
		kv = sqlKV
		logging.Info("REDIS_URL not set, unlock ledger backed by kv_entries table.")
	}

	a, err := newApp(cfg, db, kv, logging)
	if err != nil {
		logging.Fatal("Failed to build application", zap.Error(err))
	}
	a.redis = redisClient

	// Setup Cron
	cronScheduler := cron.New()
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiver := &services.ClickArchiver{
			Source: a.clicks,
			Store:  storage.NewS3Store(s3Client, cfg.ArchiveS3Bucket),
			Keep:   cfg.ArchiveKeep,
			Logger: logging.Named("archive"),
		}
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled click archive job...")
			jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, _, err := archiver.ExportDay(jobCtx, time.Now().UTC().AddDate(0, 0, -1)); err != nil {
				logging.Error("Click archive export failed", zap.Error(err))
				return
			}
			if n, err := archiver.Rotate(jobCtx); err != nil {
				logging.Error("Click archive rotation failed", zap.Error(err))
			} else {
				logging.Info("Click archive job completed", zap.Int("deleted_archives", n))
			}
		})
	}
	if sqlKV != nil {
		cronScheduler.AddFunc("@every 15m", func() {
			n, err := sqlKV.Purge(context.Background())
			if err != nil {
				logging.Warn("Purging expired kv entries failed", zap.Error(err))
				return
			}
			logging.Debug("Expired kv entries purged", zap.Int64("rows", n))
		})
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	router, err := a.router()
	if err != nil {
		logging.Fatal("Failed to set up router", zap.Error(err))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Article{},
		&models.ArticleMeta{},
		&models.DriveProvider{},
		&models.ClickEvent{},
		&models.KVEntry{},
	)
}

// app bündelt alle Abhängigkeiten der HTTP-Routen.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.Logger
	redis    *redis.Client
	registry *providers.Holder
	meta     *services.MetaStore
	clicks   *services.ClickLedger
	ledger   *services.UnlockLedger
	verifier *services.Verifier
	engine   *services.RedirectEngine
	pages    *services.PageBuilder
}

func newApp(cfg *config.Config, db *gorm.DB, kv storage.KV, logging *zap.Logger) (*app, error) {
	reg, err := providers.Load(context.Background(), db)
	if err != nil {
		return nil, err
	}
	logging.Info("Active providers loaded", zap.Int("count", reg.Len()))

	a := &app{
		cfg:      cfg,
		db:       db,
		log:      logging,
		registry: providers.NewHolder(reg),
		meta:     services.NewMetaStore(db),
		clicks:   services.NewClickLedger(db, logging.Named("clicks")),
		ledger:   services.NewUnlockLedger(kv),
	}

	var (
		client *wechat.Client
		tokens *services.TokenCache
	)
	if cfg.WeChatConfigured() {
		client = wechat.NewClient(cfg, logging.Named("wechat"))
		tokens = services.NewTokenCache(kv, cfg.WeChatAppID, cfg.WeChatAppSecret, client.FetchAccessToken, logging.Named("token"))
	} else if cfg.UnlockMode == config.UnlockModeWeChatFollow {
		logging.Warn("UNLOCK_MODE is wechat_follow but WeChat credentials are missing; unlocking without verification")
	}
	a.verifier = services.NewWeChatVerifier(cfg, client, tokens, a.ledger, logging.Named("verifier"))

	override := unlockOverride(cfg)
	a.engine = services.NewRedirectEngine(a.registry, a.meta, a.ledger, a.clicks, logging.Named("redirect"),
		services.WithUnlockOverride(override),
		services.WithAuthorizer(loginAuthorizer(cfg)),
		services.WithTargetFilter(hostAllowed(cfg.RedirectAllowedHosts)),
	)
	a.pages = services.NewPageBuilder(a.registry, a.meta, cfg.PageModules, override)
	return a, nil
}

// unlockOverride setzt UNLOCK_MODE und UNLOCK_OVERRIDE in eine Regel für die Engine um.
func unlockOverride(cfg *config.Config) services.UnlockOverride {
	return func(_ context.Context, _ services.RedirectRequest, requires bool) bool {
		if cfg.UnlockMode == config.UnlockModeNone {
			return false
		}
		switch cfg.UnlockOverride {
		case "all":
			return true
		case "none":
			return false
		}
		return requires
	}
}

// loginAuthorizer lehnt anonyme Downloads ab, wenn REQUIRE_LOGIN gesetzt ist.
func loginAuthorizer(cfg *config.Config) services.Authorizer {
	return func(_ context.Context, req services.RedirectRequest) error {
		if cfg.RequireLogin && req.UserID == 0 {
			return services.ErrPermissionDenied
		}
		return nil
	}
}

// hostAllowed prüft Ziele gegen REDIRECT_ALLOWED_HOSTS. Eine leere Liste erlaubt alles;
// Einträge gelten auch für Subdomains.
func hostAllowed(allowed []string) services.TargetFilter {
	return func(target string) bool {
		if len(allowed) == 0 {
			return true
		}
		u, err := url.Parse(target)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range allowed {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if host == h || strings.HasSuffix(host, "."+h) {
				return true
			}
		}
		return false
	}
}

func seedDefaultProviders(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.DriveProvider{}).Count(&count)
	if count > 0 {
		return
	}
	defaults := []models.DriveProvider{
		{Key: "baidu", Label: "Baidu Netdisk", Alias: "bd", SortOrder: 1, Enabled: true},
		{Key: "aliyun", Label: "Aliyun Drive", Alias: "ali", SortOrder: 2, Enabled: true},
		{Key: "quark", Label: "Quark Drive", Alias: "qk", SortOrder: 3, Enabled: true},
		{Key: "123pan", Label: "123 Pan", SortOrder: 4, Enabled: true},
		{Key: "lanzou", Label: "Lanzou Cloud", Alias: "lz", SortOrder: 5, Enabled: true},
	}
	if err := db.Create(&defaults).Error; err != nil {
		logger.Warn("Failed to seed default providers", zap.Error(err))
	} else {
		logger.Info("Default providers seeded.")
	}
}
