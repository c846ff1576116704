package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Unlock-Modi der Seite.
const (
	UnlockModeNone         = "none"
	UnlockModePacing       = "pacing"
	UnlockModeWeChatFollow = "wechat_follow"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	SiteName     string `envconfig:"SITE_NAME" default:"Download"`

	// Leer = Unlock-Szenen und Token-Cache liegen in der SQL-Tabelle kv_entries.
	RedisURL string `envconfig:"REDIS_URL"`

	UnlockMode     string `envconfig:"UNLOCK_MODE" default:"pacing"`
	UnlockOverride string `envconfig:"UNLOCK_OVERRIDE"` // "", "all" oder "none"

	WeChatAppID      string `envconfig:"WECHAT_APP_ID"`
	WeChatAppSecret  string `envconfig:"WECHAT_APP_SECRET"`
	WeChatAPIBaseURL string `envconfig:"WECHAT_API_BASE_URL" default:"https://api.weixin.qq.com"`
	WeChatOpenURL    string `envconfig:"WECHAT_OPEN_BASE_URL" default:"https://open.weixin.qq.com"`
	WeChatFollowHint string `envconfig:"WECHAT_FOLLOW_HINT" default:"Please follow our official account, then scan the code again."`

	PageModules          []string `envconfig:"PAGE_MODULES" default:"info,links,unlock,notice"`
	RedirectAllowedHosts []string `envconfig:"REDIRECT_ALLOWED_HOSTS"`
	RequireLogin         bool     `envconfig:"REQUIRE_LOGIN" default:"false"`
	UserIDHeader         string   `envconfig:"USER_ID_HEADER" default:"X-User-ID"`
	RateLimit            string   `envconfig:"RATE_LIMIT" default:"60-M"`
	// Proxys (IPs/CIDRs), deren X-Forwarded-For übernommen wird. Leer = keinem vertrauen.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Archiv der Klick-Statistik (S3-kompatibel). Ohne Bucket kein Export.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"us-east-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
	ArchiveKeep     int    `envconfig:"ARCHIVE_KEEP" default:"90"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// WeChatConfigured meldet, ob App-ID und Secret gesetzt sind.
func (c *Config) WeChatConfigured() bool {
	return c.WeChatAppID != "" && c.WeChatAppSecret != ""
}

// ArchiveEnabled meldet, ob der Klick-Export nach S3 konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != "" && c.ArchiveS3URL != ""
}

// Validate prüft Werte, die envconfig nicht selbst prüfen kann.
func (c *Config) Validate() error {
	switch c.UnlockMode {
	case UnlockModeNone, UnlockModePacing, UnlockModeWeChatFollow:
	default:
		return fmt.Errorf("UNLOCK_MODE %q ist ungültig", c.UnlockMode)
	}
	switch c.UnlockOverride {
	case "", "all", "none":
	default:
		return fmt.Errorf("UNLOCK_OVERRIDE %q ist ungültig", c.UnlockOverride)
	}
	for i, m := range c.PageModules {
		c.PageModules[i] = strings.TrimSpace(strings.ToLower(m))
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
