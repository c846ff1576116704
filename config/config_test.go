package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDBEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "mcd")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "downloads")
}

func TestLoad_Defaults(t *testing.T) {
	setDBEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4242", cfg.HTTPPort)
	assert.Equal(t, UnlockModePacing, cfg.UnlockMode)
	assert.Equal(t, []string{"info", "links", "unlock", "notice"}, cfg.PageModules)
	assert.Equal(t, "X-User-ID", cfg.UserIDHeader)
	assert.Equal(t, 90, cfg.ArchiveKeep)
	assert.False(t, cfg.WeChatConfigured())
	assert.False(t, cfg.ArchiveEnabled())
	assert.Equal(t, "host=localhost user=mcd password=secret dbname=downloads port=5432 sslmode=disable", cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setDBEnv(t)
	t.Setenv("UNLOCK_MODE", "wechat_follow")
	t.Setenv("WECHAT_APP_ID", "wx1")
	t.Setenv("WECHAT_APP_SECRET", "s")
	t.Setenv("PAGE_MODULES", " Links ,INFO")
	t.Setenv("REDIRECT_ALLOWED_HOSTS", "baidu.com,quark.cn")
	t.Setenv("ARCHIVE_S3_URL", "https://s3.example.com")
	t.Setenv("ARCHIVE_S3_BUCKET", "clicks")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,172.16.0.0/12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, UnlockModeWeChatFollow, cfg.UnlockMode)
	assert.True(t, cfg.WeChatConfigured())
	assert.True(t, cfg.ArchiveEnabled())
	assert.Equal(t, []string{"links", "info"}, cfg.PageModules)
	assert.Equal(t, []string{"baidu.com", "quark.cn"}, cfg.RedirectAllowedHosts)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.TrustedProxies)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing db", func(t *testing.T) {
		setDBEnv(t)
		require.NoError(t, os.Unsetenv("DB_HOST"))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unlock mode", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("UNLOCK_MODE", "sometimes")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("override", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("UNLOCK_OVERRIDE", "maybe")
		_, err := Load()
		assert.Error(t, err)
	})
}
