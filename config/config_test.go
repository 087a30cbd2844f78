package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "listings", cfg.RedisStream)
	assert.Equal(t, 180*time.Second, cfg.PollInterval)
	assert.Equal(t, 1800*time.Second, cfg.ReportInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.BackoffCap)
	assert.Equal(t, 300*time.Second, cfg.Cooldown)
	assert.Equal(t, 25*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, []string{"US", "IT", "FR", "DE", "ES", "GB", "KZ", "HK"}, cfg.Countries)
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CHECK_INTERVAL_SECONDS", "60")
	t.Setenv("COUNTRIES", "US, GB ,DE")
	t.Setenv("WATCH_URLS", "https://www.ebay.com/sch/i.html?_nkw=boots")
	t.Setenv("PROXY_DE", "http://proxy.de:8080")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("DEBUG_HTML", "1")

	cfg := LoadConfig()

	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"US", "GB", "DE"}, cfg.Countries)
	assert.Len(t, cfg.WatchURLs, 1)
	assert.Equal(t, "http://proxy.de:8080", cfg.ProxyByCountry["DE"])
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.True(t, cfg.DebugHTML)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := LoadConfig()
	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Countries = []string{"USA"}
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Countries = nil
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.PageCap = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.BackoffCap = cfg.BaseDelay / 2
	assert.Error(t, cfg.Validate())
}

func TestValidateChatWithoutToken(t *testing.T) {
	t.Setenv("CHAT_ID", "12345")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg := LoadConfig()
	require.Error(t, cfg.Validate())

	t.Setenv("BOT_TOKEN", "abc:def")
	cfg = LoadConfig()
	assert.NoError(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
}
