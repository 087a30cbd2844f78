package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration (new-listing event stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration; empty means the in-memory cache is used
	MemcacheAddr string

	// Telegram delivery (optional)
	TelegramToken   string
	TelegramChatIDs []string
	TelegramAPIURL  string

	// Watch configuration
	WatchURLs      []string
	PollInterval   time.Duration
	ReportInterval time.Duration
	PageCap        int

	// Country comparison
	Countries    []string
	BaseCurrency string
	RatesURL     string

	// Fetch/retry tunables
	FetchTimeout time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	BackoffCap   time.Duration
	Cooldown     time.Duration
	DomainMinGap time.Duration

	// Proxies: PROXY_<CC> per country plus an optional catch-all PROXY_URL
	ProxyByCountry map[string]string
	DefaultProxy   string

	// Header rotation pools (comma-separated overrides)
	UserAgents []string

	// Query parameters stripped during URL normalization
	StripParams []string

	// Diagnostics
	DebugHTML    bool
	DebugHTMLLen int
	DebugDumpDir string

	// Ops HTTP server (health + metrics)
	OpsAddr string

	// Environment
	Environment string
}

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	pollInterval, _ := strconv.Atoi(getEnv("CHECK_INTERVAL_SECONDS", "180"))
	reportInterval, _ := strconv.Atoi(getEnv("REPORT_INTERVAL_SECONDS", "1800"))
	pageCap, _ := strconv.Atoi(getEnv("PAGE_CAP", "1"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "25"))
	maxAttempts, _ := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	baseDelayMs, _ := strconv.Atoi(getEnv("BASE_DELAY_MS", "1500"))
	backoffCap, _ := strconv.Atoi(getEnv("BACKOFF_CAP_SECONDS", "60"))
	cooldown, _ := strconv.Atoi(getEnv("COOLDOWN_SECONDS", "300"))
	minGapMs, _ := strconv.Atoi(getEnv("DOMAIN_MIN_GAP_MS", "2000"))
	debugHTMLLen, _ := strconv.Atoi(getEnv("DEBUG_HTML_LEN", "1800"))

	countries := splitList(getEnv("COUNTRIES", "US,IT,FR,DE,ES,GB,KZ,HK"))
	proxies := make(map[string]string, len(countries))
	for _, cc := range countries {
		if v := strings.TrimSpace(os.Getenv("PROXY_" + cc)); v != "" {
			proxies[cc] = v
		}
	}

	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		TelegramToken:        getEnv("BOT_TOKEN", getEnv("TELEGRAM_BOT_TOKEN", "")),
		TelegramChatIDs:      splitList(getEnv("CHAT_ID", "")),
		TelegramAPIURL:       getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		WatchURLs:            splitList(getEnv("WATCH_URLS", "")),
		PollInterval:         time.Duration(pollInterval) * time.Second,
		ReportInterval:       time.Duration(reportInterval) * time.Second,
		PageCap:              pageCap,
		Countries:            countries,
		BaseCurrency:         getEnv("BASE_CURRENCY", "EUR"),
		RatesURL:             getEnv("RATES_URL", "https://api.exchangerate.host/latest"),
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		MaxAttempts:          maxAttempts,
		BaseDelay:            time.Duration(baseDelayMs) * time.Millisecond,
		BackoffCap:           time.Duration(backoffCap) * time.Second,
		Cooldown:             time.Duration(cooldown) * time.Second,
		DomainMinGap:         time.Duration(minGapMs) * time.Millisecond,
		ProxyByCountry:       proxies,
		DefaultProxy:         getEnv("PROXY_URL", ""),
		UserAgents:           splitList(getEnv("USER_AGENTS", "")),
		StripParams:          splitList(getEnv("STRIP_PARAMS", "")),
		DebugHTML:            getEnv("DEBUG_HTML", "0") == "1",
		DebugHTMLLen:         debugHTMLLen,
		DebugDumpDir:         getEnv("DEBUG_DUMP_DIR", ""),
		OpsAddr:              getEnv("OPS_ADDR", ":9090"),
		Environment:          getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the process cannot run with
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("BASE_DELAY_MS must be positive")
	}
	if c.BackoffCap < c.BaseDelay {
		return fmt.Errorf("BACKOFF_CAP_SECONDS must not be below the base delay")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL_SECONDS must be positive")
	}
	if c.PageCap < 1 {
		return fmt.Errorf("PAGE_CAP must be at least 1, got %d", c.PageCap)
	}
	if len(c.Countries) == 0 {
		return fmt.Errorf("COUNTRIES must not be empty")
	}
	for _, cc := range c.Countries {
		if !countryRe.MatchString(cc) {
			return fmt.Errorf("invalid country tag %q", cc)
		}
	}
	if len(c.TelegramChatIDs) > 0 && c.TelegramToken == "" {
		return fmt.Errorf("CHAT_ID is set but BOT_TOKEN is missing")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitList splits a comma-separated env value, dropping empty entries
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
