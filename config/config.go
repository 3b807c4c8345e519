package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/shelf/models"
)

// DefaultUserAgent is the browser identity presented to target sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Scraper ScraperConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// PublicDir holds index.html and styles.css for the UI shell.
	PublicDir string // default: "public"

	// LegacyErrorStatus answers input errors with 500 instead of 400.
	LegacyErrorStatus bool // default: false
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions caps concurrently open browsing contexts.
	MaxSessions int // default: 10

	// DefaultProxy is the proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is set on every browsing context and HTTP fetch.
	UserAgent string

	// AcceptLanguage is sent as the Accept-Language header.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// Stealth injects go-rod/stealth evasions into every page.
	Stealth bool // default: true
}

// ScraperConfig controls navigation, readiness and extraction.
type ScraperConfig struct {
	// NavigationTimeout bounds navigation up to DOMContentLoaded.
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay is slept after DOMContentLoaded so client-side
	// frameworks can populate the page.
	SettleDelay time.Duration // default: 2s

	// DOMStableBudget bounds an extra DOM-stability wait after the settle
	// delay. Zero disables it.
	DOMStableBudget time.Duration // default: 0

	// SelectorTimeout is the default wait for a strategy's signature selector.
	SelectorTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block while rendering.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks requests to well-known ad and tracking domains.
	BlockAds bool // default: false

	// FetchMode is used when a request does not name one.
	FetchMode string // default: "browser"

	// LayoutsFile is an optional YAML file with extra extraction layouts.
	LayoutsFile string

	// MaxBodyBytes caps the response body read in http fetch mode.
	MaxBodyBytes int64 // default: 10 MiB
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              envOr("SHELF_HOST", "0.0.0.0"),
			Port:              envIntOr("SHELF_PORT", 3000),
			Mode:              envOr("SHELF_MODE", "release"),
			PublicDir:         envOr("SHELF_PUBLIC_DIR", "public"),
			LegacyErrorStatus: envBoolOr("SHELF_LEGACY_ERROR_STATUS", false),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("SHELF_HEADLESS", true),
			MaxSessions:    envIntOr("SHELF_MAX_SESSIONS", 10),
			DefaultProxy:   os.Getenv("SHELF_PROXY"),
			NoSandbox:      envBoolOr("SHELF_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("SHELF_BROWSER_BIN"),
			UserAgent:      envOr("SHELF_USER_AGENT", DefaultUserAgent),
			AcceptLanguage: envOr("SHELF_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Stealth:        envBoolOr("SHELF_STEALTH", true),
		},
		Scraper: ScraperConfig{
			NavigationTimeout:    envDurationOr("SHELF_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:          envDurationOr("SHELF_SETTLE_DELAY", 2*time.Second),
			DOMStableBudget:      envDurationOr("SHELF_DOM_STABLE_BUDGET", 0),
			SelectorTimeout:      envDurationOr("SHELF_SELECTOR_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("SHELF_BLOCKED_RESOURCES", []string{"Font", "Media"}),
			BlockAds:             envBoolOr("SHELF_BLOCK_ADS", false),
			FetchMode:            envOr("SHELF_FETCH_MODE", models.FetchModeBrowser),
			LayoutsFile:          os.Getenv("SHELF_LAYOUTS_FILE"),
			MaxBodyBytes:         int64(envIntOr("SHELF_MAX_BODY_BYTES", 10<<20)),
		},
		Log: LogConfig{
			Level:  envOr("SHELF_LOG_LEVEL", "info"),
			Format: envOr("SHELF_LOG_FORMAT", "json"),
		},
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SHELF_PORT must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("SHELF_MAX_SESSIONS must be > 0, got %d", c.Browser.MaxSessions)
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("SHELF_NAV_TIMEOUT must be > 0")
	}
	if c.Scraper.SelectorTimeout <= 0 {
		return fmt.Errorf("SHELF_SELECTOR_TIMEOUT must be > 0")
	}
	if c.Scraper.SettleDelay < 0 || c.Scraper.DOMStableBudget < 0 {
		return fmt.Errorf("SHELF_SETTLE_DELAY and SHELF_DOM_STABLE_BUDGET must not be negative")
	}
	if !models.ValidFetchMode(c.Scraper.FetchMode) {
		return fmt.Errorf("SHELF_FETCH_MODE must be %q or %q, got %q",
			models.FetchModeBrowser, models.FetchModeHTTP, c.Scraper.FetchMode)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
