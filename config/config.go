package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Extract  ExtractConfig
	Governor GovernorConfig
	Batch    BatchConfig
	Cache    CacheConfig
	Server   ServerConfig
	Webhook  WebhookConfig
	Log      LogConfig
}

// BrowserConfig controls the Rod browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all navigations.
	DefaultProxy string

	// UserAgent pins the user agent. Empty picks one from the built-in pool
	// when the session is created.
	UserAgent string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// MaxUsesPerSession retires a session after this many navigations.
	MaxUsesPerSession int // default: 50

	// MaxSessionAge retires a session older than this.
	MaxSessionAge time.Duration // default: 50m
}

// ScraperConfig controls a single navigation.
type ScraperConfig struct {
	// WaitBudget is the per-navigation content-ready timeout.
	WaitBudget time.Duration // default: 10s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay bounds the wait for the DOM to stop changing once the
	// ready marker has appeared.
	SettleDelay time.Duration // default: 2s

	// ScrollNudge scrolls past the action bar and back once the post has
	// rendered so lazily mounted counters appear.
	ScrollNudge bool // default: true
}

// ExtractConfig tunes strategy validation.
type ExtractConfig struct {
	// MaxPlausibleCount rejects counts above this value.
	MaxPlausibleCount int64 // default: 100_000_000_000

	// ViewsFloor is the minimum value the large-number scan accepts as views.
	ViewsFloor int64 // default: 1_000_000
}

// GovernorConfig controls pacing and retries.
type GovernorConfig struct {
	ItemDelayMin            time.Duration // default: 8s
	ItemDelayMax            time.Duration // default: 15s
	GroupSize               int           // default: 5
	GroupDelay              time.Duration // default: 30s
	CooldownAfter           int           // default: 3 consecutive failures
	FailureCooldown         time.Duration // default: 60s
	MaxAttempts             int           // default: 3
	InitialBackoff          time.Duration // default: 5s
	MaxBackoff              time.Duration // default: 30s
	BackoffMultiplier       float64       // default: 2
	MaxNavigationsPerMinute float64       // default: 6; <= 0 disables the ceiling
}

// BatchConfig is the control surface handed to the orchestrator.
type BatchConfig struct {
	InputFile  string
	OutputFile string // default: "engagement.csv"

	// StartIndex is the first input row to process.
	StartIndex int // default: 0

	// BatchSize bounds the window; 0 means to the end of the input.
	BatchSize int // default: 0

	// AutoSaveEvery persists progress after this many processed items.
	AutoSaveEvery int // default: 5

	// SessionCreateAttempts is how many launches are tried before the batch
	// is aborted.
	SessionCreateAttempts int // default: 2

	// Resume reads the checkpoint sidecar and continues after it.
	Resume bool
}

// CacheConfig controls the duplicate-URL record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached records. 0 disables caching.
	MaxEntries int // default: 1000

	// MaxAge is how long a cached record may be reused.
	MaxAge time.Duration // default: 1h
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string // empty disables the server
	Mode string // "debug", "release", "test"; default: "release"

	// APIKeys protect /progress and /metrics. Empty leaves them open.
	APIKeys []string

	// RequestsPerSecond and Burst bound status polling per client.
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// WebhookConfig controls the optional completion webhook.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     envBoolOr("POSTPULSE_HEADLESS", true),
			NoSandbox:    envBoolOr("POSTPULSE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("POSTPULSE_BROWSER_BIN"),
			DefaultProxy: os.Getenv("POSTPULSE_PROXY"),
			UserAgent:    os.Getenv("POSTPULSE_USER_AGENT"),
			BlockedResourceTypes: envSliceOr("POSTPULSE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			MaxUsesPerSession: envIntOr("POSTPULSE_MAX_USES_PER_SESSION", 50),
			MaxSessionAge:     envDurationOr("POSTPULSE_MAX_SESSION_AGE", 50*time.Minute),
		},
		Scraper: ScraperConfig{
			WaitBudget:        envDurationOr("POSTPULSE_WAIT_BUDGET", 10*time.Second),
			NavigationTimeout: envDurationOr("POSTPULSE_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:       envDurationOr("POSTPULSE_SETTLE_DELAY", 2*time.Second),
			ScrollNudge:       envBoolOr("POSTPULSE_SCROLL_NUDGE", true),
		},
		Extract: ExtractConfig{
			MaxPlausibleCount: envInt64Or("POSTPULSE_MAX_PLAUSIBLE_COUNT", 100_000_000_000),
			ViewsFloor:        envInt64Or("POSTPULSE_VIEWS_FLOOR", 1_000_000),
		},
		Governor: GovernorConfig{
			ItemDelayMin:            envDurationOr("POSTPULSE_ITEM_DELAY_MIN", 8*time.Second),
			ItemDelayMax:            envDurationOr("POSTPULSE_ITEM_DELAY_MAX", 15*time.Second),
			GroupSize:               envIntOr("POSTPULSE_GROUP_SIZE", 5),
			GroupDelay:              envDurationOr("POSTPULSE_GROUP_DELAY", 30*time.Second),
			CooldownAfter:           envIntOr("POSTPULSE_COOLDOWN_AFTER", 3),
			FailureCooldown:         envDurationOr("POSTPULSE_FAILURE_COOLDOWN", 60*time.Second),
			MaxAttempts:             envIntOr("POSTPULSE_MAX_ATTEMPTS", 3),
			InitialBackoff:          envDurationOr("POSTPULSE_INITIAL_BACKOFF", 5*time.Second),
			MaxBackoff:              envDurationOr("POSTPULSE_MAX_BACKOFF", 30*time.Second),
			BackoffMultiplier:       envFloatOr("POSTPULSE_BACKOFF_MULTIPLIER", 2.0),
			MaxNavigationsPerMinute: envFloatOr("POSTPULSE_MAX_NAV_PER_MINUTE", 6),
		},
		Batch: BatchConfig{
			InputFile:             os.Getenv("POSTPULSE_INPUT"),
			OutputFile:            envOr("POSTPULSE_OUTPUT", "engagement.csv"),
			StartIndex:            envIntOr("POSTPULSE_START_INDEX", 0),
			BatchSize:             envIntOr("POSTPULSE_BATCH_SIZE", 0),
			AutoSaveEvery:         envIntOr("POSTPULSE_AUTOSAVE_EVERY", 5),
			SessionCreateAttempts: envIntOr("POSTPULSE_SESSION_CREATE_ATTEMPTS", 2),
			Resume:                envBoolOr("POSTPULSE_RESUME", false),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("POSTPULSE_CACHE_MAX_ENTRIES", 1000),
			MaxAge:     envDurationOr("POSTPULSE_CACHE_MAX_AGE", time.Hour),
		},
		Server: ServerConfig{
			Addr:              os.Getenv("POSTPULSE_STATUS_ADDR"),
			Mode:              envOr("POSTPULSE_MODE", "release"),
			APIKeys:           envSliceOr("POSTPULSE_STATUS_API_KEYS", nil),
			RequestsPerSecond: envFloatOr("POSTPULSE_STATUS_RPS", 5),
			Burst:             envIntOr("POSTPULSE_STATUS_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("POSTPULSE_WEBHOOK_URL"),
			Secret: os.Getenv("POSTPULSE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("POSTPULSE_LOG_LEVEL", "info"),
			Format: envOr("POSTPULSE_LOG_FORMAT", "text"),
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Batch.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.Batch.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.Batch.StartIndex < 0 {
		return fmt.Errorf("start index cannot be negative")
	}
	if c.Batch.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	if c.Batch.AutoSaveEvery <= 0 {
		return fmt.Errorf("auto-save cadence must be positive")
	}
	if c.Batch.SessionCreateAttempts <= 0 {
		return fmt.Errorf("session create attempts must be positive")
	}
	if c.Scraper.WaitBudget <= 0 {
		return fmt.Errorf("wait budget must be positive")
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	g := c.Governor
	if g.ItemDelayMin < 0 || g.ItemDelayMax < 0 || g.GroupDelay < 0 || g.FailureCooldown < 0 {
		return fmt.Errorf("pacing delays cannot be negative")
	}
	if g.ItemDelayMax < g.ItemDelayMin {
		return fmt.Errorf("item delay max (%s) cannot be below item delay min (%s)", g.ItemDelayMax, g.ItemDelayMin)
	}
	if g.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if g.InitialBackoff < 0 || g.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if g.MaxBackoff > 0 && g.InitialBackoff > g.MaxBackoff {
		return fmt.Errorf("initial backoff (%s) cannot exceed max backoff (%s)", g.InitialBackoff, g.MaxBackoff)
	}
	if c.Server.Addr != "" && (c.Server.RequestsPerSecond <= 0 || c.Server.Burst <= 0) {
		return fmt.Errorf("status server rate limit must be positive")
	}
	if c.Extract.ViewsFloor < 0 || c.Extract.MaxPlausibleCount <= 0 {
		return fmt.Errorf("count bounds must be positive")
	}
	if c.Extract.ViewsFloor > c.Extract.MaxPlausibleCount {
		return fmt.Errorf("views floor cannot exceed max plausible count")
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

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
	if v := os.Getenv(key); v != "" {
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
