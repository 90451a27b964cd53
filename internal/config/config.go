package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/holdings_agent/internal/browser"
	"github.com/dgnsrekt/holdings_agent/internal/netutil"
)

// Config holds all configuration for the holdings agent.
type Config struct {
	// HTTP control API
	BindAddr         string
	PortAutoFallback bool
	PortCandidates   []string

	LogLevel string
	LogFile  string

	SnapshotDir    string
	ProviderFile   string
	JournalEnabled bool
	JournalDir     string

	// Browser launch settings
	BrowserCDPURL   string
	BrowserPath     string
	Headless        bool
	NoSandbox       bool
	WindowSize      string
	UserAgent       string
	LaunchTimeoutMS int

	// Session timing
	ReadTimeoutMS  int
	SettleDelayMS  int
	FieldTimeoutMS int

	CaptureOnFailure bool
	NTFYEndpoint     string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:         getEnvOrDefault("AGENT_BIND_ADDR", "127.0.0.1:8190"),
		PortAutoFallback: getEnvBoolOrDefault("AGENT_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("AGENT_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("AGENT_LOG_FILE", "logs/holdings_agent.log"),
		SnapshotDir:      getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		ProviderFile:     getEnvOrDefault("AGENT_PROVIDER_FILE", "./config/provider.yaml"),
		JournalEnabled:   getEnvBoolOrDefault("AGENT_JOURNAL_ENABLED", true),
		JournalDir:       getEnvOrDefault("AGENT_JOURNAL_DIR", "./data/journal"),
		BrowserCDPURL:    os.Getenv("BROWSER_CDP_URL"),
		BrowserPath:      os.Getenv("BROWSER_PATH"),
		Headless:         getEnvBoolOrDefault("BROWSER_HEADLESS", true),
		NoSandbox:        getEnvBoolOrDefault("BROWSER_NO_SANDBOX", true),
		WindowSize:       getEnvOrDefault("BROWSER_WINDOW_SIZE", "1920,1080"),
		UserAgent:        os.Getenv("BROWSER_USER_AGENT"),
		LaunchTimeoutMS:  getEnvIntOrDefault("BROWSER_LAUNCH_TIMEOUT_MS", 20000),
		ReadTimeoutMS:    getEnvIntOrDefault("AGENT_READ_TIMEOUT_MS", 5000),
		SettleDelayMS:    getEnvIntOrDefault("AGENT_SETTLE_DELAY_MS", 3000),
		FieldTimeoutMS:   getEnvIntOrDefault("AGENT_FIELD_TIMEOUT_MS", 10000),
		CaptureOnFailure: getEnvBoolOrDefault("AGENT_CAPTURE_ON_FAILURE", true),
		NTFYEndpoint:     os.Getenv("NTFY_ENDPOINT"),
	}
	if cfg.ReadTimeoutMS < 1000 {
		cfg.ReadTimeoutMS = 1000
	}

	host := "127.0.0.1"
	if i := strings.LastIndex(cfg.BindAddr, ":"); i > 0 {
		host = cfg.BindAddr[:i]
	}
	cfg.PortCandidates = netutil.ParseCandidates(getEnvOrDefault("AGENT_PORT_CANDIDATES", "8191,8192,8193"), host)

	return cfg, nil
}

// Browser returns the launcher settings.
func (c *Config) Browser() browser.Config {
	return browser.Config{
		RemoteURL:     c.BrowserCDPURL,
		BrowserPath:   c.BrowserPath,
		Headless:      c.Headless,
		NoSandbox:     c.NoSandbox,
		WindowSize:    c.WindowSize,
		UserAgent:     c.UserAgent,
		LaunchTimeout: ms(c.LaunchTimeoutMS),
		ActionTimeout: ms(c.ReadTimeoutMS),
	}
}

func (c *Config) ReadTimeout() time.Duration  { return ms(c.ReadTimeoutMS) }
func (c *Config) SettleDelay() time.Duration  { return ms(c.SettleDelayMS) }
func (c *Config) FieldTimeout() time.Duration { return ms(c.FieldTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
