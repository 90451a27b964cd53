package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"AGENT_BIND_ADDR", "AGENT_READ_TIMEOUT_MS", "AGENT_PORT_CANDIDATES", "BROWSER_HEADLESS", "NTFY_ENDPOINT", "AGENT_JOURNAL_ENABLED", "AGENT_JOURNAL_DIR", "BROWSER_CDP_URL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:8190" {
		t.Fatalf("BindAddr = %q; want 127.0.0.1:8190", cfg.BindAddr)
	}
	if !cfg.Headless || !cfg.NoSandbox || !cfg.CaptureOnFailure {
		t.Fatalf("cfg = %+v; want headless, no-sandbox and capture on failure", cfg)
	}
	if cfg.ReadTimeout() != 5*time.Second || cfg.SettleDelay() != 3*time.Second || cfg.FieldTimeout() != 10*time.Second {
		t.Fatalf("timeouts = %v/%v/%v; want 5s/3s/10s", cfg.ReadTimeout(), cfg.SettleDelay(), cfg.FieldTimeout())
	}
	if strings.Join(cfg.PortCandidates, ",") != "127.0.0.1:8191,127.0.0.1:8192,127.0.0.1:8193" {
		t.Fatalf("PortCandidates = %v", cfg.PortCandidates)
	}
	if cfg.NTFYEndpoint != "" {
		t.Fatalf("NTFYEndpoint = %q; want disabled", cfg.NTFYEndpoint)
	}
	if !cfg.JournalEnabled || cfg.JournalDir != "./data/journal" {
		t.Fatalf("journal = %v %q; want enabled in ./data/journal", cfg.JournalEnabled, cfg.JournalDir)
	}
	if cfg.Browser().RemoteURL != "" {
		t.Fatalf("Browser().RemoteURL = %q; want local launch", cfg.Browser().RemoteURL)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	t.Setenv("AGENT_BIND_ADDR", "0.0.0.0:9000")
	t.Setenv("AGENT_PORT_CANDIDATES", "9001")
	t.Setenv("AGENT_READ_TIMEOUT_MS", "10")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("AGENT_LOG_LEVEL", "DEBUG")
	t.Setenv("BROWSER_LAUNCH_TIMEOUT_MS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.ReadTimeoutMS != 1000 {
		t.Fatalf("ReadTimeoutMS = %d; want clamped to 1000", cfg.ReadTimeoutMS)
	}
	if cfg.Headless {
		t.Fatal("Headless = true; want false")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q; want debug", cfg.LogLevel)
	}
	if len(cfg.PortCandidates) != 1 || cfg.PortCandidates[0] != "0.0.0.0:9001" {
		t.Fatalf("PortCandidates = %v; want [0.0.0.0:9001]", cfg.PortCandidates)
	}
	if b := cfg.Browser(); b.LaunchTimeout != 20*time.Second || b.Headless {
		t.Fatalf("Browser() = %+v; want default launch timeout, headful", b)
	}
}

func TestLoadProviderMissingFileUsesDefaults(t *testing.T) {
	p, err := LoadProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadProvider() = %v", err)
	}
	if p.LoginURL != DefaultLoginURL || p.Selectors.Email == "" || len(p.Holdings.IgnoreTokens) == 0 {
		t.Fatalf("LoadProvider() = %+v; want defaults", p)
	}
}

func TestLoadProviderOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	body := `login_url: https://broker.example.com/sign-in
markers:
  authenticated_segments: [holdings, home]
selectors:
  email: "#username"
holdings:
  currency: USD
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("os.WriteFile() = %v", err)
	}

	p, err := LoadProvider(path)
	if err != nil {
		t.Fatalf("LoadProvider() = %v", err)
	}
	if p.LoginURL != "https://broker.example.com/sign-in" {
		t.Fatalf("LoginURL = %q", p.LoginURL)
	}
	if strings.Join(p.Markers.AuthenticatedSegments, ",") != "holdings,home" {
		t.Fatalf("AuthenticatedSegments = %v; want replaced list", p.Markers.AuthenticatedSegments)
	}
	if len(p.Markers.MFASegments) == 0 {
		t.Fatal("MFASegments lost; want default kept")
	}
	if p.Selectors.Email != "#username" || p.Selectors.Password != `input[name="password"]` {
		t.Fatalf("Selectors = %+v; want email overridden, password default", p.Selectors)
	}
	if p.Holdings.Currency != "USD" || len(p.Holdings.IgnoreTokens) == 0 {
		t.Fatalf("Holdings = %+v; want USD with default ignore list", p.Holdings)
	}
}

func TestLoadProviderRejectsBadURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	if err := os.WriteFile(path, []byte("login_url: ftp://nope\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() = %v", err)
	}
	if _, err := LoadProvider(path); err == nil {
		t.Fatal("LoadProvider() = nil; want validation error")
	}
}
