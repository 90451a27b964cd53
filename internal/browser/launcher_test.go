package browser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseWindowSize(t *testing.T) {
	w, h, err := parseWindowSize("1920, 1080")
	if err != nil {
		t.Fatalf("parseWindowSize() error = %v", err)
	}
	if w != 1920 || h != 1080 {
		t.Fatalf("parseWindowSize() = %d,%d; want 1920,1080", w, h)
	}

	for _, bad := range []string{"", "1920", "wide,1080", "1920,tall"} {
		if _, _, err := parseWindowSize(bad); err == nil {
			t.Fatalf("parseWindowSize(%q) = nil error; want error", bad)
		}
	}
}

func TestNewLauncherDefaults(t *testing.T) {
	l := NewLauncher(Config{})
	if l.cfg.WindowSize != "1920,1080" {
		t.Fatalf("WindowSize = %q; want %q", l.cfg.WindowSize, "1920,1080")
	}
	if l.cfg.UserAgent == "" {
		t.Fatalf("UserAgent is empty; want default user agent")
	}
	if l.cfg.LaunchTimeout <= 0 || l.cfg.ActionTimeout <= 0 {
		t.Fatalf("timeouts = %v/%v; want positive defaults", l.cfg.LaunchTimeout, l.cfg.ActionTimeout)
	}
}

func TestLaunchMissingBinary(t *testing.T) {
	l := NewLauncher(Config{BrowserPath: filepath.Join(t.TempDir(), "no-such-chromium")})
	tab, err := l.Launch(context.Background())
	if err == nil {
		t.Fatalf("Launch() = %v, nil; want error", tab)
	}
	if !strings.Contains(err.Error(), "browser binary unavailable") {
		t.Fatalf("Launch() error = %q; want to contain %q", err.Error(), "browser binary unavailable")
	}
}

func TestLaunchRemoteUnreachable(t *testing.T) {
	l := NewLauncher(Config{
		RemoteURL:     "ws://127.0.0.1:1/devtools/browser/missing",
		LaunchTimeout: 2 * time.Second,
	})
	tab, err := l.Launch(context.Background())
	if err == nil {
		t.Fatalf("Launch() = %v, nil; want error", tab)
	}
	if !strings.Contains(err.Error(), "connect to remote browser") {
		t.Fatalf("Launch() error = %q; want to contain %q", err.Error(), "connect to remote browser")
	}
}

func TestFrameLabel(t *testing.T) {
	f := Frame{Title: "reCAPTCHA", Src: "https://www.google.com/recaptcha/api2/anchor"}
	if got, want := f.Label(), "reCAPTCHA  https://www.google.com/recaptcha/api2/anchor"; got != want {
		t.Fatalf("Label() = %q; want %q", got, want)
	}
	if got := (Frame{}).Label(); got != "" {
		t.Fatalf("Label() = %q; want empty", got)
	}
}
