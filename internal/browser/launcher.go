package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Config holds browser launch configuration.
type Config struct {
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// (ws:// or http://host:9222) instead of starting a process.
	RemoteURL string
	// BrowserPath overrides binary detection when set.
	BrowserPath   string
	Headless      bool
	NoSandbox     bool
	WindowSize    string
	UserAgent     string
	LaunchTimeout time.Duration
	// ActionTimeout bounds every single read or interaction on the tab.
	ActionTimeout time.Duration
}

// Launcher starts headless browser sessions with a fixed configuration.
type Launcher struct {
	cfg Config
}

// NewLauncher creates a new browser launcher with the given config.
func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1920,1080"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 20 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 5 * time.Second
	}
	return &Launcher{cfg: cfg}
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %s)", strings.Join(candidates, ", "))
}

// parseWindowSize turns "1920,1080" into its two components.
func parseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid window size %q", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid window width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid window height %q: %w", h, err)
	}
	return width, height, nil
}

func (l *Launcher) allocatorOptions(browserPath string, width, height int) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.ExecPath(browserPath),
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(width, height),
		chromedp.UserAgent(l.cfg.UserAgent),
		chromedp.WSURLReadTimeout(l.cfg.LaunchTimeout),
	)
	return opts
}

// Launch starts a fresh browser process and returns its single tab. The tab
// lives until Close is called; ctx only bounds the launch itself.
func (l *Launcher) Launch(ctx context.Context) (*Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cfg.RemoteURL != "" {
		return l.attach(ctx)
	}

	browserPath := l.cfg.BrowserPath
	if browserPath == "" {
		detected, err := detectBrowser()
		if err != nil {
			return nil, err
		}
		browserPath = detected
	} else if _, err := os.Stat(browserPath); err != nil {
		return nil, fmt.Errorf("browser binary unavailable: %w", err)
	}
	slog.Info("detected browser", "path", browserPath)

	width, height, err := parseWindowSize(l.cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions(browserPath, width, height)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process. It must not use a derived timeout
	// context or the browser would be torn down when that context ends;
	// WSURLReadTimeout bounds the startup instead.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	slog.Info("browser session started",
		"headless", l.cfg.Headless,
		"no_sandbox", l.cfg.NoSandbox,
		"window_size", l.cfg.WindowSize,
	)
	return newTab(tabCtx, tabCancel, allocCancel, l.cfg.ActionTimeout), nil
}

// attach opens a new tab in a remote browser. Closing the tab closes only
// that target; the remote process keeps running.
func (l *Launcher) attach(ctx context.Context) (*Tab, error) {
	slog.Info("connecting to remote browser", "url", l.cfg.RemoteURL)

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), l.cfg.RemoteURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	connCtx, connCancel := context.WithTimeout(ctx, l.cfg.LaunchTimeout)
	defer connCancel()
	stop := context.AfterFunc(connCtx, tabCancel)
	err := chromedp.Run(tabCtx)
	if !stop() || err != nil {
		tabCancel()
		allocCancel()
		if err == nil {
			err = connCtx.Err()
		}
		return nil, fmt.Errorf("connect to remote browser: %w", err)
	}

	slog.Info("remote browser tab opened", "url", l.cfg.RemoteURL)
	return newTab(tabCtx, tabCancel, allocCancel, l.cfg.ActionTimeout), nil
}
