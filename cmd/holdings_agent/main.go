package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/holdings_agent/internal/api"
	"github.com/dgnsrekt/holdings_agent/internal/browser"
	"github.com/dgnsrekt/holdings_agent/internal/config"
	"github.com/dgnsrekt/holdings_agent/internal/controller"
	"github.com/dgnsrekt/holdings_agent/internal/netutil"
	"github.com/dgnsrekt/holdings_agent/internal/notify"
	"github.com/dgnsrekt/holdings_agent/internal/relay"
	"github.com/dgnsrekt/holdings_agent/internal/session"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
	"github.com/dgnsrekt/holdings_agent/internal/storage"
	"github.com/dgnsrekt/holdings_agent/internal/submitter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	provider, err := config.LoadProvider(cfg.ProviderFile)
	if err != nil {
		slog.Error("failed to load provider profile", "path", cfg.ProviderFile, "error", err)
		os.Exit(1)
	}

	slog.Info("holdings_agent config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"login_url", provider.LoginURL,
		"headless", cfg.Headless,
		"read_timeout_ms", cfg.ReadTimeoutMS,
		"settle_delay_ms", cfg.SettleDelayMS,
		"field_timeout_ms", cfg.FieldTimeoutMS,
		"capture_on_failure", cfg.CaptureOnFailure,
		"notify_enabled", cfg.NTFYEndpoint != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"snapshot_dir", cfg.SnapshotDir,
		"journal_dir", cfg.JournalDir,
		"remote_browser", cfg.BrowserCDPURL != "",
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	broker := relay.NewBroker()
	observers := session.Observers{broker}
	var notifier *notify.Notifier
	if cfg.NTFYEndpoint != "" {
		notifier = notify.New(cfg.NTFYEndpoint, &http.Client{Timeout: 10 * time.Second})
		observers = append(observers, notifier)
	}
	var journal *storage.Journal
	if cfg.JournalEnabled {
		journal = storage.NewJournal(cfg.JournalDir, 64, 10)
		observers = append(observers, journal)
	}

	launcher := browser.NewLauncher(cfg.Browser())
	launch := func(ctx context.Context) (session.Page, error) {
		tab, err := launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return tab, nil
	}

	sess := session.NewController(launch, session.Options{
		LoginURL:         provider.LoginURL,
		Markers:          provider.Markers,
		Submitter:        submitter.New(provider.Selectors, provider.Markers, cfg.SettleDelay(), cfg.FieldTimeout()),
		Holdings:         provider.Holdings,
		ReadTimeout:      cfg.ReadTimeout(),
		Snapshots:        snapStore,
		Observer:         observers,
		CaptureOnFailure: cfg.CaptureOnFailure,
	})
	defer sess.Close()

	svc := controller.NewService(sess, snapStore)
	h := api.NewServer(svc, broker)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("holdings_agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("holdings_agent server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdown(ctx, srv, sess, notifier, journal)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type closer interface {
	Close()
}

// shutdown drains HTTP requests first, then closes the session while its
// observers still accept events.
func shutdown(ctx context.Context, srv shutdowner, sess closer, notifier *notify.Notifier, journal *storage.Journal) {
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("holdings_agent shutdown failed", "error", err)
	}
	sess.Close()
	if notifier != nil {
		notifier.Flush()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Warn("session journal close failed", "error", err)
		}
	}
}

// setupLogger writes human-readable text to stdout and JSON lines to a
// rotating file.
func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	h := slogmulti.Fanout(
		slog.NewTextHandler(os.Stdout, opts),
		slog.NewJSONHandler(logWriter, opts),
	)
	slog.SetDefault(slog.New(h))
	return nil
}
