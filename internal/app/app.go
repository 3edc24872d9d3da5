package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/five82/perch/internal/config"
	"github.com/five82/perch/internal/engine"
	"github.com/five82/perch/internal/logapi"
	"github.com/five82/perch/internal/logtail"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/state"
	"github.com/five82/perch/internal/stream"
	"github.com/five82/perch/internal/ui"
)

// Options configure the perch application. Non-zero fields override the
// config file.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/perch/prefs.toml
	Server     string
	File       string // offline mode: read this file instead of a server
	Capacity   int
	Debug      bool
}

// Run boots the perch TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logFile, logger, err := setupLogging(cfg.LogFile, opts.Debug)
	if err != nil {
		return err
	}
	defer logFile.Close()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs := prefs.Load(prefsPath)

	uiOpts := ui.Options{
		StatusTick: cfg.StatusPoll,
		ThemeName:  userPrefs.Theme,
		Follow:     userPrefs.Follow,
		PrefsPath:  prefsPath,
		Logger:     logger,
	}

	if strings.TrimSpace(opts.File) != "" {
		return runOffline(ctx, cfg, opts.File, uiOpts, logger)
	}
	return runLive(ctx, cfg, uiOpts, logger)
}

// runLive wires the HTTP client, stream, engine and status poller around the UI.
func runLive(ctx context.Context, cfg config.Config, uiOpts ui.Options, logger *slog.Logger) error {
	client, err := logapi.NewClient(cfg.Server)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	sc, err := stream.New(client.StreamURL(), stream.Options{
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("init stream: %w", err)
	}
	defer sc.Close()

	eng := engine.New(client, engine.Options{
		Capacity:   cfg.Capacity,
		Subscriber: sc,
		Logger:     logger,
	})
	store := &state.Store{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sc.Run(gctx) })
	g.Go(func() error {
		eng.Run(gctx, sc.Events())
		return nil
	})
	g.Go(func() error {
		return RunPoller(gctx, store, client, cfg.StatusPoll, logger)
	})
	g.Go(func() error {
		if err := eng.LoadSnapshot(gctx, eng.Filter()); err != nil && gctx.Err() == nil {
			logger.Warn("initial snapshot failed", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		uiOpts.Context = gctx
		uiOpts.Engine = eng
		uiOpts.Store = store
		uiOpts.Clearer = client
		uiOpts.Origin = client.BaseURL()
		return ui.Run(uiOpts)
	})

	return g.Wait()
}

// runOffline serves a snapshot of a local file; no stream or poller runs.
func runOffline(ctx context.Context, cfg config.Config, path string, uiOpts ui.Options, logger *slog.Logger) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	eng := engine.New(logtail.Source{Path: path}, engine.Options{
		Capacity: cfg.Capacity,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := eng.LoadSnapshot(gctx, eng.Filter()); err != nil && gctx.Err() == nil {
			logger.Warn("load file failed", "path", path, "err", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		uiOpts.Context = gctx
		uiOpts.Engine = eng
		uiOpts.Origin = path
		return ui.Run(uiOpts)
	})
	return g.Wait()
}

func applyOverrides(cfg *config.Config, opts Options) {
	if server := strings.TrimSpace(opts.Server); server != "" {
		cfg.Server = server
	}
	if opts.Capacity > 0 {
		cfg.Capacity = opts.Capacity
	}
}

// setupLogging sends the standard logger (via bubbletea) and slog to path so
// nothing writes over the alternate screen.
func setupLogging(path string, debug bool) (*os.File, *slog.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := tea.LogToFile(path, "perch")
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return f, logger, nil
}
