package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/vmunix/cinedex/internal/bot"
	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/config"
	"github.com/vmunix/cinedex/internal/dispatch"
	"github.com/vmunix/cinedex/internal/events"
	"github.com/vmunix/cinedex/internal/feed"
	"github.com/vmunix/cinedex/internal/nav"
	"github.com/vmunix/cinedex/internal/search"
	"github.com/vmunix/cinedex/internal/server"
	"github.com/vmunix/cinedex/internal/storage"
	"github.com/vmunix/cinedex/internal/transport/webhook"
	"github.com/vmunix/cinedex/pkg/release/scoring"
)

// pruneInterval is how often the event log is trimmed to its retention window.
const pruneInterval = time.Hour

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes human-readable text to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.Discover()
		if errors.Is(err, config.ErrNoConfig) {
			return nil, fmt.Errorf("%w; run 'cinedex init' to create one", err)
		}
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

func runServer(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	priority, err := scoring.ParsePriority(cfg.Catalog.QualityOrder)
	if err != nil {
		return fmt.Errorf("config: catalog.quality_order: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bus := events.NewBus(store.Events, logger)
	defer bus.Close()

	// === Catalog and navigation ===
	cat := catalog.New(store.Store, priority, logger)
	ranker := search.NewRanker(cat, logger)
	navigator := nav.New(cat, ranker, nav.Config{
		PageSize:    cfg.Search.PageSize,
		Threshold:   cfg.Search.Threshold,
		MaxTokenLen: cfg.Search.MaxTokenLen,
	}, logger)

	// === Bot ===
	messenger := webhook.NewClient(cfg.Transport.OutboundURL, cfg.Transport.Timeout, logger)
	b := bot.New(bot.Deps{
		Messenger:  messenger,
		Navigator:  navigator,
		Suggester:  ranker,
		Indexer:    cat,
		Dispatcher: dispatch.NewDispatcher(cfg.Dispatch.Pace, bus, logger),
		Bus:        bus,
	}, bot.Access{
		AllowedUsers: cfg.Bot.AllowedUsers,
		SourceChats:  cfg.Bot.SourceChats,
	}, logger)

	// === Components ===
	watcher := feed.New(feed.Config{
		Dirs:           cfg.Feed.WatchDirs,
		Extensions:     cfg.Feed.Extensions,
		RescanInterval: cfg.Feed.RescanInterval,
	}, b.Index, bus, logger)
	messenger.SetPaths(watcher)

	hooks := webhook.NewServer(b, cat.Stats, logger).RequireSecret(cfg.Transport.Secret)
	components := []server.Component{
		server.Func("webhook", func(ctx context.Context) error {
			return hooks.ListenAndServe(ctx, cfg.Addr())
		}),
		watcher,
	}
	if cfg.Events.Retention > 0 {
		components = append(components, server.Retention(store.Events, cfg.Events.Retention, pruneInterval, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("cinedexd starting",
		"version", version,
		"addr", cfg.Addr(),
		"store", cfg.Store.Backend,
		"watch_dirs", len(cfg.Feed.WatchDirs),
	)
	err = server.NewRunner(logger, components...).Run(ctx)

	logger.Info("waiting for dispatches to finish")
	b.Wait()
	return err
}
