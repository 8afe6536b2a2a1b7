package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/config"
	"github.com/vmunix/cinedex/internal/events"
	"github.com/vmunix/cinedex/internal/nav"
	"github.com/vmunix/cinedex/internal/search"
	"github.com/vmunix/cinedex/internal/storage"
	"github.com/vmunix/cinedex/pkg/release/scoring"
)

// app is the catalog stack opened from configuration.
type app struct {
	cfg     *config.Config
	store   *storage.Handles
	bus     *events.Bus
	catalog *catalog.Catalog
	ranker  *search.Ranker
	nav     *nav.Navigator
	logger  *slog.Logger
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
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

func openApp(opts *options) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := newLogger(os.Stderr, opts.verbose)

	priority, err := scoring.ParsePriority(cfg.Catalog.QualityOrder)
	if err != nil {
		return nil, fmt.Errorf("config: catalog.quality_order: %w", err)
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	cat := catalog.New(store.Store, priority, logger)
	ranker := search.NewRanker(cat, logger)
	return &app{
		cfg:     cfg,
		store:   store,
		bus:     events.NewBus(store.Events, logger),
		catalog: cat,
		ranker:  ranker,
		nav: nav.New(cat, ranker, nav.Config{
			PageSize:    cfg.Search.PageSize,
			Threshold:   cfg.Search.Threshold,
			MaxTokenLen: cfg.Search.MaxTokenLen,
		}, logger),
		logger: logger,
	}, nil
}

func (a *app) Close() error {
	_ = a.bus.Close()
	return a.store.Close()
}
