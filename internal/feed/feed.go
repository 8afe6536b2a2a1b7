// Package feed indexes video files that appear in watched directories.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/events"
)

// DefaultDebounce is how long a path must stay quiet before it is indexed.
const DefaultDebounce = 2 * time.Second

// LocatorPrefix marks locators of files found on local disk.
const LocatorPrefix = "feed:"

// Sink receives postings for new or changed files.
type Sink func(ctx context.Context, p catalog.Posting) error

// Config controls which files are watched and how often everything is rescanned.
type Config struct {
	Dirs           []string
	Extensions     []string      // with leading dot, matched case-insensitively
	RescanInterval time.Duration // 0 disables periodic rescans
	Debounce       time.Duration // 0 uses DefaultDebounce
}

// ScanResult counts one pass over a directory.
type ScanResult struct {
	Dir     string
	Seen    int
	Indexed int
	Failed  int
}

type fileState struct {
	size    int64
	modTime int64
}

// Watcher turns filesystem activity into catalog postings. A file is handed to the
// sink once per (size, mtime); failed files are retried on the next scan.
type Watcher struct {
	cfg    Config
	sink   Sink
	bus    events.Publisher
	logger *slog.Logger

	mu    sync.Mutex
	seen  map[string]fileState
	paths map[string]string // locator -> path
}

// New creates a watcher. bus may be nil.
func New(cfg Config, sink Sink, bus events.Publisher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	exts := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		exts[i] = strings.ToLower(ext)
	}
	cfg.Extensions = exts
	return &Watcher{
		cfg:    cfg,
		sink:   sink,
		bus:    bus,
		logger: logger.With("component", "feed"),
		seen:   make(map[string]fileState),
		paths:  make(map[string]string),
	}
}

// Path returns the file behind a locator handed out by this watcher. Every wanted
// file is registered on sight, so after the initial scan all watched files redeem.
func (w *Watcher) Path(locator string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.paths[locator]
	return p, ok
}

// Name identifies the watcher to the server runner.
func (w *Watcher) Name() string { return "feed" }

// Run watches the configured directories until ctx is canceled. Watches are set up
// before the initial scan so nothing that lands in between is missed.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.cfg.Dirs) == 0 {
		w.logger.Info("no watch directories configured")
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, dir := range w.cfg.Dirs {
		if err := addRecursive(fw, dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.scanAll(ctx)

	var rescan <-chan time.Time
	if w.cfg.RescanInterval > 0 {
		ticker := time.NewTicker(w.cfg.RescanInterval)
		defer ticker.Stop()
		rescan = ticker.C
	}
	flush := time.NewTicker(w.cfg.Debounce)
	defer flush.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev, pending)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-flush.C:
			for path, last := range pending {
				if now.Sub(last) < w.cfg.Debounce {
					continue
				}
				delete(pending, path)
				w.indexPath(ctx, path)
			}

		case <-rescan:
			w.scanAll(ctx)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]time.Time) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			// Files moved in with the directory produce no events of their own.
			_ = filepath.WalkDir(ev.Name, func(path string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && w.wanted(path) {
					pending[path] = time.Now()
				}
				return nil
			})
			return
		}
	}
	if w.wanted(ev.Name) {
		pending[ev.Name] = time.Now()
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

// Scan walks every configured directory once and indexes new or changed files.
func (w *Watcher) Scan(ctx context.Context) ([]ScanResult, error) {
	var (
		results []ScanResult
		errs    []error
	)
	for _, dir := range w.cfg.Dirs {
		res, err := w.scanDir(ctx, dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", dir, err))
			continue
		}
		results = append(results, res)
		w.publish(ctx, &events.FeedScanned{
			BaseEvent: events.NewBaseEvent(events.EventFeedScanned, events.EntityFeed, dir),
			Dir:       dir,
			Seen:      res.Seen,
			Indexed:   res.Indexed,
			Failed:    res.Failed,
		})
	}
	return results, errors.Join(errs...)
}

func (w *Watcher) scanAll(ctx context.Context) {
	results, err := w.Scan(ctx)
	if err != nil {
		w.logger.Error("scan failed", "error", err)
	}
	for _, r := range results {
		w.logger.Info("scan complete", "dir", r.Dir, "seen", r.Seen, "indexed", r.Indexed, "failed", r.Failed)
	}
}

func (w *Watcher) scanDir(ctx context.Context, dir string) (ScanResult, error) {
	res := ScanResult{Dir: dir}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skip unreadable path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !w.wanted(path) {
			return nil
		}
		res.Seen++
		switch w.indexPath(ctx, path) {
		case outcomeIndexed:
			res.Indexed++
		case outcomeFailed:
			res.Failed++
		}
		return nil
	})
	return res, err
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeIndexed
	outcomeFailed
)

func (w *Watcher) indexPath(ctx context.Context, path string) outcome {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return outcomeSkipped
	}
	state := fileState{size: info.Size(), modTime: info.ModTime().UnixNano()}

	w.mu.Lock()
	w.paths[Locator(path)] = path
	prev, ok := w.seen[path]
	w.mu.Unlock()
	if ok && prev == state {
		return outcomeSkipped
	}

	if err := w.sink(ctx, FilePosting(path, info)); err != nil {
		w.logger.Warn("index file failed", "path", path, "error", err)
		return outcomeFailed
	}

	w.mu.Lock()
	w.seen[path] = state
	w.mu.Unlock()
	return outcomeIndexed
}

// Locator derives the short stable locator of a local file from its path, so file
// buttons fit the transport's token limit however deep the file sits.
func Locator(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return LocatorPrefix + hex.EncodeToString(sum[:8])
}

// FilePosting describes a local file as a feed posting.
func FilePosting(path string, info fs.FileInfo) catalog.Posting {
	return catalog.Posting{
		Locator:  Locator(path),
		Filename: filepath.Base(path),
		Size:     info.Size(),
		PostedAt: info.ModTime(),
	}
}

func (w *Watcher) wanted(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	return slices.Contains(w.cfg.Extensions, strings.ToLower(filepath.Ext(name)))
}

func (w *Watcher) publish(ctx context.Context, e events.Event) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, e); err != nil {
		w.logger.Warn("publish event failed", "type", e.EventType(), "error", err)
	}
}
