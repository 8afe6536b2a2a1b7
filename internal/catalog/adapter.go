package catalog

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmunix/cinedex/pkg/release"
	"github.com/vmunix/cinedex/pkg/release/scoring"
)

// Posting describes a file that appeared in the source feed.
type Posting struct {
	Locator  string    `json:"locator"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	PostedAt time.Time `json:"posted_at,omitzero"`
}

// entryStripes is the number of locks serializing AddRecord per entry.
const entryStripes = 64

// Catalog turns feed postings into entries and answers hierarchy lookups.
// It holds no catalog state of its own; every call reads through to the Store.
// Concurrent AddRecord calls for the same entry are serialized within the process.
type Catalog struct {
	store    Store
	priority scoring.Priority
	logger   *slog.Logger
	now      func() time.Time
	lastSeq  atomic.Int64
	stripes  [entryStripes]sync.Mutex
}

// New creates a catalog over store. A nil priority uses scoring.DefaultPriority.
func New(store Store, priority scoring.Priority, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if len(priority) == 0 {
		priority = scoring.DefaultPriority
	}
	return &Catalog{
		store:    store,
		priority: priority,
		logger:   logger.With("component", "catalog"),
		now:      time.Now,
	}
}

// Priority returns the quality order used for best-pick decisions.
func (c *Catalog) Priority() scoring.Priority {
	return c.priority
}

// AddRecord parses the posting's filename and upserts the file into its entry.
// A file for an existing (title, quality) or (title, season, episode, quality) slot
// replaces the previous locator. On ErrStoreUnavailable nothing was written.
func (c *Catalog) AddRecord(ctx context.Context, p Posting) (*Record, error) {
	info := release.Parse(p.Filename)
	if info.SearchKey == "" {
		return nil, fmt.Errorf("index %q: %w", p.Filename, ErrEmptyTitle)
	}

	kind := KindMovie
	if info.Kind == release.KindEpisode {
		kind = KindSeries
	}

	mu := c.entryLock(kind, info.SearchKey)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.store.Get(ctx, kind, info.SearchKey)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = &Entry{
			Kind:  kind,
			Key:   info.SearchKey,
			Title: info.Title,
			Seq:   c.nextSeq(),
		}
	case err != nil:
		return nil, fmt.Errorf("index %q: %w: %w", p.Filename, ErrStoreUnavailable, err)
	}

	entry := existing.Clone()
	if entry.Year == "" {
		entry.Year = info.Year
	}

	rec := Record{
		Kind:      info.Kind,
		Title:     info.Title,
		SearchKey: info.SearchKey,
		Year:      info.Year,
		Season:    info.Season,
		Episode:   info.Episode,
		Quality:   info.Quality,
		Locator:   p.Locator,
		Filename:  p.Filename,
		Size:      p.Size,
		Caption:   p.Caption,
		PostedAt:  p.PostedAt,
		IndexedAt: c.now(),
	}
	entry.put(rec)

	if err := c.store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("index %q: %w: %w", p.Filename, ErrStoreUnavailable, err)
	}

	c.logger.Debug("record indexed",
		"kind", kind,
		"key", info.SearchKey,
		"season", info.Season,
		"episode", info.Episode,
		"quality", info.Quality,
	)
	return &rec, nil
}

func (c *Catalog) entryLock(kind Kind, key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	return &c.stripes[h.Sum32()%entryStripes]
}

// nextSeq returns a clock-based sequence that never repeats within the process.
func (c *Catalog) nextSeq() int64 {
	for {
		last := c.lastSeq.Load()
		next := max(c.now().UnixNano(), last+1)
		if c.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// FindMovie returns the movie entry for key, or ErrNotFound.
func (c *Catalog) FindMovie(ctx context.Context, key string) (*Entry, error) {
	return c.find(ctx, KindMovie, key)
}

// FindSeries returns the series entry for key, or ErrNotFound.
func (c *Catalog) FindSeries(ctx context.Context, key string) (*Entry, error) {
	return c.find(ctx, KindSeries, key)
}

func (c *Catalog) find(ctx context.Context, kind Kind, key string) (*Entry, error) {
	e, err := c.store.Get(ctx, kind, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if e.Empty() {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, ErrNotFound)
	}
	return e, nil
}

// AllMovies returns every movie entry in insertion order.
func (c *Catalog) AllMovies(ctx context.Context) ([]*Entry, error) {
	return c.scan(ctx, KindMovie)
}

// AllSeries returns every series entry in insertion order.
func (c *Catalog) AllSeries(ctx context.Context) ([]*Entry, error) {
	return c.scan(ctx, KindSeries)
}

func (c *Catalog) scan(ctx context.Context, kind Kind) ([]*Entry, error) {
	entries, err := c.store.Scan(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w: %w", kind, ErrStoreUnavailable, err)
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.Empty() {
			out = append(out, e)
		}
	}
	return out, nil
}

// SeasonQualities returns every quality available for at least one episode of the season,
// ordered by the catalog's priority.
func (c *Catalog) SeasonQualities(ctx context.Context, key string, season int) ([]release.Quality, error) {
	e, err := c.FindSeries(ctx, key)
	if err != nil {
		return nil, err
	}
	s, ok := e.Seasons[season]
	if !ok || len(s) == 0 {
		return nil, fmt.Errorf("season %d of %q: %w", season, key, ErrNotFound)
	}
	return SeasonQualities(s, c.priority), nil
}

// SeasonQualities collects the distinct qualities across the season's episodes, ordered
// by priority.
func SeasonQualities(s Season, priority scoring.Priority) []release.Quality {
	seen := make(map[release.Quality]bool)
	var out []release.Quality
	for _, ep := range s {
		for q := range ep {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	priority.Sort(out)
	return out
}

// SeasonFiles returns one record per episode of the season in episode order.
// With best set, each episode contributes its most preferred quality; otherwise only
// episodes that have exactly quality q are included.
func SeasonFiles(s Season, q release.Quality, best bool, priority scoring.Priority) []Record {
	var out []Record
	for _, en := range s.EpisodeNumbers() {
		ep := s[en]
		pick := q
		if best {
			var ok bool
			if pick, ok = priority.Best(ep.Qualities()); !ok {
				continue
			}
		}
		if r, ok := ep[pick]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarizes catalog size.
type Stats struct {
	Movies   int `json:"movies"`
	Series   int `json:"series"`
	Episodes int `json:"episodes"`
	Files    int `json:"files"`
}

// Stats counts entries, episodes and files across the catalog.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	movies, err := c.AllMovies(ctx)
	if err != nil {
		return st, err
	}
	series, err := c.AllSeries(ctx)
	if err != nil {
		return st, err
	}
	st.Movies = len(movies)
	st.Series = len(series)
	for _, m := range movies {
		st.Files += m.FileCount()
	}
	for _, s := range series {
		for _, season := range s.Seasons {
			st.Episodes += len(season)
		}
		st.Files += s.FileCount()
	}
	return st, nil
}
