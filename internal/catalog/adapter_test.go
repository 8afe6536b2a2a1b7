package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/catalog/mocks"
	"github.com/vmunix/cinedex/pkg/release"
	"github.com/vmunix/cinedex/pkg/release/scoring"
	"go.uber.org/mock/gomock"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) (*catalog.Catalog, *catalog.MemoryStore) {
	t.Helper()
	store := catalog.NewMemoryStore()
	return catalog.New(store, nil, testLogger()), store
}

func add(t *testing.T, c *catalog.Catalog, locator, filename string) *catalog.Record {
	t.Helper()
	rec, err := c.AddRecord(context.Background(), catalog.Posting{Locator: locator, Filename: filename})
	require.NoError(t, err)
	return rec
}

func TestCatalog_AddRecord_Movie(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	rec := add(t, c, "msg:1", "Movie.Name.2020.1080p.mkv")
	assert.Equal(t, release.KindMovie, rec.Kind)
	assert.Equal(t, "movie name", rec.SearchKey)

	e, err := c.FindMovie(ctx, "movie name")
	require.NoError(t, err)
	assert.Equal(t, "Movie Name", e.Title)
	assert.Equal(t, "2020", e.Year)
	require.Contains(t, e.Files, release.Quality1080p)
	assert.Equal(t, "msg:1", e.Files[release.Quality1080p].Locator)
}

func TestCatalog_AddRecord_ReplacesSameQuality(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	add(t, c, "msg:1", "Movie.Name.2020.1080p.mkv")
	add(t, c, "msg:2", "Movie.Name.2020.720p.mkv")
	add(t, c, "msg:3", "Movie.Name.2020.1080p.mkv")

	movies, err := c.AllMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1, "re-indexing must not create a second entry")

	e := movies[0]
	assert.Len(t, e.Files, 2)
	assert.Equal(t, "msg:3", e.Files[release.Quality1080p].Locator)
	assert.Equal(t, "msg:2", e.Files[release.Quality720p].Locator)
}

func TestCatalog_AddRecord_Series(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	add(t, c, "a", "Show.Name.S01E01.720p.mkv")
	add(t, c, "b", "Show.Name.S01E02.720p.mkv")
	add(t, c, "c", "Show.Name.S01E02.1080p.mkv")
	add(t, c, "d", "Show.Name.S02E01.480p.mkv")
	add(t, c, "e", "Show.Name.S01E01.720p.mkv")

	e, err := c.FindSeries(ctx, "show name")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, e.SeasonNumbers())
	assert.Equal(t, []int{1, 2}, e.Seasons[1].EpisodeNumbers())
	assert.Equal(t, "e", e.Seasons[1][1][release.Quality720p].Locator)
	assert.Equal(t, 5-1, e.FileCount())

	_, err = c.FindMovie(ctx, "show name")
	assert.ErrorIs(t, err, catalog.ErrNotFound, "series and movies live in separate namespaces")
}

func TestCatalog_AddRecord_EmptyTitle(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.AddRecord(context.Background(), catalog.Posting{Locator: "x", Filename: "1080p.mkv"})
	assert.ErrorIs(t, err, catalog.ErrEmptyTitle)

	movies, err := c.AllMovies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, movies)
}

func TestCatalog_AddRecord_KeepsFeedMetadata(t *testing.T) {
	c, _ := newTestCatalog(t)
	posted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := c.AddRecord(context.Background(), catalog.Posting{
		Locator:  "msg:9",
		Filename: "Movie.2021.720p.mp4",
		Size:     1 << 30,
		Caption:  "Movie (2021)",
		PostedAt: posted,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), rec.Size)
	assert.Equal(t, "Movie (2021)", rec.Caption)
	assert.Equal(t, posted, rec.PostedAt)
	assert.False(t, rec.IndexedAt.IsZero())
}

func TestCatalog_AllMovies_InsertionOrder(t *testing.T) {
	c, _ := newTestCatalog(t)

	add(t, c, "1", "Zeta.2001.720p.mkv")
	add(t, c, "2", "Alpha.2002.720p.mkv")
	add(t, c, "3", "Mid.2003.720p.mkv")
	add(t, c, "4", "Zeta.2001.1080p.mkv")

	movies, err := c.AllMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "zeta", movies[0].Key)
	assert.Equal(t, "alpha", movies[1].Key)
	assert.Equal(t, "mid", movies[2].Key)
}

func TestCatalog_SeasonQualities(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	add(t, c, "a", "Show.S01E01.720p.mkv")
	add(t, c, "b", "Show.S01E02.1080p.mkv")
	add(t, c, "c", "Show.S01E03.mkv")

	qs, err := c.SeasonQualities(ctx, "show", 1)
	require.NoError(t, err)
	assert.Equal(t, []release.Quality{release.Quality1080p, release.Quality720p, release.QualityUnknown}, qs)

	_, err = c.SeasonQualities(ctx, "show", 7)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = c.SeasonQualities(ctx, "missing", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCatalog_SeasonQualities_CustomPriority(t *testing.T) {
	store := catalog.NewMemoryStore()
	c := catalog.New(store, scoring.Priority{release.Quality720p, release.Quality1080p}, testLogger())
	ctx := context.Background()

	add(t, c, "a", "Show.S01E01.720p.mkv")
	add(t, c, "b", "Show.S01E02.1080p.mkv")

	qs, err := c.SeasonQualities(ctx, "show", 1)
	require.NoError(t, err)
	assert.Equal(t, []release.Quality{release.Quality720p, release.Quality1080p}, qs)
}

func TestSeasonFiles(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	add(t, c, "e1-720", "Show.S01E01.720p.mkv")
	add(t, c, "e1-1080", "Show.S01E01.1080p.mkv")
	add(t, c, "e3-720", "Show.S01E03.720p.mkv")
	add(t, c, "e2-480", "Show.S01E02.480p.mkv")

	e, err := c.FindSeries(ctx, "show")
	require.NoError(t, err)
	s := e.Seasons[1]

	exact := catalog.SeasonFiles(s, release.Quality720p, false, c.Priority())
	assert.Equal(t, []string{"e1-720", "e3-720"}, locators(exact))

	best := catalog.SeasonFiles(s, release.QualityUnknown, true, c.Priority())
	assert.Equal(t, []string{"e1-1080", "e2-480", "e3-720"}, locators(best))
}

func TestCatalog_Stats(t *testing.T) {
	c, _ := newTestCatalog(t)

	add(t, c, "1", "Movie.2020.1080p.mkv")
	add(t, c, "2", "Movie.2020.720p.mkv")
	add(t, c, "3", "Show.S01E01.720p.mkv")
	add(t, c, "4", "Show.S01E02.720p.mkv")

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.Stats{Movies: 1, Series: 1, Episodes: 2, Files: 4}, st)
}

func TestCatalog_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	c := catalog.New(store, nil, testLogger())
	ctx := context.Background()
	boom := errors.New("disk on fire")

	t.Run("get fails", func(t *testing.T) {
		store.EXPECT().Get(gomock.Any(), catalog.KindMovie, "movie").Return(nil, boom)

		_, err := c.AddRecord(ctx, catalog.Posting{Locator: "1", Filename: "Movie.2020.mkv"})
		require.ErrorIs(t, err, catalog.ErrStoreUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("put fails", func(t *testing.T) {
		store.EXPECT().Get(gomock.Any(), catalog.KindMovie, "movie").Return(nil, catalog.ErrNotFound)
		store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(boom)

		_, err := c.AddRecord(ctx, catalog.Posting{Locator: "1", Filename: "Movie.2020.mkv"})
		assert.ErrorIs(t, err, catalog.ErrStoreUnavailable)
	})

	t.Run("find fails", func(t *testing.T) {
		store.EXPECT().Get(gomock.Any(), catalog.KindSeries, "show").Return(nil, boom)

		_, err := c.FindSeries(ctx, "show")
		assert.ErrorIs(t, err, catalog.ErrStoreUnavailable)
	})

	t.Run("scan fails", func(t *testing.T) {
		store.EXPECT().Scan(gomock.Any(), catalog.KindMovie).Return(nil, boom)

		_, err := c.AllMovies(ctx)
		assert.ErrorIs(t, err, catalog.ErrStoreUnavailable)
	})
}

func TestCatalog_PutFailureLeavesEntryUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	c := catalog.New(store, nil, testLogger())

	stored := &catalog.Entry{
		Kind:  catalog.KindMovie,
		Key:   "movie",
		Title: "Movie",
		Files: map[release.Quality]catalog.Record{
			release.Quality720p: {Locator: "old", Quality: release.Quality720p},
		},
	}
	store.EXPECT().Get(gomock.Any(), catalog.KindMovie, "movie").Return(stored, nil)
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

	_, err := c.AddRecord(context.Background(), catalog.Posting{Locator: "new", Filename: "Movie.720p.mkv"})
	require.ErrorIs(t, err, catalog.ErrStoreUnavailable)
	assert.Equal(t, "old", stored.Files[release.Quality720p].Locator, "store's entry must not be mutated in place")
}

// slowStore widens the window between Get and Put.
type slowStore struct {
	*catalog.MemoryStore
}

func (s slowStore) Get(ctx context.Context, kind catalog.Kind, key string) (*catalog.Entry, error) {
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.Get(ctx, kind, key)
}

func TestCatalog_AddRecord_ConcurrentSlots(t *testing.T) {
	store := catalog.NewMemoryStore()
	c := catalog.New(slowStore{store}, nil, testLogger())

	const episodes = 12
	var wg sync.WaitGroup
	errs := make(chan error, episodes+2)
	for i := 1; i <= episodes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AddRecord(context.Background(), catalog.Posting{
				Locator:  fmt.Sprintf("ep:%d", i),
				Filename: fmt.Sprintf("Dark.S01E%02d.720p.mkv", i),
			})
			errs <- err
		}()
	}
	for _, name := range []string{"Movie.2020.720p.mkv", "Movie.2020.1080p.mkv"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AddRecord(context.Background(), catalog.Posting{Locator: name, Filename: name})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	e, err := c.FindSeries(context.Background(), "dark")
	require.NoError(t, err)
	assert.Len(t, e.Seasons[1], episodes)

	m, err := c.FindMovie(context.Background(), "movie")
	require.NoError(t, err)
	assert.Len(t, m.Files, 2)
}

func locators(recs []catalog.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Locator
	}
	return out
}
