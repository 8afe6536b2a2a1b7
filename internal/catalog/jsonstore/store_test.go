package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/pkg/release"
)

func movie(key string, seq int64, q release.Quality, locator string) *catalog.Entry {
	e := &catalog.Entry{Kind: catalog.KindMovie, Key: key, Title: key, Seq: seq}
	catalog.Attach(e, catalog.Record{Kind: release.KindMovie, Quality: q, Locator: locator, Filename: locator})
	return e
}

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "movies.json"))
	require.NoError(t, err)

	got, err := s.Scan(context.Background(), catalog.KindMovie)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Get(context.Background(), catalog.KindMovie, "x")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStore_PutPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, movie("b", 2, release.Quality720p, "m2")))
	require.NoError(t, s.Put(ctx, movie("a", 1, release.Quality1080p, "m1")))

	series := &catalog.Entry{Kind: catalog.KindSeries, Key: "show", Title: "Show", Seq: 3}
	catalog.Attach(series, catalog.Record{Kind: release.KindEpisode, Season: 1, Episode: 4, Quality: release.Quality480p, Locator: "e4"})
	require.NoError(t, s.Put(ctx, series))

	reopened, err := Open(path)
	require.NoError(t, err)

	movies, err := reopened.Scan(ctx, catalog.KindMovie)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "a", movies[0].Key)
	assert.Equal(t, "m1", movies[0].Files[release.Quality1080p].Locator)

	show, err := reopened.Get(ctx, catalog.KindSeries, "show")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindSeries, show.Kind)
	assert.Equal(t, "e4", show.Seasons[1][4][release.Quality480p].Locator)
}

func TestStore_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), movie("a", 1, release.Quality1080p, "m1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["movies"], 1)
	files, ok := raw["movies"][0]["files"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, files, "1080P")
}

func TestStore_ReturnsCopies(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "movies.json"))
	require.NoError(t, err)
	ctx := context.Background()

	e := movie("a", 1, release.Quality720p, "m1")
	require.NoError(t, s.Put(ctx, e))
	e.Title = "changed"

	got, err := s.Get(ctx, catalog.KindMovie, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)
}

func TestStore_PutWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	s, err := Open(path)
	require.NoError(t, err)

	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Put(ctx, movie("a", 1, release.Quality720p, "m1"))
	require.Error(t, err)

	_, err = s.Get(context.Background(), catalog.KindMovie, "a")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestStore_WithCatalog(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "movies.json"))
	require.NoError(t, err)
	c := catalog.New(s, nil, nil)
	ctx := context.Background()

	_, err = c.AddRecord(ctx, catalog.Posting{Locator: "1", Filename: "Inception.2010.1080p.mkv", Size: 1 << 30})
	require.NoError(t, err)
	_, err = c.AddRecord(ctx, catalog.Posting{Locator: "2", Filename: "Inception.2010.720p.mkv"})
	require.NoError(t, err)

	m, err := c.FindMovie(ctx, "inception")
	require.NoError(t, err)
	assert.Len(t, m.Files, 2)
	assert.Equal(t, int64(1<<30), m.Files[release.Quality1080p].Size)
}
