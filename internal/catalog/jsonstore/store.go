// Package jsonstore persists the catalog as a single JSON document on disk.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/vmunix/cinedex/internal/catalog"
)

// ErrLocked is returned when another process holds the catalog file lock.
var ErrLocked = errors.New("catalog file locked by another process")

const lockRetry = 50 * time.Millisecond

// document is the on-disk layout.
type document struct {
	Movies []*catalog.Entry `json:"movies"`
	Series []*catalog.Entry `json:"series"`
}

// Store implements catalog.Store on a JSON file. Reads are served from memory;
// every Put rewrites the file while holding an exclusive lock on path+".lock".
type Store struct {
	path string
	lock *flock.Flock

	mu      sync.RWMutex
	entries map[catalog.Kind]map[string]*catalog.Entry
}

// Open loads the catalog at path. A missing file yields an empty catalog.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		entries: map[catalog.Kind]map[string]*catalog.Entry{
			catalog.KindMovie:  {},
			catalog.KindSeries: {},
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for _, e := range doc.Movies {
		e.Kind = catalog.KindMovie
		s.entries[catalog.KindMovie][e.Key] = e
	}
	for _, e := range doc.Series {
		e.Kind = catalog.KindSeries
		s.entries[catalog.KindSeries][e.Key] = e
	}
	return s, nil
}

// Path returns the catalog file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the entry for (kind, key).
func (s *Store) Get(_ context.Context, kind catalog.Kind, key string) (*catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[kind][key]
	if !ok {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, catalog.ErrNotFound)
	}
	return e.Clone(), nil
}

// Put stores a copy of e and flushes the catalog to disk. The in-memory state is
// left unchanged if the write fails.
func (s *Store) Put(ctx context.Context, e *catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() { _ = s.lock.Unlock() }()

	bucket := s.entries[e.Kind]
	if bucket == nil {
		return fmt.Errorf("put %q: unknown kind %q", e.Key, e.Kind)
	}
	prev, had := bucket[e.Key]
	bucket[e.Key] = e.Clone()

	if err := s.flush(); err != nil {
		if had {
			bucket[e.Key] = prev
		} else {
			delete(bucket, e.Key)
		}
		return err
	}
	return nil
}

// Scan returns copies of every entry of kind ordered by seq.
func (s *Store) Scan(_ context.Context, kind catalog.Kind) ([]*catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(kind, true), nil
}

func (s *Store) sorted(kind catalog.Kind, clone bool) []*catalog.Entry {
	out := make([]*catalog.Entry, 0, len(s.entries[kind]))
	for _, e := range s.entries[kind] {
		if clone {
			e = e.Clone()
		}
		out = append(out, e)
	}
	catalog.SortBySeq(out)
	return out
}

// flush writes the document to a temp file and renames it over path.
// Caller must hold s.mu and the file lock.
func (s *Store) flush() error {
	doc := document{
		Movies: s.sorted(catalog.KindMovie, false),
		Series: s.sorted(catalog.KindSeries, false),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
