package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/vmunix/cinedex/internal/catalog Store

// Store persists catalog entries. Implementations must be safe for concurrent use;
// concurrent writes to the same key resolve last-write-wins.
type Store interface {
	// Get returns the entry for kind and key, or ErrNotFound.
	Get(ctx context.Context, kind Kind, key string) (*Entry, error)

	// Put inserts or replaces the entry identified by its Kind and Key.
	Put(ctx context.Context, e *Entry) error

	// Scan returns every entry of kind in insertion order.
	Scan(ctx context.Context, kind Kind) ([]*Entry, error)
}

type storeKey struct {
	kind Kind
	key  string
}

// MemoryStore keeps entries in process memory. It backs tests and the "memory" store
// backend, where the catalog is rebuilt from the feed on every start.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[storeKey]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[storeKey]*Entry)}
}

// Get returns a copy of the stored entry.
func (s *MemoryStore) Get(_ context.Context, kind Kind, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[storeKey{kind, key}]
	if !ok {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, ErrNotFound)
	}
	return e.Clone(), nil
}

// Put stores a copy of e.
func (s *MemoryStore) Put(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[storeKey{e.Kind, e.Key}] = e.Clone()
	return nil
}

// Scan returns copies of every entry of kind ordered by Seq, then key.
func (s *MemoryStore) Scan(_ context.Context, kind Kind) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for k, e := range s.entries {
		if k.kind == kind {
			out = append(out, e.Clone())
		}
	}
	SortBySeq(out)
	return out, nil
}

// SortBySeq orders entries by first-insertion sequence, breaking ties by key.
func SortBySeq(entries []*Entry) {
	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}
