// Package storage opens the catalog store and event log named by the configuration.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/catalog/gormstore"
	"github.com/vmunix/cinedex/internal/catalog/jsonstore"
	"github.com/vmunix/cinedex/internal/catalog/sqlitestore"
	"github.com/vmunix/cinedex/internal/config"
	"github.com/vmunix/cinedex/internal/events"
)

// Handles holds open storage. Close releases everything Open acquired.
type Handles struct {
	Store  catalog.Store
	Events *events.EventLog

	closers []func() error
}

// Open opens the catalog store for cfg.Store and the event log at cfg.Events.Path.
// A SQLite catalog and event log at the same path share one connection.
func Open(cfg *config.Config) (*Handles, error) {
	h := &Handles{}
	var storeDB *sql.DB

	switch cfg.Store.Backend {
	case config.BackendMemory:
		h.Store = catalog.NewMemoryStore()
	case config.BackendJSON:
		s, err := jsonstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		h.Store = s
	case config.BackendSQLite:
		db, err := sqlitestore.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog store: %w", err)
		}
		h.closers = append(h.closers, db.Close)
		h.Store = sqlitestore.New(db)
		storeDB = db
	case config.BackendPostgres:
		s, err := gormstore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("catalog store: %w", err)
		}
		h.closers = append(h.closers, s.Close)
		h.Store = s
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	eventsDB := storeDB
	if storeDB == nil || !samePath(cfg.Store.Path, cfg.Events.Path) {
		db, err := sqlitestore.Open(cfg.Events.Path)
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("event log: %w", err)
		}
		h.closers = append(h.closers, db.Close)
		eventsDB = db
	}
	h.Events = events.NewEventLog(eventsDB)
	return h, nil
}

// Close closes every underlying connection.
func (h *Handles) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	h.closers = nil
	return errors.Join(errs...)
}

func samePath(a, b string) bool {
	if a == ":memory:" || b == ":memory:" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
