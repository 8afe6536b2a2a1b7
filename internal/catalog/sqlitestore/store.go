// Package sqlitestore persists the catalog in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/migrations"
	"github.com/vmunix/cinedex/pkg/release"
)

// ErrDuplicate indicates a unique constraint violation.
var ErrDuplicate = errors.New("duplicate entry")

// ErrConstraint indicates a foreign key or check constraint violation.
var ErrConstraint = errors.New("constraint violation")

// querier abstracts *sql.DB and *sql.Tx for shared query logic.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements catalog.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// New wraps an open database. The schema must already be applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// mapSQLiteError converts SQLite errors to catalog and package error types.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrNotFound
	}
	// modernc.org/sqlite wraps errors; check error message for constraint violations
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicate
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") {
		return ErrConstraint
	}
	return err
}

func recordKind(k catalog.Kind) release.Kind {
	if k == catalog.KindSeries {
		return release.KindEpisode
	}
	return release.KindMovie
}

// Get loads one entry with all of its files.
func (s *Store) Get(ctx context.Context, kind catalog.Kind, key string) (*catalog.Entry, error) {
	e := &catalog.Entry{Kind: kind, Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, year, seq FROM entries WHERE kind = ? AND search_key = ?`, kind, key,
	).Scan(&e.Title, &e.Year, &e.Seq)
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, mapSQLiteError(err))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT search_key, season, episode, quality, title, year, locator, filename, size_bytes, caption, posted_at, indexed_at
		FROM files WHERE kind = ? AND search_key = ?`, kind, key)
	if err != nil {
		return nil, fmt.Errorf("list files %s %q: %w", kind, key, err)
	}
	defer func() { _ = rows.Close() }()

	if err := scanFiles(rows, kind, func(string) *catalog.Entry { return e }); err != nil {
		return nil, err
	}
	return e, nil
}

// Put replaces the entry and its files in one transaction.
func (s *Store) Put(ctx context.Context, e *catalog.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := putEntry(ctx, tx, e); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %q: %w", e.Kind, e.Key, err)
	}
	return nil
}

func putEntry(ctx context.Context, q querier, e *catalog.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO entries (kind, search_key, title, year, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, search_key) DO UPDATE SET title = excluded.title, year = excluded.year`,
		e.Kind, e.Key, e.Title, e.Year, e.Seq,
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s %q: %w", e.Kind, e.Key, mapSQLiteError(err))
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM files WHERE kind = ? AND search_key = ?`, e.Kind, e.Key); err != nil {
		return fmt.Errorf("clear files %s %q: %w", e.Kind, e.Key, mapSQLiteError(err))
	}

	for _, r := range e.Records() {
		var posted sql.NullTime
		if !r.PostedAt.IsZero() {
			posted = sql.NullTime{Time: r.PostedAt, Valid: true}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO files (kind, search_key, season, episode, quality, title, year, locator, filename, size_bytes, caption, posted_at, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Kind, e.Key, r.Season, r.Episode, r.Quality.String(), r.Title, r.Year, r.Locator, r.Filename, r.Size, r.Caption, posted, r.IndexedAt,
		)
		if err != nil {
			return fmt.Errorf("insert file %q: %w", r.Filename, mapSQLiteError(err))
		}
	}
	return nil
}

// Scan returns all entries of kind ordered by seq.
func (s *Store) Scan(ctx context.Context, kind catalog.Kind) ([]*catalog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT search_key, title, year, seq FROM entries WHERE kind = ? ORDER BY seq, search_key`, kind)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	var entries []*catalog.Entry
	byKey := make(map[string]*catalog.Entry)
	for rows.Next() {
		e := &catalog.Entry{Kind: kind}
		if err := rows.Scan(&e.Key, &e.Title, &e.Year, &e.Seq); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
		byKey[e.Key] = e
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	_ = rows.Close()

	fileRows, err := s.db.QueryContext(ctx, `
		SELECT search_key, season, episode, quality, title, year, locator, filename, size_bytes, caption, posted_at, indexed_at
		FROM files WHERE kind = ?`, kind)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = fileRows.Close() }()

	if err := scanFiles(fileRows, kind, func(key string) *catalog.Entry { return byKey[key] }); err != nil {
		return nil, err
	}
	return entries, nil
}

// scanFiles attaches each file row to the entry returned by owner; rows without an owner
// are skipped.
func scanFiles(rows *sql.Rows, kind catalog.Kind, owner func(key string) *catalog.Entry) error {
	for rows.Next() {
		var (
			r       catalog.Record
			quality string
			posted  sql.NullTime
		)
		if err := rows.Scan(&r.SearchKey, &r.Season, &r.Episode, &quality, &r.Title, &r.Year,
			&r.Locator, &r.Filename, &r.Size, &r.Caption, &posted, &r.IndexedAt); err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		e := owner(r.SearchKey)
		if e == nil {
			continue
		}
		r.Kind = recordKind(kind)
		r.Quality = release.ParseQuality(quality)
		if posted.Valid {
			r.PostedAt = posted.Time
		}
		catalog.Attach(e, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate files: %w", err)
	}
	return nil
}
