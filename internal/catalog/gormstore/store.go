// Package gormstore persists the catalog in PostgreSQL through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/pkg/release"
)

type entryRow struct {
	Kind      string `gorm:"primaryKey;size:16"`
	SearchKey string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Year      string
	Seq       int64 `gorm:"index"`
}

func (entryRow) TableName() string { return "catalog_entries" }

type fileRow struct {
	Kind      string `gorm:"primaryKey;size:16"`
	SearchKey string `gorm:"primaryKey"`
	Season    int    `gorm:"primaryKey;autoIncrement:false"`
	Episode   int    `gorm:"primaryKey;autoIncrement:false"`
	Quality   string `gorm:"primaryKey;size:16"`
	Title     string
	Year      string
	Locator   string `gorm:"not null"`
	Filename  string `gorm:"not null"`
	SizeBytes int64
	Caption   string
	PostedAt  *time.Time
	IndexedAt time.Time
}

func (fileRow) TableName() string { return "catalog_files" }

// Store implements catalog.Store on a GORM connection.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM connection. Call Migrate before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL at dsn and migrates the catalog tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the catalog tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&entryRow{}, &fileRow{}); err != nil {
		return fmt.Errorf("migrate catalog tables: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get loads one entry with all of its files.
func (s *Store) Get(ctx context.Context, kind catalog.Kind, key string) (*catalog.Entry, error) {
	db := s.db.WithContext(ctx)

	var row entryRow
	err := db.Where("kind = ? AND search_key = ?", string(kind), key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", kind, key, err)
	}

	var files []fileRow
	if err := db.Where("kind = ? AND search_key = ?", string(kind), key).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files %s %q: %w", kind, key, err)
	}

	e := toEntry(kind, row)
	for _, f := range files {
		catalog.Attach(e, toRecord(kind, f))
	}
	return e, nil
}

// Put replaces the entry and its files in one transaction. The first stored seq is kept.
func (s *Store) Put(ctx context.Context, e *catalog.Entry) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := entryRow{
			Kind:      string(e.Kind),
			SearchKey: e.Key,
			Title:     e.Title,
			Year:      e.Year,
			Seq:       e.Seq,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "search_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "year"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}

		if err := tx.Where("kind = ? AND search_key = ?", string(e.Kind), e.Key).Delete(&fileRow{}).Error; err != nil {
			return fmt.Errorf("clear files: %w", err)
		}

		records := e.Records()
		if len(records) == 0 {
			return nil
		}
		files := make([]fileRow, 0, len(records))
		for _, r := range records {
			files = append(files, toRow(e, r))
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("insert files: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s %q: %w", e.Kind, e.Key, err)
	}
	return nil
}

// Scan returns all entries of kind ordered by seq.
func (s *Store) Scan(ctx context.Context, kind catalog.Kind) ([]*catalog.Entry, error) {
	db := s.db.WithContext(ctx)

	var rows []entryRow
	if err := db.Where("kind = ?", string(kind)).Order("seq, search_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	var files []fileRow
	if err := db.Where("kind = ?", string(kind)).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	entries := make([]*catalog.Entry, 0, len(rows))
	byKey := make(map[string]*catalog.Entry, len(rows))
	for _, row := range rows {
		e := toEntry(kind, row)
		entries = append(entries, e)
		byKey[e.Key] = e
	}
	for _, f := range files {
		if e, ok := byKey[f.SearchKey]; ok {
			catalog.Attach(e, toRecord(kind, f))
		}
	}
	return entries, nil
}

func toEntry(kind catalog.Kind, row entryRow) *catalog.Entry {
	return &catalog.Entry{
		Kind:  kind,
		Key:   row.SearchKey,
		Title: row.Title,
		Year:  row.Year,
		Seq:   row.Seq,
	}
}

func toRow(e *catalog.Entry, r catalog.Record) fileRow {
	f := fileRow{
		Kind:      string(e.Kind),
		SearchKey: e.Key,
		Season:    r.Season,
		Episode:   r.Episode,
		Quality:   r.Quality.String(),
		Title:     r.Title,
		Year:      r.Year,
		Locator:   r.Locator,
		Filename:  r.Filename,
		SizeBytes: r.Size,
		Caption:   r.Caption,
		IndexedAt: r.IndexedAt,
	}
	if !r.PostedAt.IsZero() {
		posted := r.PostedAt
		f.PostedAt = &posted
	}
	return f
}

func toRecord(kind catalog.Kind, f fileRow) catalog.Record {
	r := catalog.Record{
		Kind:      release.KindMovie,
		Title:     f.Title,
		SearchKey: f.SearchKey,
		Year:      f.Year,
		Season:    f.Season,
		Episode:   f.Episode,
		Quality:   release.ParseQuality(f.Quality),
		Locator:   f.Locator,
		Filename:  f.Filename,
		Size:      f.SizeBytes,
		Caption:   f.Caption,
		IndexedAt: f.IndexedAt,
	}
	if kind == catalog.KindSeries {
		r.Kind = release.KindEpisode
	}
	if f.PostedAt != nil {
		r.PostedAt = *f.PostedAt
	}
	return r
}
