// Package catalog maintains the browsable movie and series hierarchy built from posted files.
package catalog

import (
	"maps"
	"slices"
	"time"

	"github.com/vmunix/cinedex/pkg/release"
)

// Kind distinguishes movie entries from series entries.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Record is one deliverable file.
type Record struct {
	Kind      release.Kind    `json:"kind"`
	Title     string          `json:"title"`
	SearchKey string          `json:"search_key"`
	Year      string          `json:"year,omitempty"`
	Season    int             `json:"season,omitempty"`
	Episode   int             `json:"episode,omitempty"`
	Quality   release.Quality `json:"quality"`
	Locator   string          `json:"locator"`
	Filename  string          `json:"filename"`
	Size      int64           `json:"size,omitempty"`
	Caption   string          `json:"caption,omitempty"`
	PostedAt  time.Time       `json:"posted_at,omitempty"`
	IndexedAt time.Time       `json:"indexed_at"`
}

// Episode holds one file per quality.
type Episode map[release.Quality]Record

// Season maps episode numbers to episodes.
type Season map[int]Episode

// Entry aggregates every known file for one title.
// Movie entries use Files; series entries use Seasons.
type Entry struct {
	Kind    Kind                       `json:"kind"`
	Key     string                     `json:"key"`
	Title   string                     `json:"title"`
	Year    string                     `json:"year,omitempty"`
	Seq     int64                      `json:"seq"` // first-insertion order
	Files   map[release.Quality]Record `json:"files,omitempty"`
	Seasons map[int]Season             `json:"seasons,omitempty"`
}

// Empty reports whether the entry holds no files.
func (e *Entry) Empty() bool {
	if e.Kind == KindMovie {
		return len(e.Files) == 0
	}
	for _, s := range e.Seasons {
		for _, ep := range s {
			if len(ep) > 0 {
				return false
			}
		}
	}
	return true
}

// Qualities returns the movie qualities present, in no particular order.
func (e *Entry) Qualities() []release.Quality {
	return slices.Collect(maps.Keys(e.Files))
}

// SeasonNumbers returns the season numbers in ascending order.
func (e *Entry) SeasonNumbers() []int {
	return slices.Sorted(maps.Keys(e.Seasons))
}

// EpisodeNumbers returns the episode numbers in ascending order.
func (s Season) EpisodeNumbers() []int {
	return slices.Sorted(maps.Keys(s))
}

// Qualities returns the qualities present for the episode, in no particular order.
func (ep Episode) Qualities() []release.Quality {
	return slices.Collect(maps.Keys(ep))
}

// FileCount returns the number of records in the entry.
func (e *Entry) FileCount() int {
	if e.Kind == KindMovie {
		return len(e.Files)
	}
	n := 0
	for _, s := range e.Seasons {
		for _, ep := range s {
			n += len(ep)
		}
	}
	return n
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Files != nil {
		c.Files = maps.Clone(e.Files)
	}
	if e.Seasons != nil {
		c.Seasons = make(map[int]Season, len(e.Seasons))
		for sn, s := range e.Seasons {
			cs := make(Season, len(s))
			for en, ep := range s {
				cs[en] = maps.Clone(ep)
			}
			c.Seasons[sn] = cs
		}
	}
	return &c
}

// Records flattens the entry into its files: movies by quality, series by season, episode
// and quality.
func (e *Entry) Records() []Record {
	var out []Record
	if e.Kind == KindMovie {
		for _, q := range release.Qualities {
			if r, ok := e.Files[q]; ok {
				out = append(out, r)
			}
		}
		return out
	}
	for _, sn := range e.SeasonNumbers() {
		s := e.Seasons[sn]
		for _, en := range s.EpisodeNumbers() {
			for _, q := range release.Qualities {
				if r, ok := s[en][q]; ok {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

// Attach stores r in its slot on e. Store implementations use it to rebuild entries.
func Attach(e *Entry, r Record) {
	e.put(r)
}

// put stores r in its slot, replacing any previous record for the same slot.
func (e *Entry) put(r Record) {
	if e.Kind == KindMovie {
		if e.Files == nil {
			e.Files = make(map[release.Quality]Record)
		}
		e.Files[r.Quality] = r
		return
	}
	if e.Seasons == nil {
		e.Seasons = make(map[int]Season)
	}
	s, ok := e.Seasons[r.Season]
	if !ok {
		s = make(Season)
		e.Seasons[r.Season] = s
	}
	ep, ok := s[r.Episode]
	if !ok {
		ep = make(Episode)
		s[r.Episode] = ep
	}
	ep[r.Quality] = r
}
