// Package search ranks catalog titles against free-text queries.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/pkg/release"
)

// DefaultThreshold is the minimum similarity for a non-substring match.
const DefaultThreshold = 0.6

// MinQueryLen is the shortest query accepted, in characters.
const MinQueryLen = 2

// ErrQueryTooShort indicates a query below MinQueryLen characters.
var ErrQueryTooShort = errors.New("query too short")

// Catalog is the read side of the catalog the ranker scores against.
type Catalog interface {
	AllMovies(ctx context.Context) ([]*catalog.Entry, error)
	AllSeries(ctx context.Context) ([]*catalog.Entry, error)
}

// Match is one ranked entry.
type Match struct {
	Entry *catalog.Entry
	Score float64
}

// Results holds ranked movies and series, best first.
type Results struct {
	Movies []Match
	Series []Match
}

// Empty reports whether nothing matched.
func (r *Results) Empty() bool {
	return len(r.Movies) == 0 && len(r.Series) == 0
}

// Ranker scores catalog entries against queries.
type Ranker struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewRanker creates a ranker over c.
func NewRanker(c Catalog, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{catalog: c, logger: logger.With("component", "search")}
}

// ValidateQuery trims q and rejects it when shorter than MinQueryLen.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLen {
		return "", fmt.Errorf("%q: %w", q, ErrQueryTooShort)
	}
	return q, nil
}

// NormalizeQuery folds a query into the same form as catalog search keys.
// Queries made only of punctuation fall back to their lower-cased text.
func NormalizeQuery(q string) string {
	if key := release.SearchKey(q); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(q))
}

// Search ranks every movie and series against query. Entries scoring at least threshold,
// or whose key contains the query verbatim, are returned ordered by score; equal scores
// keep catalog insertion order. An empty catalog yields empty results.
func (r *Ranker) Search(ctx context.Context, query string, threshold float64) (*Results, error) {
	q := NormalizeQuery(query)

	movies, err := r.catalog.AllMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	series, err := r.catalog.AllSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}

	res := &Results{
		Movies: rank(q, movies, threshold),
		Series: rank(q, series, threshold),
	}
	r.logger.Debug("search",
		"query", q,
		"threshold", threshold,
		"movies", len(res.Movies),
		"series", len(res.Series),
	)
	return res, nil
}

// Suggest returns the catalog title closest to query, if any is close enough to offer.
func (r *Ranker) Suggest(ctx context.Context, query string) (release.MatchResult, error) {
	movies, err := r.catalog.AllMovies(ctx)
	if err != nil {
		return release.MatchResult{}, fmt.Errorf("suggest: %w", err)
	}
	series, err := r.catalog.AllSeries(ctx)
	if err != nil {
		return release.MatchResult{}, fmt.Errorf("suggest: %w", err)
	}

	titles := make([]string, 0, len(movies)+len(series))
	for _, e := range movies {
		titles = append(titles, e.Title)
	}
	for _, e := range series {
		titles = append(titles, e.Title)
	}
	return release.MatchTitle(query, titles), nil
}

func rank(q string, entries []*catalog.Entry, threshold float64) []Match {
	chars := split(q)
	var out []Match
	for _, e := range entries {
		score := Ratio(chars, split(e.Key))
		if score >= threshold || strings.Contains(e.Key, q) {
			out = append(out, Match{Entry: e, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Ratio is the matching-blocks similarity 2*M/T of two character sequences.
// Two empty sequences are identical.
func Ratio(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	return difflib.NewMatcher(a, b).Ratio()
}

func split(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
