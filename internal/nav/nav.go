// Package nav turns navigation tokens into menus and dispatch requests.
//
// Every menu is a pure function of its token and the current catalog, so no
// per-user state is kept between interactions. The back button of a menu carries
// the token's parent.
package nav

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/search"
	"github.com/vmunix/cinedex/pkg/release/scoring"
)

// ErrNotFound indicates a token that refers to something no longer in the catalog.
var ErrNotFound = catalog.ErrNotFound

// State identifies a menu context.
type State int

const (
	StateNone State = iota
	SearchResults
	MovieQualities
	SeriesSeasons
	SeasonEpisodes
	EpisodeQualities
	SeasonQualityBulk
	Dispatch
)

func (s State) String() string {
	switch s {
	case SearchResults:
		return "search_results"
	case MovieQualities:
		return "movie_qualities"
	case SeriesSeasons:
		return "series_seasons"
	case SeasonEpisodes:
		return "season_episodes"
	case EpisodeQualities:
		return "episode_qualities"
	case SeasonQualityBulk:
		return "season_quality_bulk"
	case Dispatch:
		return "dispatch"
	default:
		return "none"
	}
}

// Defaults.
const (
	DefaultPageSize    = 8
	DefaultMaxTokenLen = 64
)

// Button is one interactive control.
type Button struct {
	Label string
	Token string
}

// Menu is rendered text with rows of buttons.
type Menu struct {
	Text string
	Rows [][]Button
}

// DispatchRequest lists files to deliver in order. Return is the token of the menu to
// show afterward; it is empty when the issuing menu could not be encoded.
type DispatchRequest struct {
	Locators []string
	Return   string
}

// View is the outcome of resolving a token: either a menu or a dispatch request.
type View struct {
	State    State
	Token    string
	Menu     *Menu
	Dispatch *DispatchRequest
}

// Catalog is the lookup side of the catalog used to build menus.
type Catalog interface {
	FindMovie(ctx context.Context, key string) (*catalog.Entry, error)
	FindSeries(ctx context.Context, key string) (*catalog.Entry, error)
	Priority() scoring.Priority
}

// Searcher ranks titles for the search results menu.
type Searcher interface {
	Search(ctx context.Context, query string, threshold float64) (*search.Results, error)
}

// Config tunes menu rendering.
type Config struct {
	PageSize    int     // buttons per page; < 1 uses DefaultPageSize
	Threshold   float64 // search threshold; <= 0 uses search.DefaultThreshold
	MaxTokenLen int     // transport limit on token bytes; 0 is unlimited
}

// Navigator resolves tokens against the catalog.
type Navigator struct {
	catalog  Catalog
	searcher Searcher
	cfg      Config
	logger   *slog.Logger
}

// New creates a navigator.
func New(c Catalog, s Searcher, cfg Config, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = search.DefaultThreshold
	}
	return &Navigator{
		catalog:  c,
		searcher: s,
		cfg:      cfg,
		logger:   logger.With("component", "nav"),
	}
}

// SearchToken returns the token of the first results page for query.
func (n *Navigator) SearchToken(query string) string {
	return Token{{Tag: TagSearch, Value: query}}.String()
}

// Resolve decodes token and builds the view it names from a fresh catalog lookup.
// Paths that no longer resolve return ErrNotFound; malformed tokens ErrInvalidToken.
func (n *Navigator) Resolve(ctx context.Context, token string) (*View, error) {
	tok, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	p := decodePath(tok)

	var v *View
	switch tok.State() {
	case SearchResults:
		v, err = n.searchResults(ctx, tok, p)
	case MovieQualities:
		v, err = n.movieQualities(ctx, tok, p)
	case SeriesSeasons:
		v, err = n.seriesSeasons(ctx, tok, p)
	case SeasonEpisodes:
		v, err = n.seasonEpisodes(ctx, tok, p)
	case EpisodeQualities:
		v, err = n.episodeQualities(ctx, tok, p)
	case SeasonQualityBulk:
		v, err = n.seasonBulk(ctx, tok, p)
	case Dispatch:
		v, err = n.dispatch(ctx, tok, p)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	if err != nil {
		return nil, err
	}
	v.State = tok.State()
	v.Token = tok.String()
	return v, nil
}

// path is the decoded argument set of a token.
type path struct {
	query   string
	movie   string
	series  string
	season  int
	episode int
	quality string // bulk dispatch quality label or BestQuality
	file    string
	page    int
}

func decodePath(tok Token) path {
	var p path
	for _, s := range tok {
		switch s.Tag {
		case TagSearch:
			p.query = s.Value
		case TagMovie:
			p.movie = s.Value
		case TagSeries:
			p.series = s.Value
		case TagSeason:
			p.season, _ = strconv.Atoi(s.Value)
		case TagEpisode:
			p.episode, _ = strconv.Atoi(s.Value)
		case TagDispatch:
			p.quality = s.Value
		case TagFile:
			p.file = s.Value
		}
	}
	p.page = tok.Page()
	return p
}

// button builds a button whose token is fitted to the transport limit.
func (n *Navigator) button(label string, tok Token) Button {
	s := tok.Fit(n.cfg.MaxTokenLen).String()
	if n.cfg.MaxTokenLen > 0 && len(s) > n.cfg.MaxTokenLen {
		n.logger.Warn("token exceeds transport limit",
			"label", label,
			"token", s,
			"len", len(s),
			"max", n.cfg.MaxTokenLen,
		)
	}
	return Button{Label: label, Token: s}
}

// backRow returns the back button row for tok, or nil at a root.
func (n *Navigator) backRow(tok Token) []Button {
	parent := tok.Parent()
	if len(parent) == 0 {
		return nil
	}
	return []Button{n.button("« Back", parent)}
}

// pageRow returns prev/next controls, or nil when everything fits on one page.
func (n *Navigator) pageRow(tok Token, index int, hasPrev, hasNext bool) []Button {
	var row []Button
	if hasPrev {
		row = append(row, n.button("◀ Prev", tok.WithPage(index-1)))
	}
	if hasNext {
		row = append(row, n.button("Next ▶", tok.WithPage(index+1)))
	}
	return row
}

func appendRow(rows [][]Button, row []Button) [][]Button {
	if len(row) == 0 {
		return rows
	}
	return append(rows, row)
}
