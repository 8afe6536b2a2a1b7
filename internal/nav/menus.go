package nav

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/paging"
	"github.com/vmunix/cinedex/internal/search"
	"github.com/vmunix/cinedex/pkg/release"
)

func (n *Navigator) searchResults(ctx context.Context, tok Token, p path) (*View, error) {
	res, err := n.searcher.Search(ctx, p.query, n.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	matches := mergeResults(res)
	pg := paging.Paginate(matches, p.page, n.cfg.PageSize)
	base := tok.WithPage(pg.Index)

	m := &Menu{}
	if len(matches) == 0 {
		m.Text = fmt.Sprintf("No results for %q.", p.query)
	} else {
		m.Text = fmt.Sprintf("Results for %q (page %d/%d)", p.query, pg.Index+1, pg.TotalPages)
	}
	for _, match := range pg.Items {
		e := match.Entry
		if e.Kind == catalog.KindMovie {
			m.Rows = append(m.Rows, []Button{n.button("🎬 "+entryTitle(e), base.Push(TagMovie, e.Key))})
		} else {
			m.Rows = append(m.Rows, []Button{n.button("📺 "+entryTitle(e), base.Push(TagSeries, e.Key))})
		}
	}
	m.Rows = appendRow(m.Rows, n.pageRow(base, pg.Index, pg.HasPrev, pg.HasNext))
	return &View{Menu: m}, nil
}

// mergeResults interleaves movies and series by score. Movies come first on equal scores.
func mergeResults(res *search.Results) []search.Match {
	out := make([]search.Match, 0, len(res.Movies)+len(res.Series))
	out = append(out, res.Movies...)
	out = append(out, res.Series...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (n *Navigator) movieQualities(ctx context.Context, tok Token, p path) (*View, error) {
	e, err := n.catalog.FindMovie(ctx, p.movie)
	if err != nil {
		return nil, err
	}
	m := &Menu{Text: entryTitle(e) + "\nChoose a quality:"}
	for _, q := range n.sorted(e.Qualities()) {
		r := e.Files[q]
		m.Rows = append(m.Rows, []Button{n.button(qualityLabel(q, r.Size), tok.Push(TagFile, r.Locator))})
	}
	m.Rows = appendRow(m.Rows, n.backRow(tok))
	return &View{Menu: m}, nil
}

func (n *Navigator) seriesSeasons(ctx context.Context, tok Token, p path) (*View, error) {
	e, err := n.catalog.FindSeries(ctx, p.series)
	if err != nil {
		return nil, err
	}
	seasons := slices.DeleteFunc(e.SeasonNumbers(), func(sn int) bool {
		return len(e.Seasons[sn]) == 0
	})
	pg := paging.Paginate(seasons, p.page, n.cfg.PageSize)
	base := tok.WithPage(pg.Index)

	m := &Menu{Text: entryTitle(e) + "\nChoose a season:"}
	for _, sn := range pg.Items {
		m.Rows = append(m.Rows, []Button{n.button(fmt.Sprintf("Season %d", sn), base.Push(TagSeason, strconv.Itoa(sn)))})
	}
	m.Rows = appendRow(m.Rows, n.pageRow(base, pg.Index, pg.HasPrev, pg.HasNext))
	m.Rows = appendRow(m.Rows, n.backRow(base))
	return &View{Menu: m}, nil
}

func (n *Navigator) seasonEpisodes(ctx context.Context, tok Token, p path) (*View, error) {
	e, s, err := n.season(ctx, p)
	if err != nil {
		return nil, err
	}
	pg := paging.Paginate(s.EpisodeNumbers(), p.page, n.cfg.PageSize)
	base := tok.WithPage(pg.Index)

	m := &Menu{Text: fmt.Sprintf("%s · Season %d\nChoose an episode:", entryTitle(e), p.season)}
	for _, en := range pg.Items {
		m.Rows = append(m.Rows, []Button{n.button(fmt.Sprintf("Episode %d", en), base.Push(TagEpisode, strconv.Itoa(en)))})
	}
	m.Rows = append(m.Rows, []Button{n.button("All episodes", base.Push(TagBulk, ""))})
	m.Rows = appendRow(m.Rows, n.pageRow(base, pg.Index, pg.HasPrev, pg.HasNext))
	m.Rows = appendRow(m.Rows, n.backRow(base))
	return &View{Menu: m}, nil
}

func (n *Navigator) episodeQualities(ctx context.Context, tok Token, p path) (*View, error) {
	e, ep, err := n.episode(ctx, p)
	if err != nil {
		return nil, err
	}
	m := &Menu{Text: fmt.Sprintf("%s · S%02dE%02d\nChoose a quality:", entryTitle(e), p.season, p.episode)}
	for _, q := range n.sorted(ep.Qualities()) {
		r := ep[q]
		m.Rows = append(m.Rows, []Button{n.button(qualityLabel(q, r.Size), tok.Push(TagFile, r.Locator))})
	}
	m.Rows = appendRow(m.Rows, n.backRow(tok))
	return &View{Menu: m}, nil
}

func (n *Navigator) seasonBulk(ctx context.Context, tok Token, p path) (*View, error) {
	e, s, err := n.season(ctx, p)
	if err != nil {
		return nil, err
	}
	prio := n.catalog.Priority()

	m := &Menu{Text: fmt.Sprintf("%s · Season %d\nSend every episode in:", entryTitle(e), p.season)}
	best := catalog.SeasonFiles(s, release.QualityUnknown, true, prio)
	m.Rows = append(m.Rows, []Button{n.button(
		fmt.Sprintf("Best available · %s", plural(len(best), "episode")),
		tok.Push(TagDispatch, BestQuality),
	)})
	for _, q := range catalog.SeasonQualities(s, prio) {
		files := catalog.SeasonFiles(s, q, false, prio)
		m.Rows = append(m.Rows, []Button{n.button(
			fmt.Sprintf("%s · %s", q, plural(len(files), "episode")),
			tok.Push(TagDispatch, q.String()),
		)})
	}
	m.Rows = appendRow(m.Rows, n.backRow(tok))
	return &View{Menu: m}, nil
}

func (n *Navigator) dispatch(ctx context.Context, tok Token, p path) (*View, error) {
	req := &DispatchRequest{Return: tok.Parent().String()}

	if p.file != "" {
		if err := n.checkFile(ctx, p); err != nil {
			return nil, err
		}
		req.Locators = []string{p.file}
		return &View{Dispatch: req}, nil
	}

	best := p.quality == BestQuality
	var q release.Quality
	if !best {
		q = release.ParseQuality(p.quality)
		if !strings.EqualFold(q.String(), p.quality) {
			return nil, fmt.Errorf("%w: quality %q", ErrInvalidToken, p.quality)
		}
	}
	_, s, err := n.season(ctx, p)
	if err != nil {
		return nil, err
	}
	files := catalog.SeasonFiles(s, q, best, n.catalog.Priority())
	if len(files) == 0 {
		return nil, fmt.Errorf("season %d of %q in %s: %w", p.season, p.series, p.quality, ErrNotFound)
	}
	for _, r := range files {
		req.Locators = append(req.Locators, r.Locator)
	}
	return &View{Dispatch: req}, nil
}

// checkFile confirms a file requested from a menu is still listed there.
func (n *Navigator) checkFile(ctx context.Context, p path) error {
	var files []catalog.Record
	switch {
	case p.movie != "":
		e, err := n.catalog.FindMovie(ctx, p.movie)
		if err != nil {
			return err
		}
		files = e.Records()
	case p.episode > 0:
		_, ep, err := n.episode(ctx, p)
		if err != nil {
			return err
		}
		for _, r := range ep {
			files = append(files, r)
		}
	default:
		return fmt.Errorf("%w: file %q outside a menu", ErrInvalidToken, p.file)
	}
	for _, r := range files {
		if r.Locator == p.file {
			return nil
		}
	}
	return fmt.Errorf("file %q: %w", p.file, ErrNotFound)
}

func (n *Navigator) season(ctx context.Context, p path) (*catalog.Entry, catalog.Season, error) {
	e, err := n.catalog.FindSeries(ctx, p.series)
	if err != nil {
		return nil, nil, err
	}
	s := e.Seasons[p.season]
	if len(s) == 0 {
		return nil, nil, fmt.Errorf("season %d of %q: %w", p.season, p.series, ErrNotFound)
	}
	return e, s, nil
}

func (n *Navigator) episode(ctx context.Context, p path) (*catalog.Entry, catalog.Episode, error) {
	e, s, err := n.season(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	ep := s[p.episode]
	if len(ep) == 0 {
		return nil, nil, fmt.Errorf("episode %d of season %d of %q: %w", p.episode, p.season, p.series, ErrNotFound)
	}
	return e, ep, nil
}

func (n *Navigator) sorted(qs []release.Quality) []release.Quality {
	n.catalog.Priority().Sort(qs)
	return qs
}

func entryTitle(e *catalog.Entry) string {
	if e.Year != "" {
		return fmt.Sprintf("%s (%s)", e.Title, e.Year)
	}
	return e.Title
}

func qualityLabel(q release.Quality, size int64) string {
	if size <= 0 {
		return q.String()
	}
	return fmt.Sprintf("%s · %s", q, humanize.Bytes(uint64(size)))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
