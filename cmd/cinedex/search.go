package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/search"
)

type searchHit struct {
	Kind  string  `json:"kind"`
	Key   string  `json:"key"`
	Title string  `json:"title"`
	Year  string  `json:"year,omitempty"`
	Files int     `json:"files"`
	Score float64 `json:"score"`
}

func newSearchCmd(opts *options) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := search.ValidateQuery(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Search.Threshold
			}
			res, err := a.ranker.Search(cmd.Context(), q, threshold)
			if err != nil {
				return err
			}

			var hits []searchHit
			for _, group := range [][]search.Match{res.Movies, res.Series} {
				for _, m := range group {
					hits = append(hits, toHit(m))
				}
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), hits)
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No results for %q\n", q)
				if s, err := a.ranker.Suggest(cmd.Context(), q); err == nil && s.Title != "" {
					fmt.Fprintf(out, "Did you mean %q? (%s confidence)\n", s.Title, s.Confidence)
				}
				return nil
			}
			rows := make([][]string, len(hits))
			for i, h := range hits {
				rows[i] = []string{h.Kind, h.Title, h.Year, strconv.Itoa(h.Files), fmt.Sprintf("%.2f", h.Score), h.Key}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"KIND", "TITLE", "YEAR", "FILES", "SCORE", "KEY"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", search.DefaultThreshold, "Minimum similarity (0-1); defaults to search.threshold")
	return cmd
}

func toHit(m search.Match) searchHit {
	e := m.Entry
	kind := "movie"
	if e.Kind == catalog.KindSeries {
		kind = "series"
	}
	return searchHit{
		Kind:  kind,
		Key:   e.Key,
		Title: e.Title,
		Year:  e.Year,
		Files: e.FileCount(),
		Score: m.Score,
	}
}
