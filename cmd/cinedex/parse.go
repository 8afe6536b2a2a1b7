package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmunix/cinedex/pkg/release"
)

// parseResult is the JSON form of a parsed filename.
type parseResult struct {
	Filename  string `json:"filename"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	SearchKey string `json:"search_key"`
	Year      string `json:"year,omitempty"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
	Quality   string `json:"quality"`
}

func parseFilename(name string) parseResult {
	info := release.Parse(name)
	return parseResult{
		Filename:  name,
		Kind:      info.Kind.String(),
		Title:     info.Title,
		SearchKey: info.SearchKey,
		Year:      info.Year,
		Season:    info.Season,
		Episode:   info.Episode,
		Quality:   info.Quality.String(),
	}
}

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <filename>...",
		Short: "Parse filenames the way the indexer does (no config needed)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]parseResult, len(args))
			for i, name := range args {
				results[i] = parseFilename(name)
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), results)
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.Filename, r.Kind, r.Title, r.Year, episodeLabel(r.Season, r.Episode), r.Quality}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"FILENAME", "KIND", "TITLE", "YEAR", "EPISODE", "QUALITY"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func episodeLabel(season, episode int) string {
	if season == 0 {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", season, episode)
}
