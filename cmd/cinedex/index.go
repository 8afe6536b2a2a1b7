package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vmunix/cinedex/internal/bot"
	"github.com/vmunix/cinedex/internal/feed"
)

type indexSummary struct {
	Seen    int `json:"seen"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

func newIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file|dir>...",
		Short: "Add local files to the catalog",
		Long: `Add local files to the catalog. Directories are walked and filtered by
feed.extensions; files named explicitly are always indexed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			indexer := bot.New(bot.Deps{Indexer: a.catalog, Bus: a.bus}, bot.Access{}, a.logger)

			var sum indexSummary
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				info, err := os.Stat(path)
				if err != nil {
					return err
				}

				if info.IsDir() {
					w := feed.New(feed.Config{Dirs: []string{path}, Extensions: a.cfg.Feed.Extensions}, indexer.Index, a.bus, a.logger)
					results, err := w.Scan(ctx)
					if err != nil {
						return err
					}
					for _, r := range results {
						sum.Seen += r.Seen
						sum.Indexed += r.Indexed
						sum.Failed += r.Failed
					}
					continue
				}

				sum.Seen++
				if err := indexer.Index(ctx, feed.FilePosting(path, info)); err != nil {
					sum.Failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
					continue
				}
				sum.Indexed++
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), sum)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d of %d files (%d failed)\n", sum.Indexed, sum.Seen, sum.Failed)
			return nil
		},
	}
}
