package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var version = "dev"

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	jsonOutput bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "cinedex",
		Short: "Inspect and maintain a cinedex media catalog",
		Long: `cinedex - command line companion to cinedexd

Parses filenames, indexes files into the configured catalog store,
searches the catalog and shows recent activity.

Run 'cinedexd' to serve the chat bot.`,
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate("cinedex {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: discovered)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newInitCmd(opts),
		newParseCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newBrowseCmd(opts),
		newStatsCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
