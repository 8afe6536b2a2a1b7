package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st, err := a.catalog.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"MOVIES", "SERIES", "EPISODES", "FILES"},
				[][]string{{strconv.Itoa(st.Movies), strconv.Itoa(st.Series), strconv.Itoa(st.Episodes), strconv.Itoa(st.Files)}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}
