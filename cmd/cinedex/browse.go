package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/cinedex/internal/nav"
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <token>",
		Short: "Render the bot menu for a navigation token",
		Long: `Render the bot menu for a navigation token, as the chat user would see it.
Start from a search with: cinedex browse "q<query>"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			v, err := a.nav.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), v)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderView(v))
			return nil
		},
	}
}

func renderView(v *nav.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", v.State)
	if v.Dispatch != nil {
		fmt.Fprintf(&b, "dispatch %d file(s), then return to %q\n", len(v.Dispatch.Locators), v.Dispatch.Return)
		for _, loc := range v.Dispatch.Locators {
			fmt.Fprintf(&b, "  %s\n", loc)
		}
		return b.String()
	}

	b.WriteString(v.Menu.Text + "\n")
	var rows [][]string
	for _, row := range v.Menu.Rows {
		for _, btn := range row {
			rows = append(rows, []string{btn.Label, btn.Token})
		}
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"BUTTON", "TOKEN"}, rows, nil) + "\n")
	}
	return b.String()
}
