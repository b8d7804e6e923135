package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scrape <title-id>",
		Short: "Scrape one title immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid title id %q", args[0])
			}
			result, err := ctx.apiClient().TriggerScrape(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			switch {
			case result.Error != "":
				fmt.Fprintf(out, "Scrape of %q failed: %s\n", result.TitleName, result.Error)
			case result.NewChapters > 0:
				fmt.Fprintf(out, "%q: %d new chapters (%d listed upstream).\n",
					result.TitleName, result.NewChapters, result.ChaptersFound)
			default:
				fmt.Fprintf(out, "%q: no new chapters (%d listed upstream).\n",
					result.TitleName, result.ChaptersFound)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	return cmd
}
