package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show scrape reliability over the trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := ctx.apiClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), health)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderSectionHeader(fmt.Sprintf("Last %dh", health.WindowHours), colorize))

			kind := statusOK
			message := "healthy"
			if health.Degraded {
				kind = statusError
				message = "degraded"
			} else if health.Attempts == 0 {
				kind = statusInfo
				message = "no scrapes in window"
			}
			fmt.Fprintln(out, renderStatusLine("Scraping", kind, message, colorize))
			fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d", health.Attempts), colorize))
			fmt.Fprintln(out, renderStatusLine("Errors", statusInfo,
				fmt.Sprintf("%d (%d rate limited)", health.Errors, health.RateLimited), colorize))
			fmt.Fprintln(out, renderStatusLine("Error rate", statusInfo, fmt.Sprintf("%.1f%%", health.ErrorRate*100), colorize))
			fmt.Fprintln(out, renderStatusLine("Avg duration", statusInfo, fmt.Sprintf("%dms", health.AvgDurationMS), colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	return cmd
}
