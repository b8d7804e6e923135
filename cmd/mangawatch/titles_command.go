package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mangawatch/internal/api"
)

func newTitlesCommand(ctx *commandContext) *cobra.Command {
	titlesCmd := &cobra.Command{
		Use:   "titles",
		Short: "Manage tracked titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	titlesCmd.AddCommand(newTitlesListCommand(ctx))
	titlesCmd.AddCommand(newTitlesAddCommand(ctx))
	return titlesCmd
}

func newTitlesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked titles with their schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			titles, err := ctx.apiClient().Titles(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), api.TitleListResponse{Titles: titles})
			}
			if len(titles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No titles tracked. Add one with `mangawatch titles add`.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTitlesTable(titles))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	return cmd
}

func renderTitlesTable(titles []api.TitleView) string {
	headers := []string{"ID", "Name", "Status", "Chapters", "Last Outcome", "Next Scrape", "Interval", "Confidence"}

	rows := make([][]string, 0, len(titles))
	for _, title := range titles {
		rows = append(rows, []string{
			fmt.Sprintf("%d", title.ID),
			title.Name,
			title.Status,
			fmt.Sprintf("%d", title.ChapterCount),
			formatOutcome(title.LastOutcome),
			formatNextScrape(title.NextScrapeAt),
			formatInterval(title.AvgIntervalHours),
			fmt.Sprintf("%.2f", title.Confidence),
		})
	}
	return renderTable(headers, rows, 0, 3, 6, 7)
}

func formatOutcome(outcome string) string {
	if outcome == "" || outcome == "none" {
		return "-"
	}
	return strings.ReplaceAll(outcome, "_", " ")
}

func formatNextScrape(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	until := time.Until(at)
	if until <= 0 {
		return "due now"
	}
	return "in " + formatDurationShort(until)
}

func formatInterval(hours float64) string {
	if hours <= 0 {
		return "unknown"
	}
	return formatDurationShort(time.Duration(hours * float64(time.Hour)))
}

func formatDurationShort(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	case d >= time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func newTitlesAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <collection-id> <source-id>",
		Short: "Register a collection entry for release monitoring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := ctx.apiClient().AddTitle(cmd.Context(), api.AddTitleRequest{
				CollectionID: args[0],
				SourceID:     args[1],
				Name:         name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %q (id %d). First scrape is scheduled immediately.\n", title.Name, title.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the upstream name once scraped)")
	return cmd
}
