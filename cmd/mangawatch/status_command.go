package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mangawatch/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the most recent scrape cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			renderStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	runningKind := statusError
	runningMsg := "stopped"
	if status.Running {
		runningKind = statusOK
		runningMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Tracked titles", statusInfo, fmt.Sprintf("%d", status.TitleCount), colorize))

	if status.CooldownActive {
		msg := "active"
		if status.CooldownUntil != nil {
			msg = fmt.Sprintf("until %s", status.CooldownUntil.Local().Format(time.Kitchen))
		}
		fmt.Fprintln(out, renderStatusLine("Rate-limit cooldown", statusWarn, msg, colorize))
	}

	cycle := status.LastCycle
	if cycle.RunID == "" {
		fmt.Fprintln(out, renderStatusLine("Last cycle", statusInfo, "none yet", colorize))
		return
	}
	kind := statusOK
	if cycle.Errors > 0 {
		kind = statusWarn
	}
	summary := fmt.Sprintf("%d due, %d processed, %d new chapters, %d errors",
		cycle.Due, cycle.Processed, cycle.NewChapters, cycle.Errors)
	fmt.Fprintln(out, renderStatusLine("Last cycle", kind, summary, colorize))
}
