package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mangawatch/internal/api"
	"mangawatch/internal/notifications"
	"mangawatch/internal/store"
)

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pendingOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show release notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := ctx.apiClient().Notifications(cmd.Context(), limit, pendingOnly)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), api.NotificationListResponse{Notifications: views})
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderNotificationsTable(views))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum notifications to show")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Show only undelivered notifications")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newNotificationsReadCommand(ctx))
	return cmd
}

func newNotificationsReadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			if err := ctx.apiClient().MarkNotificationRead(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Marked as read.")
			return nil
		},
	}
}

func renderNotificationsTable(views []api.NotificationView) string {
	headers := []string{"ID", "When", "Kind", "Summary", "Read"}

	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			fmt.Sprintf("%d", view.ID),
			view.CreatedAt.Local().Format(time.DateTime),
			formatOutcome(view.Kind),
			summarizeNotification(view),
			yesNo(view.Read),
		})
	}
	return renderTable(headers, rows, 0)
}

func summarizeNotification(view api.NotificationView) string {
	switch store.NotificationKind(view.Kind) {
	case store.KindNewChapter:
		var payload notifications.ChapterPayload
		if err := json.Unmarshal(view.Payload, &payload); err == nil {
			return fmt.Sprintf("%s: %s", payload.TitleName, payload.ChapterLabel)
		}
	case store.KindChapterBatch:
		var payload notifications.BatchPayload
		if err := json.Unmarshal(view.Payload, &payload); err == nil {
			return fmt.Sprintf("%s: %d new chapters", payload.TitleName, payload.ChapterCount)
		}
	case store.KindStatusChange:
		var payload notifications.StatusChangePayload
		if err := json.Unmarshal(view.Payload, &payload); err == nil {
			return fmt.Sprintf("%s: %s -> %s", payload.TitleName, payload.OldStatus, payload.NewStatus)
		}
	}
	return string(view.Payload)
}
