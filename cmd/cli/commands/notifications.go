package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/skillconnect/pkg/core/services"
)

// openNotifications loads the notification center for the logged-in user.
// Unverified users still receive notifications (for example about their verification).
func openNotifications(app *AppContext) (*services.NotificationCenter, error) {
	if _, err := app.requireUser(true); err != nil {
		return nil, err
	}

	center := services.NewNotificationCenter(app.API, app.Socket, app.Logger)
	if err := center.Load(app.Ctx); err != nil {
		return nil, err
	}
	return center, nil
}

// NotificationsCmd creates the notifications command
func NotificationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			unreadOnly, _ := cmd.Flags().GetBool("unread")

			center, err := openNotifications(app)
			if err != nil {
				return err
			}
			defer center.Close()
			app.visit("/notifications")

			out := cmd.OutOrStdout()
			shown := 0
			for _, n := range center.Items() {
				if unreadOnly && n.Read {
					continue
				}
				printNotification(out, n, services.RouteNotification(n))
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(out, "No notifications to show.")
			}
			fmt.Fprintf(out, "\n%d unread\n", center.UnreadCount())
			return nil
		},
	}

	cmd.Flags().Bool("unread", false, "Only show unread notifications")
	return cmd
}

// MarkReadCmd creates the markRead command
func MarkReadCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markRead [notification_id]",
		Short: "Mark one notification, or all with --all, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a notification id or --all")
			}

			center, err := openNotifications(app)
			if err != nil {
				return err
			}
			defer center.Close()

			if all {
				if err := center.MarkAllRead(app.Ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ All notifications marked read")
				return nil
			}

			if err := center.MarkRead(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Notification %s marked read (%d unread)\n", args[0], center.UnreadCount())
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Mark every notification read")
	return cmd
}
