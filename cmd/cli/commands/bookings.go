package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/skillconnect/pkg/core/services"
	"github.com/jakechorley/skillconnect/pkg/core/status"
)

// BookingsCmd creates the bookings command
func BookingsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List your bookings (* marks bookings you can complete)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusKey, _ := cmd.Flags().GetString("status")

			user, err := app.requireUser(false)
			if err != nil {
				return err
			}

			bookings, err := services.ListBookings(app.Ctx, app.API, app.Logger, statusKey)
			if err != nil {
				return err
			}
			app.visit("/bookings")

			out := cmd.OutOrStdout()
			if len(bookings) == 0 {
				fmt.Fprintln(out, "No bookings to show.")
				return nil
			}
			for _, b := range bookings {
				printBooking(out, b, services.CanComplete(b, user.ID))
			}
			fmt.Fprintf(out, "\n%d booking(s)\n", len(bookings))
			return nil
		},
	}

	cmd.Flags().String("status", status.All, "Only show this status")
	return cmd
}

// CompleteBookingCmd creates the completeBooking command
func CompleteBookingCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "completeBooking <booking_id>",
		Short: "Mark a working booking complete (providers only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser(false)
			if err != nil {
				return err
			}

			updated, err := services.CompleteBooking(app.Ctx, app.API, app.Logger, args[0], user.ID)
			if err != nil {
				return err
			}

			st := status.Complete
			if updated != nil && updated.Status != "" {
				st = status.Normalize(updated.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Booking %s is now %s\n", args[0], st)
			return nil
		},
	}
}
