package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/services"
)

// AdminCmd creates the admin command group
func AdminCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer users and residents (admin accounts only)",
	}

	cmd.AddCommand(adminUsersCmd(app))
	cmd.AddCommand(adminBanCmd(app, true))
	cmd.AddCommand(adminBanCmd(app, false))
	cmd.AddCommand(adminDeleteUserCmd(app))
	cmd.AddCommand(adminResidentsCmd(app))
	cmd.AddCommand(adminAddResidentCmd(app))

	return cmd
}

func adminUsersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")

			if _, err := app.requireAdmin(); err != nil {
				return err
			}
			users, err := services.ListUsers(app.Ctx, app.API, app.Logger, search)
			if err != nil {
				return err
			}
			app.visit("/admin/users")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d users:\n\n", len(users))
			for _, u := range users {
				verified := ""
				if u.IsVerified {
					verified = " ✓"
				}
				color := ""
				if u.IsBanned() {
					color = colorRed
				}
				fmt.Fprintf(out, "- %s %s %s (%s) - %s%s\n",
					cell(u.ID, 26, ""),
					u.FirstName,
					u.LastName,
					u.Email,
					cell(statusOrActive(u.Status), 8, color),
					verified,
				)
			}
			return nil
		},
	}

	cmd.Flags().String("search", "", "Filter by name or email")
	return cmd
}

func statusOrActive(s string) string {
	if s == "" {
		return services.AccountActive
	}
	return s
}

func adminBanCmd(app *AppContext, ban bool) *cobra.Command {
	use, short, done := "unban <user_id>", "Reinstate a banned user", "reinstated"
	if ban {
		use, short, done = "ban <user_id>", "Ban a user", "banned"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireAdmin(); err != nil {
				return err
			}
			if err := services.SetBanned(app.Ctx, app.API, app.Logger, args[0], ban); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s %s\n", args[0], done)
			return nil
		},
	}
}

func adminDeleteUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteUser <user_id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireAdmin(); err != nil {
				return err
			}
			if err := services.RemoveUser(app.Ctx, app.API, app.Logger, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s deleted\n", args[0])
			return nil
		},
	}
}

func adminResidentsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "residents",
		Short: "List community residents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireAdmin(); err != nil {
				return err
			}
			residents, err := services.ListResidents(app.Ctx, app.API, app.Logger)
			if err != nil {
				return err
			}
			app.visit("/admin/residents")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d residents:\n\n", len(residents))
			for _, r := range residents {
				fmt.Fprintf(out, "- %s %s %s, %s %s\n", cell(r.ID, 26, ""), r.FirstName, r.LastName, r.Address, r.Phone)
			}
			return nil
		},
	}
}

func adminAddResidentCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addResident",
		Short: "Register a community resident",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r model.Resident
			r.FirstName, _ = cmd.Flags().GetString("first-name")
			r.LastName, _ = cmd.Flags().GetString("last-name")
			r.Address, _ = cmd.Flags().GetString("address")
			r.Phone, _ = cmd.Flags().GetString("phone")

			if err := services.ValidateResidentForm(r); err != nil {
				return err
			}
			if _, err := app.requireAdmin(); err != nil {
				return err
			}

			created, err := services.AddResident(app.Ctx, app.API, app.Logger, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Resident %s %s added (%s)\n", created.FirstName, created.LastName, created.ID)
			return nil
		},
	}

	cmd.Flags().String("first-name", "", "First name")
	cmd.Flags().String("last-name", "", "Last name")
	cmd.Flags().String("address", "", "Address")
	cmd.Flags().String("phone", "", "Phone number (digits only)")

	return cmd
}
