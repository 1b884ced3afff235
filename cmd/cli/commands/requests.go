package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/services"
)

// MyRequestsCmd creates the myRequests command
func MyRequestsCmd(app *AppContext) *cobra.Command {
	return requestListCmd(app, "myRequests", "List the service requests you posted", services.ViewMyRequests)
}

// AvailableRequestsCmd creates the availableRequests command
func AvailableRequestsCmd(app *AppContext) *cobra.Command {
	return requestListCmd(app, "availableRequests", "List open requests you can take on as a provider", services.ViewAvailableRequests)
}

// WorkRecordsCmd creates the workRecords command
func WorkRecordsCmd(app *AppContext) *cobra.Command {
	return requestListCmd(app, "workRecords", "List every request in your work history", services.ViewWorkRecords)
}

func requestListCmd(app *AppContext, use, short string, view services.View) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			list, err := openList(app, view)
			if err != nil {
				return err
			}
			defer list.Close()

			list.SetFilter(filter)
			app.visit("/" + string(view))

			app.Logger.Debug("Listing requests",
				zap.String("view", string(view)),
				zap.Int("total", len(list.All())))

			printRequests(cmd.OutOrStdout(), list.Items())
			return nil
		},
	}

	addFilterFlags(cmd)
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "Match type of work, address, notes, requester or status")
	cmd.Flags().String("status", "", "Only show this status (Available, Working, Complete, Cancelled, ...)")
	cmd.Flags().String("type", "", "Only show this type of work")
	cmd.Flags().Float64("min-budget", 0, "Minimum budget (inclusive)")
	cmd.Flags().Float64("max-budget", 0, "Maximum budget (inclusive)")
}

// filterFromFlags builds a Filter; budget bounds apply only when their flag was given
func filterFromFlags(cmd *cobra.Command) (services.Filter, error) {
	f := services.Filter{}
	f.Search, _ = cmd.Flags().GetString("search")
	f.Status, _ = cmd.Flags().GetString("status")
	f.ServiceType, _ = cmd.Flags().GetString("type")

	if cmd.Flags().Changed("min-budget") {
		v, _ := cmd.Flags().GetFloat64("min-budget")
		f.MinBudget = &v
	}
	if cmd.Flags().Changed("max-budget") {
		v, _ := cmd.Flags().GetFloat64("max-budget")
		f.MaxBudget = &v
	}
	if f.MinBudget != nil && f.MaxBudget != nil && *f.MinBudget > *f.MaxBudget {
		return f, fmt.Errorf("--min-budget %.2f is above --max-budget %.2f", *f.MinBudget, *f.MaxBudget)
	}
	return f, nil
}

// openList starts a live list for view as the logged-in user. The caller closes it.
func openList(app *AppContext, view services.View) (*services.RequestList, error) {
	user, err := app.requireUser(false)
	if err != nil {
		return nil, err
	}

	list := services.NewRequestList(view, app.API, app.Socket, user.ID, app.Logger)
	list.OnError(app.sessionFailed)
	if err := list.Start(app.Ctx); err != nil {
		list.Close()
		return nil, err
	}
	return list, nil
}

// AcceptCmd creates the accept command
func AcceptCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <request_id>",
		Short: "Accept an available request as its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(app, services.ViewAvailableRequests)
			if err != nil {
				return err
			}
			defer list.Close()

			accepted, err := list.Accept(app.Ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Request %s accepted\n", args[0])
			if accepted != nil && accepted.Requester.Resolved() {
				fmt.Fprintf(cmd.OutOrStdout(), "  Requester: %s\n", accepted.Requester.DisplayName())
			}
			return nil
		},
	}
}

// DeclineCmd creates the decline command
func DeclineCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "decline <request_id>",
		Short: "Hide an available request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(app, services.ViewAvailableRequests)
			if err != nil {
				return err
			}
			defer list.Close()

			if err := list.Decline(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Request %s declined\n", args[0])
			return nil
		},
	}
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <request_id>",
		Short: "Cancel one of your requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(app, services.ViewMyRequests)
			if err != nil {
				return err
			}
			defer list.Close()

			if err := list.Cancel(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Request %s cancelled\n", args[0])
			return nil
		},
	}
}

// EditRequestCmd creates the editRequest command. Unset flags keep the request's current values.
func EditRequestCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editRequest <request_id>",
		Short: "Edit one of your requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(app, services.ViewMyRequests)
			if err != nil {
				return err
			}
			defer list.Close()

			current, ok := list.Find(args[0])
			if !ok {
				return fmt.Errorf("request %s is not one of your requests", args[0])
			}

			update := editFromFlags(cmd, current)
			updated, err := list.Edit(app.Ctx, args[0], update)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Request %s updated\n", args[0])
			if updated != nil {
				printRequests(cmd.OutOrStdout(), []model.ServiceRequest{*updated})
			}
			return nil
		},
	}

	cmd.Flags().String("type", "", "Type of work")
	cmd.Flags().Float64("budget", 0, "Budget")
	cmd.Flags().String("address", "", "Address")
	cmd.Flags().String("phone", "", "Contact phone number")
	cmd.Flags().String("notes", "", "Notes for the provider")
	cmd.Flags().String("time", "", "Preferred time")

	return cmd
}

func editFromFlags(cmd *cobra.Command, current model.ServiceRequest) model.ServiceRequestUpdate {
	update := model.ServiceRequestUpdate{
		TypeOfWork: current.TypeOfWork,
		Budget:     current.Budget,
		Address:    current.Address,
		Phone:      current.Phone,
		Notes:      current.Notes,
		Time:       current.Time,
	}

	flags := cmd.Flags()
	if flags.Changed("type") {
		update.TypeOfWork, _ = flags.GetString("type")
	}
	if flags.Changed("budget") {
		update.Budget, _ = flags.GetFloat64("budget")
	}
	if flags.Changed("address") {
		update.Address, _ = flags.GetString("address")
	}
	if flags.Changed("phone") {
		update.Phone, _ = flags.GetString("phone")
	}
	if flags.Changed("notes") {
		update.Notes, _ = flags.GetString("notes")
	}
	if flags.Changed("time") {
		update.Time, _ = flags.GetString("time")
	}
	return update
}

// DeleteRequestCmd creates the deleteRequest command
func DeleteRequestCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteRequest <request_id>",
		Short: "Delete one of your requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(app, services.ViewMyRequests)
			if err != nil {
				return err
			}
			defer list.Close()

			if err := list.Delete(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Request %s deleted\n", args[0])
			return nil
		},
	}
}
