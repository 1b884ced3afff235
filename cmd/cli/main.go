package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/cmd/cli/commands"
	"github.com/jakechorley/skillconnect/internal/config"
	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/services"
	"github.com/jakechorley/skillconnect/pkg/core/session"
	"github.com/jakechorley/skillconnect/pkg/socket"
	"github.com/jakechorley/skillconnect/pkg/utils/logging"
)

var (
	env     string
	verbose bool
)

func main() {
	app := &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:   "skillconnect",
		Short: "SkillConnect CLI - community services marketplace",
		Long: `A CLI client for the SkillConnect marketplace: post and take on service
requests, manage bookings, chat with requesters and providers, and
administer users and residents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown(app)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: local, staging, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.LoginCmd(app))
	rootCmd.AddCommand(commands.AdminLoginCmd(app))
	rootCmd.AddCommand(commands.LogoutCmd(app))
	rootCmd.AddCommand(commands.WhoAmICmd(app))
	rootCmd.AddCommand(commands.MyRequestsCmd(app))
	rootCmd.AddCommand(commands.AvailableRequestsCmd(app))
	rootCmd.AddCommand(commands.WorkRecordsCmd(app))
	rootCmd.AddCommand(commands.AcceptCmd(app))
	rootCmd.AddCommand(commands.DeclineCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.EditRequestCmd(app))
	rootCmd.AddCommand(commands.DeleteRequestCmd(app))
	rootCmd.AddCommand(commands.BookingsCmd(app))
	rootCmd.AddCommand(commands.CompleteBookingCmd(app))
	rootCmd.AddCommand(commands.ChatsCmd(app))
	rootCmd.AddCommand(commands.ChatHistoryCmd(app))
	rootCmd.AddCommand(commands.SendMessageCmd(app))
	rootCmd.AddCommand(commands.ChatCmd(app))
	rootCmd.AddCommand(commands.SupportCmd(app))
	rootCmd.AddCommand(commands.NotificationsCmd(app))
	rootCmd.AddCommand(commands.MarkReadCmd(app))
	rootCmd.AddCommand(commands.WatchCmd(app))
	rootCmd.AddCommand(commands.AdminCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", services.UserMessage(err))
		if app.Session != nil {
			app.Session.HandleError(app.Ctx, err)
		}
		if app.Logger != nil {
			app.Logger.Debug("Command failed", zap.Error(err))
			shutdown(app)
		}
		os.Exit(1)
	}
}

// initApp sets up logger, config, state store, API client, realtime client and session
func initApp(app *commands.AppContext) error {
	var err error
	app.Ctx = context.Background()
	app.Env = env

	// Load configuration first: it decides where logs go
	app.Cfg, err = config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var logFile string
	app.Logger, logFile, err = logging.InitLogger(env, app.Cfg.LogDir, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Debug("Starting application",
		zap.String("environment", env),
		zap.String("log_file", logFile),
		zap.String("api", app.Cfg.APIBaseURL))

	app.Store, err = commands.OpenStore(app.Ctx, app.Cfg, env, app.Logger)
	if err != nil {
		return err
	}

	app.API = apiclient.NewClient(app.Cfg.APIBaseURL, apiclient.StoreTokenSource{Store: app.Store}, app.Cfg.RequestTimeout, app.Logger)
	app.Socket = socket.NewClient(app.Cfg.SocketURL, nil, app.Logger)

	app.Session = session.New(app.Ctx, app.Store, app.API, app.Socket, app.Logger)
	app.Session.SetNotifier(func(msg string) {
		fmt.Fprintf(os.Stderr, "📣 %s\n", msg)
	})
	app.Session.BindRealtime()

	app.Logger.Debug("Application initialized",
		zap.String("backend", app.Cfg.StateBackend),
		zap.Stringer("session", app.Session.Snapshot().State()))
	return nil
}

func shutdown(app *commands.AppContext) {
	if app.Socket != nil {
		app.Socket.Disconnect()
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil && app.Logger != nil {
			app.Logger.Warn("Failed to close state store", zap.Error(err))
		}
		app.Store = nil
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
