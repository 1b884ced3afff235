package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/chat"
	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/services"
	"github.com/jakechorley/skillconnect/pkg/core/session"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// pushedEvents are echoed by watch --events
var pushedEvents = []string{
	socket.EventServiceRequestUpdated,
	socket.EventRequestAccepted,
	socket.EventRequestCancelled,
	socket.EventNewMessage,
	socket.EventMessageNotification,
	socket.EventUserTyping,
	socket.EventUserStoppedTyping,
	socket.EventNewNotification,
	socket.EventAppointmentNotification,
	socket.EventVerificationStatus,
}

var errSessionEnded = errors.New("session ended")

// WatchCmd creates the watch command
func WatchCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live updates to your requests, chats and notifications until interrupted",
		Long: `Stream live updates until interrupted with Ctrl-C.

With --digest a summary of unread notifications and messages is printed at
every occurrence of the digestSchedule recurrence rule from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, _ := cmd.Flags().GetBool("digest")
			events, _ := cmd.Flags().GetBool("events")

			user, err := app.requireUser(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancelCause(ctx)
			defer cancel(nil)

			out := &lockedWriter{w: cmd.OutOrStdout()}
			w := &watcher{app: app, user: user, out: out}
			if err := w.start(ctx, cancel, events); err != nil {
				w.close()
				return err
			}
			defer w.close()

			if digest {
				rule, err := app.Cfg.DigestRule()
				if err != nil {
					return err
				}
				if rule == nil {
					return fmt.Errorf("--digest needs digestSchedule in the config file")
				}
				go services.RunDigest(ctx, rule, w.digest, func(d services.Digest) {
					fmt.Fprintf(out, "\n📬 Digest %s: %d unread notification(s), %d unread message(s)\n\n",
						formatTime(d.At), d.UnreadNotifications, d.UnreadMessages)
				})
			}

			fmt.Fprintf(out, "Watching as %s %s (Ctrl-C to stop)\n\n", user.FirstName, user.LastName)
			<-ctx.Done()

			if cause := context.Cause(ctx); errors.Is(cause, errSessionEnded) {
				return cause
			}
			fmt.Fprintln(out, "\nStopped.")
			return nil
		},
	}

	cmd.Flags().Bool("digest", false, "Print an unread digest on the configured digestSchedule")
	cmd.Flags().Bool("events", false, "Echo every raw realtime event")
	return cmd
}

// watcher owns the live views opened by watch
type watcher struct {
	app  *AppContext
	user *model.User
	out  *lockedWriter

	mine      *services.RequestList
	available *services.RequestList
	widget    *chat.Widget
	center    *services.NotificationCenter
	unsub     func()
	rawIDs    map[string]socket.ListenerID

	mu         sync.Mutex
	lastUnread int
}

func (w *watcher) start(ctx context.Context, cancel context.CancelCauseFunc, events bool) error {
	app := w.app

	w.unsub = app.Session.Subscribe(func(snap session.Snapshot) {
		if snap.State() == session.Unauthenticated {
			cancel(fmt.Errorf("%w: log in again to keep watching", errSessionEnded))
		}
	})

	w.mine = services.NewRequestList(services.ViewMyRequests, app.API, app.Socket, w.user.ID, app.Logger)
	w.mine.OnChange(func(items []model.ServiceRequest) {
		fmt.Fprintf(w.out, "🔄 My requests updated (%d)\n", len(items))
		printRequests(w.out, items)
	})
	w.mine.OnError(app.sessionFailed)
	if err := w.mine.Start(ctx); err != nil {
		return err
	}

	w.available = services.NewRequestList(services.ViewAvailableRequests, app.API, app.Socket, w.user.ID, app.Logger)
	w.available.OnChange(func(items []model.ServiceRequest) {
		fmt.Fprintf(w.out, "🔄 Available requests updated (%d)\n", len(items))
	})
	w.available.OnError(app.sessionFailed)
	if err := w.available.Start(ctx); err != nil {
		return err
	}

	self := model.UserRef{ID: w.user.ID, FirstName: w.user.FirstName, LastName: w.user.LastName}
	w.widget = chat.NewWidget(app.API, app.Socket, self, app.Logger, chat.Options{TypingIdle: app.Cfg.TypingIdle})
	w.lastUnread = -1
	w.widget.OnChange(w.unreadChanged)
	w.widget.OnError(app.sessionFailed)
	w.widget.Listen()
	if err := w.widget.Load(ctx); err != nil {
		return err
	}

	w.center = services.NewNotificationCenter(app.API, app.Socket, app.Logger)
	if err := w.center.Load(ctx); err != nil {
		return err
	}
	w.center.Listen(func(n model.Notification) {
		fmt.Fprintln(w.out, "🔔 New notification")
		printNotification(w.out, n, services.RouteNotification(n))
	})

	if events {
		w.rawIDs = make(map[string]socket.ListenerID)
		for _, event := range pushedEvents {
			event := event
			w.rawIDs[event] = app.Socket.On(event, func(args []json.RawMessage) {
				fmt.Fprintf(w.out, "%s[%s] %s (%d arg(s))%s\n", colorDim, time.Now().Format("15:04:05"), event, len(args), colorReset)
			})
		}
	}

	app.Logger.Info("Watching", zap.String("user_id", w.user.ID), zap.Stringer("socket", app.Socket.State()))
	return nil
}

func (w *watcher) unreadChanged() {
	unread := w.widget.UnreadTotal()

	w.mu.Lock()
	defer w.mu.Unlock()
	if unread == w.lastUnread {
		return
	}
	w.lastUnread = unread
	fmt.Fprintf(w.out, "💬 %d unread message(s)\n", unread)
}

func (w *watcher) digest(at time.Time) services.Digest {
	d := services.Digest{At: at}
	if w.center != nil {
		d.UnreadNotifications = w.center.UnreadCount()
	}
	if w.widget != nil {
		d.UnreadMessages = w.widget.UnreadTotal()
	}
	return d
}

func (w *watcher) close() {
	for event, id := range w.rawIDs {
		w.app.Socket.Off(event, id)
	}
	if w.center != nil {
		w.center.Close()
	}
	if w.widget != nil {
		w.widget.Close()
	}
	if w.available != nil {
		w.available.Close()
	}
	if w.mine != nil {
		w.mine.Close()
	}
	if w.unsub != nil {
		w.unsub()
	}
}
