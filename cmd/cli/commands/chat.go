package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jakechorley/skillconnect/pkg/core/chat"
	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// openWidget loads the chat list for the logged-in user and subscribes to chat events.
// The caller closes the widget.
func openWidget(app *AppContext) (*chat.Widget, *model.User, error) {
	user, err := app.requireUser(false)
	if err != nil {
		return nil, nil, err
	}

	self := model.UserRef{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}
	w := chat.NewWidget(app.API, app.Socket, self, app.Logger, chat.Options{TypingIdle: app.Cfg.TypingIdle})
	w.OnError(app.sessionFailed)
	w.Listen()
	if err := w.Load(app.Ctx); err != nil {
		w.Close()
		return nil, nil, err
	}
	return w, user, nil
}

// ChatsCmd creates the chats command
func ChatsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List your conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, err := openWidget(app)
			if err != nil {
				return err
			}
			defer w.Close()
			app.visit("/chats")

			out := cmd.OutOrStdout()
			convs := w.Conversations()
			if len(convs) == 0 {
				fmt.Fprintln(out, "No conversations yet.")
				return nil
			}
			for _, c := range convs {
				printConversation(out, c)
			}
			fmt.Fprintf(out, "\n%d unread message(s)\n", w.UnreadTotal())
			return nil
		},
	}
}

// ChatHistoryCmd creates the chatHistory command
func ChatHistoryCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatHistory <user_id>",
		Short: "Show the conversation with a user and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appointment, _ := cmd.Flags().GetString("appointment")

			w, user, err := openWidget(app)
			if err != nil {
				return err
			}
			defer w.Close()

			if appointment != "" {
				err = w.OpenAppointment(app.Ctx, appointment)
			} else {
				err = w.Open(app.Ctx, args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			msgs := w.Messages()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "No messages yet.")
			}
			for _, m := range msgs {
				printMessage(out, m, user.ID)
			}
			return nil
		},
	}

	cmd.Flags().String("appointment", "", "Open the conversation at this appointment")
	return cmd
}

// SendMessageCmd creates the sendMessage command
func SendMessageCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sendMessage <user_id> <text...>",
		Short: "Send a message to a user in your most recent shared appointment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, user, err := openWidget(app)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Open(app.Ctx, args[0]); err != nil {
				return err
			}

			sent, err := w.Send(app.Ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), *sent, user.ID)
			return nil
		},
	}
}

// ChatCmd creates the chat command: a live conversation fed by stdin
func ChatCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user_id>",
		Short: "Open a live conversation (each input line is sent; an empty line or EOF leaves)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, user, err := openWidget(app)
			if err != nil {
				return err
			}
			defer w.Close()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			printed := make(map[string]bool)
			var mu sync.Mutex
			flush := func() {
				mu.Lock()
				defer mu.Unlock()
				for _, m := range w.Messages() {
					if printed[m.ID] || chat.IsPending(m) {
						continue
					}
					printed[m.ID] = true
					printMessage(out, m, user.ID)
				}
			}
			w.OnChange(flush)

			if err := w.Open(app.Ctx, args[0]); err != nil {
				return err
			}
			flush()

			return chatLoop(cmd.InOrStdin(), out, w, app)
		},
	}
}

func chatLoop(in io.Reader, out io.Writer, w *chat.Widget, app *AppContext) error {
	r := bufio.NewReader(in)
	for {
		line, err := readLine(r)
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		w.Keystroke()
		if _, err := w.Send(app.Ctx, line); err != nil {
			fmt.Fprintf(out, "❌ %v\n", err)
		}
		if w.CounterpartTyping() {
			fmt.Fprintf(out, "%s…typing%s\n", colorDim, colorReset)
		}
	}
	w.CloseConversation()
	return nil
}

// SupportCmd creates the support command
func SupportCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "support <question...>",
		Short: "Ask the support assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responder := chat.SupportResponder{Delay: app.Cfg.SupportReplyDelay}

			fmt.Fprintln(cmd.ErrOrStderr(), "Support is typing…")
			reply, err := responder.Respond(app.Ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Support: %s\n", reply)
			return nil
		},
	}
}

// lockedWriter serialises writes from the realtime goroutine and the input loop
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
