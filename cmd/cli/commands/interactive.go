package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/services"
)

// skipInteractive are root commands that make no sense inside the loop
var skipInteractive = map[string]bool{
	"interactive": true,
	"completion":  true,
	"help":        true,
}

// InteractiveCmd creates the interactive command
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session that keeps one session and realtime connection
open while you run multiple commands. The session keeps running until you
type 'exit' or 'quit'.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			root := cmd.Root()

			// Every command reads from the same buffer so password prompts
			// and live chats see the lines typed after them.
			in := bufio.NewReader(cmd.InOrStdin())
			root.SetIn(in)

			app.Session.SetNotifier(func(msg string) {
				fmt.Fprintf(out, "\n📣 %s\n", msg)
			})

			fmt.Fprintln(out, "\n🚀 Starting interactive session...")
			fmt.Fprintln(out, "Type 'help' for available commands, 'exit' or 'quit' to leave")

			for {
				fmt.Fprintf(out, "%s> ", app.Session.Snapshot().State())

				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("error reading input: %w", err)
				}
				if strings.TrimSpace(line) == "" {
					if errors.Is(err, io.EOF) {
						return nil
					}
					continue
				}

				parts, perr := parseCommandLine(strings.TrimSpace(line))
				if perr != nil {
					fmt.Fprintf(out, "❌ Error parsing command: %v\n\n", perr)
					continue
				}

				switch parts[0] {
				case "exit", "quit":
					fmt.Fprintln(out, "👋 Goodbye!")
					return nil
				case "help":
					printInteractiveHelp(out, root)
					continue
				}

				if rerr := runInteractive(root, parts); rerr != nil {
					app.sessionFailed(rerr)
					fmt.Fprintf(out, "❌ %s\n\n", services.UserMessage(rerr))
					app.Logger.Debug("Interactive command failed", zap.Error(rerr))
				}

				if errors.Is(err, io.EOF) {
					return nil
				}
			}
		},
	}
}

// runInteractive resolves parts to a command and runs it without Execute, so
// PersistentPreRunE (and with it app initialisation) does not run again
func runInteractive(root *cobra.Command, parts []string) error {
	if skipInteractive[parts[0]] {
		return fmt.Errorf("%s is not available in an interactive session", parts[0])
	}

	target, rest, err := root.Find(parts)
	if err != nil || target == root {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", parts[0])
	}

	target.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	})

	if err := target.ParseFlags(rest); err != nil {
		return fmt.Errorf("error parsing flags: %w", err)
	}
	args := target.Flags().Args()

	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			return err
		}
	}

	switch {
	case target.RunE != nil:
		return target.RunE(target, args)
	case target.Run != nil:
		target.Run(target, args)
		return nil
	}
	return target.Help()
}

func printInteractiveHelp(w io.Writer, root *cobra.Command) {
	fmt.Fprintln(w, "\nAvailable commands:")

	var lines []string
	var collect func(prefix string, c *cobra.Command)
	collect = func(prefix string, c *cobra.Command) {
		for _, sub := range c.Commands() {
			if skipInteractive[sub.Name()] || sub.Hidden {
				continue
			}
			if sub.HasSubCommands() {
				collect(prefix+sub.Name()+" ", sub)
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-40s %s", prefix+sub.Use, sub.Short))
		}
	}
	collect("", root)
	sort.Strings(lines)

	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w, "\n  help                                     Show this help message")
	fmt.Fprintln(w, "  exit, quit                               Exit the interactive session")
}

// parseCommandLine splits a command line into arguments, respecting single and double quotes
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inQuote rune
	quoted := false

	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			inQuote = r
			quoted = true
		case unicode.IsSpace(r):
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", inQuote)
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
