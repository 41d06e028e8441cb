package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/service"
)

const chatHelp = `Commands:
  /new            start a new session
  /history        show the current session
  /sessions       list sessions
  /load <id>      continue an existing session
  /delete <id>    delete a session
  /stats          show index and session counts
  exit, quit, q   leave`

// NewChatCmd creates the interactive 'chat' command.
func NewChatCmd(opts *Options) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question-answering session",
		Long: `Start an interactive shell. Each line is a question; follow-up
questions share the session's history.

` + chatHelp,
		Example: `  graphrag-agent chat
  graphrag-agent chat --session 3f2c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			return runChat(ctx, rt.Service, sessionID, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue")
	return cmd
}

// runChat reads questions and shell commands line by line until exit or
// end of input.
func runChat(ctx context.Context, svc *service.Service, sessionID string, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintln(out, "graphrag-agent chat. Type /help for commands, exit to quit.")
	if sessionID != "" {
		fmt.Fprintf(out, "Continuing session %s\n", sessionID)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "exit", "quit", "q":
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
		case "/new":
			sessionID = ""
			fmt.Fprintln(out, "Started a new session.")
		case "/history":
			if sessionID == "" {
				fmt.Fprintln(out, "No active session.")
				continue
			}
			entries, err := svc.History(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			printEntries(out, entries)
		case "/sessions":
			sessions, err := svc.ListSessions(ctx)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			printSessions(out, sessions)
		case "/load":
			if arg == "" {
				fmt.Fprintln(out, "Usage: /load <session-id>")
				continue
			}
			sessionID = arg
			fmt.Fprintf(out, "Loaded session %s\n", sessionID)
		case "/delete":
			if arg == "" {
				fmt.Fprintln(out, "Usage: /delete <session-id>")
				continue
			}
			existed, err := svc.DeleteSession(ctx, arg)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			if !existed {
				fmt.Fprintf(out, "Session %s not found\n", arg)
				continue
			}
			fmt.Fprintf(out, "✓ Deleted session %s\n", arg)
			if arg == sessionID {
				sessionID = ""
			}
		case "/stats":
			stats, err := svc.Stats(ctx)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			printStats(out, &statsReport{Stats: stats})
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Fprintf(out, "Unknown command %s. Type /help for commands.\n", cmd)
				continue
			}

			bundle, err := svc.Ask(ctx, service.AskInput{Question: line, SessionID: sessionID})
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			if sessionID == "" {
				fmt.Fprintf(out, "(session %s)\n", bundle.SessionID)
			}
			sessionID = bundle.SessionID
			printAnswer(out, errOut, bundle)
		}
	}
}
