package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// NewSessionsCmd creates the 'sessions' command.
func NewSessionsCmd(opts *Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List conversation sessions",
		Long:    `List conversation sessions, most recently updated first.`,
		Example: `  graphrag-agent sessions
  graphrag-agent ls --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			sessions, err := rt.Service.ListSessions(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			printSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func printSessions(w io.Writer, sessions []domain.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions yet.")
		fmt.Fprintln(w, "Run 'graphrag-agent ask \"...\"' or 'graphrag-agent chat' to start one.")
		return
	}

	fmt.Fprintf(w, "Sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s\n", s.ID)
		fmt.Fprintf(w, "    Messages: %d\n", s.MessageCount)
		fmt.Fprintf(w, "    Updated:  %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	}
}

// NewHistoryCmd creates the 'history' command.
func NewHistoryCmd(opts *Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "history <session-id>",
		Short:   "Show the questions and answers of a session",
		Example: `  graphrag-agent history 3f2c...`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.Service.History(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewDeleteCmd creates the 'delete' command.
func NewDeleteCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session and its messages",
		Example: `  graphrag-agent delete 3f2c...
  graphrag-agent rm 3f2c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			existed, err := rt.Service.DeleteSession(ctx, args[0])
			if err != nil {
				return err
			}

			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted session %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s not found\n", args[0])
			}
			return nil
		},
	}
	return cmd
}
