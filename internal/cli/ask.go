package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/service"
)

// NewAskCmd creates the 'ask' command for one-shot questions.
func NewAskCmd(opts *Options) *cobra.Command {
	var sessionID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Ask one question and print the answer.

Without --session a new session is started; its id is printed so the
conversation can be continued later.`,
		Example: `  graphrag-agent ask "How many people work at Acme?"
  graphrag-agent ask -s 3f2c... "And who manages them?"
  graphrag-agent ask --json "Which companies are in Berlin?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			bundle, err := rt.Service.Ask(ctx, service.AskInput{
				Question:  strings.Join(args, " "),
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, bundle)
			}

			fmt.Fprintf(out, "Session: %s\n\n", bundle.SessionID)
			printAnswer(out, cmd.ErrOrStderr(), bundle)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output the full answer bundle as JSON")

	return cmd
}
