package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/agent"
	"github.com/khanglvm/graphrag-agent/internal/service"
)

// printJSON pretty-prints v.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printAnswer renders an answer bundle for a terminal.
func printAnswer(w, errW io.Writer, b *service.AnswerBundle) {
	for _, c := range b.ToolCalls {
		args, _ := json.Marshal(c.Args)
		fmt.Fprintf(w, "  → %s %s\n", c.Tool, args)
	}
	if len(b.ToolCalls) > 0 {
		fmt.Fprintln(w)
	}

	answer := strings.TrimSpace(b.Answer)
	if answer == "" {
		answer = "(no answer)"
	}
	fmt.Fprintln(w, answer)

	if b.TerminationReason == string(agent.IterationCeiling) {
		fmt.Fprintf(errW, "⚠ Stopped after %d iterations; the answer may be incomplete.\n", b.Iterations)
	}
	if b.PersistError != "" {
		fmt.Fprintf(errW, "⚠ Answer not saved to session history: %s\n", b.PersistError)
	}
}

func printEntries(w io.Writer, entries []service.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	for _, e := range entries {
		label := "You"
		if e.Role != "user" {
			label = "Agent"
		}
		fmt.Fprintf(w, "%s: %s\n", label, e.Content)
	}
}
