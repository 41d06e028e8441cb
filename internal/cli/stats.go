package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/service"
	"github.com/khanglvm/graphrag-agent/internal/storage"
)

// usageWindow is how far back the stats command summarizes tool calls.
const usageWindow = 7 * 24 * time.Hour

type statsReport struct {
	*service.Stats
	ToolUsage []storage.ToolUsageStat `json:"tool_usage,omitempty"`
}

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd(opts *Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector index, session and tool usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Service.Stats(ctx)
			if err != nil {
				return err
			}
			report := &statsReport{Stats: stats}

			if rt.Usage != nil {
				usage, err := rt.Usage.ToolUsageStats(ctx, time.Now().Add(-usageWindow))
				if err != nil {
					return err
				}
				report.ToolUsage = usage
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printStats(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func printStats(w io.Writer, r *statsReport) {
	fmt.Fprintln(w, "Statistics")
	fmt.Fprintln(w, "==========")

	if idx := r.Index; idx != nil {
		fmt.Fprintf(w, "Vector backend: %s\n", idx.Backend)
		if idx.Collection != "" {
			fmt.Fprintf(w, "Collection:     %s\n", idx.Collection)
		}
		fmt.Fprintf(w, "Documents:      %d\n", idx.Count)
		if idx.Dimension > 0 {
			fmt.Fprintf(w, "Dimension:      %d\n", idx.Dimension)
		}
	} else {
		fmt.Fprintln(w, "Vector backend: disabled")
	}

	fmt.Fprintf(w, "Sessions:       %d\n", r.Sessions)
	fmt.Fprintf(w, "Tools:          %s\n", strings.Join(r.Tools, ", "))

	if len(r.ToolUsage) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tool calls (last 7 days):")
		for _, u := range r.ToolUsage {
			fmt.Fprintf(w, "  %-16s %4d calls  %3d failed  avg %s\n",
				u.Tool, u.Calls, u.Failures, u.AvgDuration.Round(time.Millisecond))
		}
	}
}
