package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewVerifyCmd creates the 'verify' command for checking configuration
// and connections.
func NewVerifyCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify configuration and connections",
		Long: `Verify that the configuration is valid and that the graph, the
conversation store and the vector backend are reachable.`,
		Example: `  graphrag-agent verify`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, path, err := opts.loadConfig()
			if err != nil {
				fmt.Fprintf(out, "✗ Config: %s\n", path)
				return fmt.Errorf("configuration error: %w", err)
			}
			fmt.Fprintf(out, "✓ Config: %s\n", path)

			rt, err := opts.newRuntime(ctx, cfg)
			if err != nil {
				fmt.Fprintln(out, "✗ Connections")
				return err
			}
			defer rt.Close()

			if rt.Graph != nil {
				if err := rt.Graph.Verify(ctx); err != nil {
					fmt.Fprintf(out, "✗ Neo4j: %s (%v)\n", cfg.Neo4j.URI, err)
					return err
				}
				fmt.Fprintf(out, "✓ Neo4j: %s\n", cfg.Neo4j.URI)
			}

			sessions, err := rt.Service.ListSessions(ctx)
			if err != nil {
				fmt.Fprintf(out, "✗ Conversation store: %s (%v)\n", cfg.Storage.Backend, err)
				return err
			}
			fmt.Fprintf(out, "✓ Conversation store: %s (%d sessions)\n", cfg.Storage.Backend, len(sessions))

			stats, err := rt.Service.Stats(ctx)
			if err != nil {
				fmt.Fprintf(out, "✗ Vector backend: %s (%v)\n", rt.VectorBackend, err)
				return err
			}
			if stats.Index == nil {
				fmt.Fprintln(out, "✓ Vector backend: disabled")
			} else {
				fmt.Fprintf(out, "✓ Vector backend: %s (%d documents)\n", stats.Index.Backend, stats.Index.Count)
			}

			fmt.Fprintf(out, "✓ Tools: %s\n", strings.Join(stats.Tools, ", "))
			return nil
		},
	}

	return cmd
}
