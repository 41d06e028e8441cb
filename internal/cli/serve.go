package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/mcp"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the graphrag-agent MCP server using stdio transport.

This server exposes 5 tools to AI clients:
  • graph_ask            - Answer a question against the knowledge graph
  • graph_sessions       - List conversation sessions
  • graph_history        - Show the questions and answers of a session
  • graph_delete_session - Delete a session
  • graph_stats          - Report index and session counts`,
		Example: `  # Run directly
  graphrag-agent serve

  # Add to Claude Code
  claude mcp add graphrag -- graphrag-agent serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			log := observability.Logger()
			server := mcp.NewServer(rt.Service)

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			}()

			log.Info("mcp server started")
			select {
			case <-ctx.Done():
				log.Info("received signal, shutting down")
				return nil
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}
		},
	}

	return cmd
}
