/*
Package cli implements the graphrag-agent commands.

Every command that touches the graph or the conversation store builds a
Runtime from the loaded configuration and closes it when done.
*/
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/config"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/version"
)

// Options are the persistent flags shared by all commands.
type Options struct {
	ConfigPath string
	Verbose    bool

	// newRuntime builds the runtime; tests swap it for an in-memory one.
	newRuntime func(ctx context.Context, cfg *config.Config) (*Runtime, error)
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&Options{newRuntime: Bootstrap})
}

func newRootCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphrag-agent",
		Short: "Answer questions over a knowledge graph with a tool-calling agent",
		Long: `graphrag-agent answers natural language questions about a Neo4j knowledge
graph. A language model decides which retrieval to run:

  • cypher_query    - structured graph queries
  • graph_schema    - node labels, properties and relationship patterns
  • semantic_search - similarity search over indexed entities
  • hybrid_search   - semantic matches expanded with their graph neighbours

Conversations are kept per session so follow-up questions have context.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default ~/.graphrag-agent.json, or $GRAPHRAG_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		NewAskCmd(opts),
		NewChatCmd(opts),
		NewSessionsCmd(opts),
		NewHistoryCmd(opts),
		NewDeleteCmd(opts),
		NewIndexCmd(opts),
		NewStatsCmd(opts),
		NewServeCmd(opts),
		NewVerifyCmd(opts),
		NewInitCmd(opts),
		NewVersionCmd(),
	)

	return cmd
}

// loadConfig reads the configuration and sets up logging.
func (o *Options) loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, path, err
	}
	observability.Init(os.Stderr, o.Verbose || cfg.Verbose)
	return cfg, path, nil
}

// runtime loads the configuration and builds a Runtime from it.
func (o *Options) runtime(ctx context.Context) (*Runtime, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return o.newRuntime(ctx, cfg)
}
