package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewIndexCmd creates the 'index' command that fills the vector backend
// from the graph.
func NewIndexCmd(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index graph entities for semantic search",
		Long: `Export graph nodes that have a name or description and add them to the
configured vector backend. A backend that already holds documents is left
alone unless --force is given.`,
		Example: `  graphrag-agent index
  graphrag-agent index --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Service.IndexGraph(ctx, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Skipped:
				fmt.Fprintf(out, "Index already holds %d documents; use --force to re-index.\n", res.Existing)
			case res.Indexed == 0:
				fmt.Fprintln(out, "No named or described entities found in the graph.")
			default:
				fmt.Fprintf(out, "✓ Indexed %d entities\n", res.Indexed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Index even if the backend already holds documents")
	return cmd
}
