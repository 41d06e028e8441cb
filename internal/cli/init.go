package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/graphrag-agent/internal/config"
)

// NewInitCmd creates the 'init' command that writes a default config.
func NewInitCmd(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to ~/.graphrag-agent.json (or the path
given by --config). An existing file is kept unless --force is given; the
previous version is saved next to it as .bak.`,
		Example: `  graphrag-agent init
  graphrag-agent init --config ./graphrag.json --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.ConfigPath
			if path == "" {
				path = os.Getenv(config.EnvConfigPath)
			}
			if path == "" {
				var err error
				if path, err = config.GetDefaultConfigPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			if err := config.Save(config.NewConfig(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default config to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set GEMINI_API_KEY (or llm.provider=\"mock\") and run 'graphrag-agent verify'.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}
