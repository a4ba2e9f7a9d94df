// Package initcmd implements the "init" subcommand: create a new
// repository directory and write its default dogma.yaml, the way the
// teacher's cmd/initialize bootstraps a .drs directory and config file.
package initcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/config"
	"github.com/cdogma/dogma-core/repository"
)

// Cmd represents the "init" command.
var Cmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	Long:  "Description:\n  Create a repository directory (if absent) with its initial empty commit and a default dogma.yaml.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			cmd.SilenceUsage = false
			return fmt.Errorf("error: accepts exactly one argument (the repository directory), received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create repository directory: %w", err)
		}

		cfgPath := dir + "/dogma.yaml"
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		r, err := repository.Open(dir, dir, cfg)
		if err != nil {
			return fmt.Errorf("open repository: %w", err)
		}
		defer r.Close()

		fmt.Printf("initialized repository at %s, head revision %d\n", dir, r.Head())
		return nil
	},
}
