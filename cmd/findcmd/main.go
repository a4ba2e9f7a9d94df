// Package findcmd implements the "find" subcommand over C8's Find
// operation.
package findcmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/dogmaflags"
)

var (
	revFlag        string
	maxEntriesFlag int
)

// Cmd represents the "find" command.
var Cmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "Find entries matching a path pattern",
	Long:  "Description:\n  List every entry at a revision whose path matches a comma-separated glob pattern.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		r, err := dogmaflags.Open(dir)
		if err != nil {
			return err
		}
		defer r.Close()

		rev, err := dogmaflags.ParseRevision(revFlag)
		if err != nil {
			return err
		}

		entries, err := r.Find(context.Background(), rev, args[0], maxEntriesFlag)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	dogmaflags.AddDirFlag(Cmd)
	Cmd.Flags().StringVar(&revFlag, "rev", "head", "revision (absolute integer, or 'head')")
	Cmd.Flags().IntVar(&maxEntriesFlag, "max-entries", 0, "maximum entries to return (0 uses the configured default)")
}
