// Package watchcmd implements the "watch" subcommand over C8's Watch
// operation: block until the next commit matching pattern lands, or
// resolve immediately if one already has.
package watchcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/dogmaflags"
)

var lastKnownFlag int

// Cmd represents the "watch" command.
var Cmd = &cobra.Command{
	Use:   "watch <pattern>",
	Short: "Block until a commit touches a path pattern",
	Long:  "Description:\n  Register a one-shot watch for pattern beyond --last-known and print the revision it resolves to.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		r, err := dogmaflags.Open(dir)
		if err != nil {
			return err
		}
		defer r.Close()

		ch, cancel, err := r.Watch(context.Background(), lastKnownFlag, args[0])
		if err != nil {
			return err
		}
		defer cancel()

		result := <-ch
		if result.Err != nil {
			return result.Err
		}
		fmt.Printf("revision %d touched %q\n", result.Rev, args[0])
		return nil
	},
}

func init() {
	dogmaflags.AddDirFlag(Cmd)
	Cmd.Flags().IntVar(&lastKnownFlag, "last-known", 0, "last known revision (0 means none observed yet)")
}
