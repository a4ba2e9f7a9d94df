// Package logcmd implements the "log" subcommand over C8's History
// operation.
package logcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/dogmaflags"
)

var (
	fromFlag string
	toFlag   string
	maxFlag  int
)

// Cmd represents the "log" command.
var Cmd = &cobra.Command{
	Use:   "log <pattern>",
	Short: "Show the commits touching a path pattern",
	Long:  "Description:\n  List commits in [from, to] whose change-set touched a path matching pattern, newest first by default.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		r, err := dogmaflags.Open(dir)
		if err != nil {
			return err
		}
		defer r.Close()

		from, err := dogmaflags.ParseRevision(fromFlag)
		if err != nil {
			return err
		}
		to, err := dogmaflags.ParseRevision(toFlag)
		if err != nil {
			return err
		}

		commits, err := r.History(context.Background(), from, to, args[0], maxFlag)
		if err != nil {
			return err
		}
		for _, c := range commits {
			fmt.Printf("r%d %s %s\n", c.Revision, c.Author, c.Summary)
		}
		return nil
	},
}

func init() {
	dogmaflags.AddDirFlag(Cmd)
	Cmd.Flags().StringVar(&fromFlag, "from", "head", "starting revision")
	Cmd.Flags().StringVar(&toFlag, "to", "1", "ending revision")
	Cmd.Flags().IntVar(&maxFlag, "max", 0, "maximum commits to return (0 uses the configured default)")
}
