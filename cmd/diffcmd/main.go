// Package diffcmd implements the "diff" subcommand over C8's Diff
// operation.
package diffcmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/dogmaflags"
	"github.com/cdogma/dogma-core/dogma"
)

var (
	fromFlag string
	toFlag   string
	modeFlag string
)

// Cmd represents the "diff" command.
var Cmd = &cobra.Command{
	Use:   "diff <pattern>",
	Short: "Diff two revisions over a path pattern",
	Long:  "Description:\n  Pair-diff --from and --to, printing the resulting path -> Change map as JSON.",
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

		mode, err := parseDiffMode(modeFlag)
		if err != nil {
			return err
		}

		changes, err := r.Diff(context.Background(), from, to, args[0], mode)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(changes, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	dogmaflags.AddDirFlag(Cmd)
	Cmd.Flags().StringVar(&fromFlag, "from", "-1", "starting revision")
	Cmd.Flags().StringVar(&toFlag, "to", "head", "ending revision")
	Cmd.Flags().StringVar(&modeFlag, "mode", "normal", "diff mode: normal (patches) or upsert (full content)")
}

func parseDiffMode(s string) (dogma.DiffMode, error) {
	switch s {
	case "normal":
		return dogma.DiffNormal, nil
	case "upsert":
		return dogma.DiffPatchToUpsert, nil
	default:
		return 0, fmt.Errorf("unknown diff mode %q", s)
	}
}
