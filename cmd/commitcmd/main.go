// Package commitcmd implements the "commit" subcommand over C8's
// Commit operation, reading the change-list from a JSON file since a
// shell CLI has no other practical way to hand over a structured
// write-side Change list.
package commitcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/dogmaflags"
	"github.com/cdogma/dogma-core/dogma"
)

var (
	baseFlag       string
	authorFlag     string
	summaryFlag    string
	detailFlag     string
	changesFlag    string
	allowEmptyFlag bool
	directFlag     bool
)

// Cmd represents the "commit" command.
var Cmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit a change-list",
	Long:  "Description:\n  Apply the change-list in --changes-file against --base and write a new revision.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if changesFlag == "" {
			return fmt.Errorf("error: --changes-file is required")
		}
		dir, _ := cmd.Flags().GetString("dir")
		r, err := dogmaflags.Open(dir)
		if err != nil {
			return err
		}
		defer r.Close()

		base, err := dogmaflags.ParseRevision(baseFlag)
		if err != nil {
			return err
		}
		changes, err := dogmaflags.LoadChanges(changesFlag)
		if err != nil {
			return err
		}

		c, err := r.CommitDirect(context.Background(), base, authorFlag, summaryFlag, detailFlag,
			dogma.MarkupPlaintext, changes, allowEmptyFlag, directFlag)
		if err != nil {
			return err
		}
		fmt.Printf("committed revision %d\n", c.Revision)
		return nil
	},
}

func init() {
	dogmaflags.AddDirFlag(Cmd)
	Cmd.Flags().StringVar(&baseFlag, "base", "head", "base revision")
	Cmd.Flags().StringVar(&authorFlag, "author", "", "commit author")
	Cmd.Flags().StringVar(&summaryFlag, "summary", "", "commit summary")
	Cmd.Flags().StringVar(&detailFlag, "detail", "", "commit detail")
	Cmd.Flags().StringVar(&changesFlag, "changes-file", "", "path to a JSON change-list (required)")
	Cmd.Flags().BoolVar(&allowEmptyFlag, "allow-empty", false, "allow a commit with zero net edits")
	Cmd.Flags().BoolVar(&directFlag, "direct", false, "commit the normalized preview-diff instead of the raw change-list, for safe retries")
}
