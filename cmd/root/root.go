// Package root wires every dogma-core subcommand onto a cobra root
// command: one RootCmd, an init() that adds each subcommand package,
// completion hidden, usage silenced on error.
package root

import (
	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/cmd/commitcmd"
	"github.com/cdogma/dogma-core/cmd/diffcmd"
	"github.com/cdogma/dogma-core/cmd/findcmd"
	"github.com/cdogma/dogma-core/cmd/initcmd"
	"github.com/cdogma/dogma-core/cmd/logcmd"
	"github.com/cdogma/dogma-core/cmd/version"
	"github.com/cdogma/dogma-core/cmd/watchcmd"
)

// RootCmd represents the root command.
var RootCmd = &cobra.Command{
	Use:   "dogma-core",
	Short: "dogma-core - operator shim over a Central Dogma storage repository",
	Long: "dogma-core is a debugging/ops CLI over the storage-core façade (C8); " +
		"the real consumer of this module is the RPC layer, out of scope here.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// pre-run hook reserved for global flags (e.g. verbosity) later.
	},
}

func init() {
	RootCmd.AddCommand(initcmd.Cmd)
	RootCmd.AddCommand(commitcmd.Cmd)
	RootCmd.AddCommand(findcmd.Cmd)
	RootCmd.AddCommand(logcmd.Cmd)
	RootCmd.AddCommand(diffcmd.Cmd)
	RootCmd.AddCommand(watchcmd.Cmd)
	RootCmd.AddCommand(version.Cmd)
	RootCmd.CompletionOptions.HiddenDefaultCmd = true
	RootCmd.SilenceUsage = true
}
