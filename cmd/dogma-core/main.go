// Command dogma-core is the thin operator entry point over the
// storage-core façade: install the process logger, run the root
// command, close the logger on exit.
package main

import (
	"fmt"
	"os"

	"github.com/cdogma/dogma-core/cmd/root"
	"github.com/cdogma/dogma-core/internal/dogmalog"
)

func main() {
	if err := dogmalog.Init("", false); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := root.RootCmd.Execute(); err != nil {
		dogmalog.Close()
		os.Exit(1)
	}
}
