package root

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandStructure(t *testing.T) {
	require.Equal(t, "dogma-core", RootCmd.Use)
	require.NotEmpty(t, RootCmd.Short)
	require.True(t, RootCmd.CompletionOptions.HiddenDefaultCmd)

	expected := []string{"init", "commit", "find", "log", "diff", "watch", "version"}
	for _, name := range expected {
		found := false
		for _, cmd := range RootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		require.True(t, found, "expected subcommand %q not found", name)
	}
}
