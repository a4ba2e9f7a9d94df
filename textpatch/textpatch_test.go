package textpatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/dogmaerr"
)

func TestSanitizeStripsCRAndAddsTrailingNewline(t *testing.T) {
	require.Equal(t, "a\nb\n", Sanitize("a\r\nb"))
	require.Equal(t, "", Sanitize(""))
	require.Equal(t, "a\n", Sanitize("a\n"))
}

func TestGenerateAndApplyRoundTripSimpleEdit(t *testing.T) {
	oldText := "line1\nline2\nline3\nline4\nline5\n"
	newText := "line1\nline2\nCHANGED\nline4\nline5\n"

	patch := GenerateUnifiedDiff(oldText, newText, DefaultContext)
	require.NotEmpty(t, patch)

	out, err := Apply(oldText, patch)
	require.NoError(t, err)
	require.Equal(t, newText, out)
}

func TestGenerateAndApplyRoundTripInsertAtStart(t *testing.T) {
	oldText := "b\nc\n"
	newText := "a\nb\nc\n"

	patch := GenerateUnifiedDiff(oldText, newText, DefaultContext)
	out, err := Apply(oldText, patch)
	require.NoError(t, err)
	require.Equal(t, newText, out)
}

func TestGenerateAndApplyRoundTripAppendAtEnd(t *testing.T) {
	oldText := "a\nb\n"
	newText := "a\nb\nc\n"

	patch := GenerateUnifiedDiff(oldText, newText, DefaultContext)
	out, err := Apply(oldText, patch)
	require.NoError(t, err)
	require.Equal(t, newText, out)
}

func TestGenerateNoDiffWhenEquivalent(t *testing.T) {
	require.Empty(t, GenerateUnifiedDiff("same\n", "same\n", DefaultContext))
}

func TestApplyContextMismatchRaisesPatchConflict(t *testing.T) {
	oldText := "line1\nline2\nline3\n"
	patch := "@@ -1,3 +1,3 @@\n line1\n-WRONG\n+line2x\n line3\n"

	_, err := Apply(oldText, patch)
	require.Error(t, err)
	require.True(t, dogmaerr.Is(err, dogmaerr.PatchConflict))
}

func TestApplyNoHunksRaisesPatchConflict(t *testing.T) {
	_, err := Apply("a\n", "not a patch")
	require.True(t, dogmaerr.Is(err, dogmaerr.PatchConflict))
}
