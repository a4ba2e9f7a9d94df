package pathpattern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchAllFastPath(t *testing.T) {
	m, err := Compile("/**")
	require.NoError(t, err)
	require.True(t, m.IsMatchAll())
	require.True(t, m.Matches("/a/b/c.json"))
	require.True(t, m.Matches("/anything"))
}

func TestSingleSegmentStar(t *testing.T) {
	m, err := Compile("/a/*.json")
	require.NoError(t, err)
	require.True(t, m.Matches("/a/b.json"))
	require.False(t, m.Matches("/a/b/c.json"))
}

func TestCrossSegmentDoubleStar(t *testing.T) {
	m, err := Compile("/a/**")
	require.NoError(t, err)
	require.True(t, m.Matches("/a/b.json"))
	require.True(t, m.Matches("/a/b/c.json"))
	require.False(t, m.Matches("/other.json"))
}

func TestCommaSeparatedAlternation(t *testing.T) {
	m, err := Compile("/a/*.json, /b/*.txt")
	require.NoError(t, err)
	require.True(t, m.Matches("/a/x.json"))
	require.True(t, m.Matches("/b/y.txt"))
	require.False(t, m.Matches("/c/z.txt"))
}

func TestMatchesDirectoryRequiresExplicitListing(t *testing.T) {
	m, err := Compile("/a/**,/b")
	require.NoError(t, err)
	require.True(t, m.MatchesDirectory("/b"))
	require.False(t, m.MatchesDirectory("/a"))
}
