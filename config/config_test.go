package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dogma.yaml")
	require.NoError(t, Save(path, RepositoryConfig{ReadOnly: true}))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.ReadOnly)
	require.Equal(t, Defaults().MaxEntriesPerFind, cfg.MaxEntriesPerFind)
	require.Equal(t, Defaults().MaxCommitsPerHistory, cfg.MaxCommitsPerHistory)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dogma.yaml")
	want := Defaults()
	want.RollingCommitThreshold = 42
	want.WorkerCount = 4

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
