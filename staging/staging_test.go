package staging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/commitindex"
	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
)

func newFixture(t *testing.T) (*objectstore.Store, *commitindex.Index) {
	t.Helper()
	dir, err := os.MkdirTemp("", "staging-store-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := objectstore.Open(dir)
	require.NoError(t, err)

	idx, err := commitindex.Open(dir + "/commits.idx")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	return store, idx
}

func TestCommitInitialEmptyTree(t *testing.T) {
	store, idx := newFixture(t)

	var zero objectstore.Hash
	result, err := Commit(store, idx, 0, zero, "alice", "init", "", dogma.MarkupPlaintext, 1000,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"x": float64(1)})}, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Revision)

	head, ok := idx.Head()
	require.True(t, ok)
	require.Equal(t, 1, head)
}

func TestCommitRedundantChangeRaisesError(t *testing.T) {
	store, idx := newFixture(t)
	var zero objectstore.Hash
	result, err := Commit(store, idx, 0, zero, "alice", "init", "", dogma.MarkupPlaintext, 1000,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"x": float64(1)})}, false)
	require.NoError(t, err)

	_, err = Commit(store, idx, result.Revision, result.TreeHash, "alice", "noop", "", dogma.MarkupPlaintext, 1001,
		[]dogma.Change{dogma.UpsertJSON("/a.json", map[string]any{"x": float64(1)})}, false)
	require.True(t, dogmaerr.Is(err, dogmaerr.RedundantChange))
}

func TestCommitChainsParents(t *testing.T) {
	store, idx := newFixture(t)
	var zero objectstore.Hash
	r1, err := Commit(store, idx, 0, zero, "alice", "c1", "", dogma.MarkupPlaintext, 1000,
		[]dogma.Change{dogma.UpsertText("/f.txt", "hello")}, false)
	require.NoError(t, err)

	r2, err := Commit(store, idx, r1.Revision, r1.TreeHash, "alice", "c2", "", dogma.MarkupPlaintext, 1001,
		[]dogma.Change{dogma.UpsertText("/f.txt", "world")}, false)
	require.NoError(t, err)
	require.Equal(t, 2, r2.Revision)
	require.Len(t, r2.Changes, 1)

	head, _ := idx.Head()
	require.Equal(t, 2, head)
}

func TestIndexRemoveDirectoryPrefix(t *testing.T) {
	store, _ := newFixture(t)
	var zero objectstore.Hash
	idx, err := Load(store, zero)
	require.NoError(t, err)

	require.NoError(t, idx.Apply(dogma.UpsertText("/dir/a.txt", "a")))
	require.NoError(t, idx.Apply(dogma.UpsertText("/dir/b.txt", "b")))
	require.NoError(t, idx.Apply(dogma.Remove("/dir")))
	require.Equal(t, 4, idx.EditCount())
}

func TestIndexRemoveMissingRaisesNotFound(t *testing.T) {
	store, _ := newFixture(t)
	var zero objectstore.Hash
	idx, err := Load(store, zero)
	require.NoError(t, err)
	err = idx.Apply(dogma.Remove("/missing"))
	require.True(t, dogmaerr.Is(err, dogmaerr.EntryNotFound))
}

func TestIndexRenameDirectory(t *testing.T) {
	store, _ := newFixture(t)
	var zero objectstore.Hash
	idx, err := Load(store, zero)
	require.NoError(t, err)

	require.NoError(t, idx.Apply(dogma.UpsertText("/old/a.txt", "a")))
	require.NoError(t, idx.Apply(dogma.Rename("/old", "/new")))
	_, hasOld := idx.entries["/old/a.txt"]
	require.False(t, hasOld)
	entry, hasNew := idx.entries["/new/a.txt"]
	require.True(t, hasNew)
	require.Equal(t, "a\n", entry.text)
}

func TestIndexRenameRejectsExistingDestination(t *testing.T) {
	store, _ := newFixture(t)
	var zero objectstore.Hash
	idx, err := Load(store, zero)
	require.NoError(t, err)

	require.NoError(t, idx.Apply(dogma.UpsertText("/a.txt", "a")))
	require.NoError(t, idx.Apply(dogma.UpsertText("/b.txt", "b")))
	err = idx.Apply(dogma.Rename("/a.txt", "/b.txt"))
	require.True(t, dogmaerr.Is(err, dogmaerr.ChangeConflict))
}

func TestIndexApplyJSONPatchSkipsNoopEdit(t *testing.T) {
	store, _ := newFixture(t)
	var zero objectstore.Hash
	idx, err := Load(store, zero)
	require.NoError(t, err)

	require.NoError(t, idx.Apply(dogma.UpsertJSON("/a.json", map[string]any{"a": float64(1)})))
	require.Equal(t, 1, idx.EditCount())

	err = idx.Apply(dogma.ApplyJSONPatch("/a.json", []dogma.PatchOp{{Op: dogma.PatchOpReplace, Path: "/a", Value: float64(1)}}))
	require.NoError(t, err)
	require.Equal(t, 1, idx.EditCount(), "no-op patch must not add an edit")
}
