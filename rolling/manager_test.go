package rolling

import (
	"os"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/objectstore"
)

// writeCommit writes a trivial single-blob commit on top of parent (the
// zero hash for the first commit) and returns its hash.
func writeCommit(t *testing.T, store *objectstore.Store, parent objectstore.Hash, content string) objectstore.Hash {
	t.Helper()
	blobHash, err := store.Put(objectstore.BlobObject, []byte(content))
	require.NoError(t, err)

	tree := &object.Tree{Entries: []object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}}}
	obj := store.Storer().NewEncodedObject()
	require.NoError(t, tree.Encode(obj))
	treeHash, err := store.Storer().SetEncodedObject(obj)
	require.NoError(t, err)

	var parents []objectstore.Hash
	if !parent.IsZero() {
		parents = []objectstore.Hash{parent}
	}
	commit := &object.Commit{
		Author:       object.Signature{Name: "t"},
		Committer:    object.Signature{Name: "t"},
		Message:      content,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	cobj := store.Storer().NewEncodedObject()
	require.NoError(t, commit.Encode(cobj))
	commitHash, err := store.Storer().SetEncodedObject(cobj)
	require.NoError(t, err)
	require.NoError(t, store.SetHead(commitHash))
	return commitHash
}

func TestNewManagerInitializesPrimaryAtRevisionOne(t *testing.T) {
	dir, err := os.MkdirTemp("", "rolling-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	m, err := NewManager(dir, 10000)
	require.NoError(t, err)
	require.Equal(t, 1, m.FirstRevision())
	require.NotNil(t, m.Store())
}

func TestPromotionAfterThresholdMovesFirstRevisionForward(t *testing.T) {
	dir, err := os.MkdirTemp("", "rolling-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	// threshold of 2: the 2nd commit starts a secondary, copies itself
	// into it and, since minRetention == 1, promotes it in the same
	// AfterCommit call; the 4th commit does the same again.
	m, err := NewManager(dir, 2)
	require.NoError(t, err)

	var last objectstore.Hash
	for rev := 1; rev <= 4; rev++ {
		store := m.Store()
		last = writeCommit(t, store, last, "rev")
		require.NoError(t, m.AfterCommit(rev, last))
	}

	require.Greater(t, m.FirstRevision(), 1)

	// The promoted primary must still resolve the most recent commit.
	_, err = object.GetCommit(m.Store().Storer(), last)
	require.NoError(t, err)
}

func TestReopenRestoresPersistedState(t *testing.T) {
	dir, err := os.MkdirTemp("", "rolling-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	m1, err := NewManager(dir, 2)
	require.NoError(t, err)
	var last objectstore.Hash
	for rev := 1; rev <= 4; rev++ {
		last = writeCommit(t, m1.Store(), last, "rev")
		require.NoError(t, m1.AfterCommit(rev, last))
	}
	first := m1.FirstRevision()

	m2, err := NewManager(dir, 2)
	require.NoError(t, err)
	require.Equal(t, first, m2.FirstRevision())
	_, err = object.GetCommit(m2.Store().Storer(), last)
	require.NoError(t, err)
}
