package treediff

import (
	"os"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/objectstore"
)

func openTestStore(t *testing.T) *objectstore.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "treediff-store-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	store, err := objectstore.Open(dir)
	require.NoError(t, err)
	return store
}

func putBlob(t *testing.T, store *objectstore.Store, content string) objectstore.Hash {
	t.Helper()
	id, err := store.Put(objectstore.BlobObject, []byte(content))
	require.NoError(t, err)
	return id
}

func putTree(t *testing.T, store *objectstore.Store, entries []object.TreeEntry) objectstore.Hash {
	t.Helper()
	tree := &object.Tree{Entries: entries}
	obj := store.Storer().NewEncodedObject()
	require.NoError(t, tree.Encode(obj))
	id, err := store.Storer().SetEncodedObject(obj)
	require.NoError(t, err)
	return id
}

func TestWalkLexicographicOrder(t *testing.T) {
	store := openTestStore(t)
	bBlob := putBlob(t, store, "b content\n")
	aBlob := putBlob(t, store, `{"a":1}`)

	sub := putTree(t, store, []object.TreeEntry{
		{Name: "inner.txt", Mode: filemode.Regular, Hash: bBlob},
	})
	root := putTree(t, store, []object.TreeEntry{
		{Name: "a.json", Mode: filemode.Executable, Hash: aBlob},
		{Name: "zzz", Mode: filemode.Dir, Hash: sub},
	})

	entries, err := Walk(store, root, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/a.json", entries[0].Path)
	require.Equal(t, dogma.EntryTypeJSON, entries[0].Type)
	require.Equal(t, "/zzz/inner.txt", entries[1].Path)
	require.Equal(t, dogma.EntryTypeText, entries[1].Type)
}

func TestDiffModify(t *testing.T) {
	store := openTestStore(t)
	oldBlob := putBlob(t, store, "old\n")
	newBlob := putBlob(t, store, "new\n")

	from := putTree(t, store, []object.TreeEntry{{Name: "f.txt", Mode: filemode.Regular, Hash: oldBlob}})
	to := putTree(t, store, []object.TreeEntry{{Name: "f.txt", Mode: filemode.Regular, Hash: newBlob}})

	changes, err := Diff(store, from, to, nil)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, Modify, changes[0].Action)
	require.Equal(t, "/f.txt", changes[0].OldPath)
	require.Equal(t, "/f.txt", changes[0].NewPath)
}

func TestDiffAddAndDelete(t *testing.T) {
	store := openTestStore(t)
	blob := putBlob(t, store, "x\n")

	from := putTree(t, store, []object.TreeEntry{{Name: "gone.txt", Mode: filemode.Regular, Hash: blob}})
	to := putTree(t, store, []object.TreeEntry{{Name: "new.txt", Mode: filemode.Regular, Hash: blob}})

	changes, err := Diff(store, from, to, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, Delete, changes[0].Action)
	require.Equal(t, "/gone.txt", changes[0].OldPath)
	require.Equal(t, Add, changes[1].Action)
	require.Equal(t, "/new.txt", changes[1].NewPath)
}

func TestDiffModeChangeEmitsDeleteThenAdd(t *testing.T) {
	store := openTestStore(t)
	textBlob := putBlob(t, store, "x\n")
	jsonBlob := putBlob(t, store, "1")

	from := putTree(t, store, []object.TreeEntry{{Name: "f", Mode: filemode.Regular, Hash: textBlob}})
	to := putTree(t, store, []object.TreeEntry{{Name: "f", Mode: filemode.Executable, Hash: jsonBlob}})

	changes, err := Diff(store, from, to, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, Delete, changes[0].Action)
	require.Equal(t, Add, changes[1].Action)
	require.Equal(t, dogma.EntryTypeJSON, changes[1].Type)
}

func TestDiffEmptyWhenTreesEqual(t *testing.T) {
	store := openTestStore(t)
	blob := putBlob(t, store, "x\n")
	tree := putTree(t, store, []object.TreeEntry{{Name: "f", Mode: filemode.Regular, Hash: blob}})

	changes, err := Diff(store, tree, tree, nil)
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestDiffWholeTreeAdd(t *testing.T) {
	store := openTestStore(t)
	blob := putBlob(t, store, "x\n")
	sub := putTree(t, store, []object.TreeEntry{{Name: "inner", Mode: filemode.Regular, Hash: blob}})
	to := putTree(t, store, []object.TreeEntry{{Name: "dir", Mode: filemode.Dir, Hash: sub}})

	var zero objectstore.Hash
	changes, err := Diff(store, zero, to, nil)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, Add, changes[0].Action)
	require.Equal(t, "/dir/inner", changes[0].NewPath)
}
