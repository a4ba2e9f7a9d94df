package commitindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
)

func truncateBy(path string, by int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Truncate(path, info.Size()-by)
}

func hashOf(b byte) objectstore.Hash {
	var h objectstore.Hash
	h[0] = b
	return h
}

func TestPutGetContiguous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit_ids.dat")
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.Head()
	require.False(t, ok)

	require.NoError(t, idx.Put(1, hashOf(1)))
	require.NoError(t, idx.Put(2, hashOf(2)))

	head, ok := idx.Head()
	require.True(t, ok)
	require.Equal(t, 2, head)

	h, err := idx.Get(1)
	require.NoError(t, err)
	require.Equal(t, hashOf(1), h)

	h, err = idx.Get(2)
	require.NoError(t, err)
	require.Equal(t, hashOf(2), h)
}

func TestPutRejectsNonContiguous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit_ids.dat")
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Put(1, hashOf(1)))
	err = idx.Put(3, hashOf(3))
	require.Error(t, err)
	require.True(t, dogmaerr.Is(err, dogmaerr.StorageCorruption))
}

func TestGetOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit_ids.dat")
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Put(1, hashOf(1)))
	_, err = idx.Get(2)
	require.True(t, dogmaerr.Is(err, dogmaerr.RevisionNotFound))
	_, err = idx.Get(0)
	require.True(t, dogmaerr.Is(err, dogmaerr.RevisionNotFound))
}

func TestRebuildFromRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit_ids.dat")
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild([]Record{
		{Revision: 1, Hash: hashOf(1)},
		{Revision: 2, Hash: hashOf(2)},
		{Revision: 3, Hash: hashOf(3)},
	}))

	head, ok := idx.Head()
	require.True(t, ok)
	require.Equal(t, 3, head)

	h, err := idx.Get(3)
	require.NoError(t, err)
	require.Equal(t, hashOf(3), h)
}

func TestOpenDetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit_ids.dat")
	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Put(1, hashOf(1)))
	require.NoError(t, idx.Close())

	f, err := filepath.Abs(path)
	require.NoError(t, err)
	require.NoError(t, truncateBy(f, 1))

	idx2, err := Open(path)
	require.NoError(t, err)
	defer idx2.Close()
	require.True(t, idx2.IsTruncated())
}
