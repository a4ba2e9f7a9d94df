// Package objectstore implements C1: an append-only store of content,
// tree, and commit objects addressed by content hash, with an on-disk
// layout compatible with a mainstream content-addressed object model.
// It is built on github.com/go-git/go-git/v5, driving the library's
// lower-level storage/filesystem package directly, bare, with no
// working tree, no file-mode tracking and no rename detection, for a
// fully deterministic object graph.
package objectstore

import (
	"bytes"
	"io"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/cdogma/dogma-core/dogmaerr"
)

// ObjectType re-exports plumbing.ObjectType so callers don't need to
// import go-git directly.
type ObjectType = plumbing.ObjectType

// Hash re-exports plumbing.Hash, a 20-byte SHA-1 content address.
type Hash = plumbing.Hash

const (
	CommitObject ObjectType = plumbing.CommitObject
	TreeObject   ObjectType = plumbing.TreeObject
	BlobObject   ObjectType = plumbing.BlobObject
)

// headRef is the single branch this module ever writes to.
const headRef = plumbing.ReferenceName("refs/heads/master")

// Store is a bare, Git-compatible object store rooted at a single
// directory on disk.
type Store struct {
	dir     string
	storage *filesystem.Storage
}

// Open opens (creating if absent) a bare object store at dir.
func Open(dir string) (*Store, error) {
	fs := osfs.New(dir)
	cfg := filesystem.Options{
		ExclusiveAccess: false,
		KeepDescriptors: false,
		// LargeObjectThreshold left at 0 (default): no special
		// handling, keeping the store's behavior deterministic.
	}
	storage := filesystem.NewStorageWithOptions(fs, cache.NewObjectLRUDefault(), cfg)

	// Configure the repository config object once so the on-disk
	// store never tracks file modes, symlinks, or signed commits, and
	// never performs rename detection — every determinism knob this
	// module relies on.
	rawCfg, err := storage.Config()
	if err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.IOError, "read repository config", err)
	}
	rawCfg.Core.IsBare = true
	rawCfg.Raw.Section("core").SetOption("filemode", "false")
	rawCfg.Raw.Section("core").SetOption("symlinks", "false")
	rawCfg.Raw.Section("core").SetOption("hideDotFiles", "false")
	rawCfg.Raw.Section("diff").SetOption("algorithm", "histogram")
	rawCfg.Raw.Section("diff").SetOption("renames", "false")
	rawCfg.Raw.Section("commit").SetOption("gpgsign", "false")
	if err := storage.SetConfig(rawCfg); err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.IOError, "write repository config", err)
	}

	return &Store{dir: dir, storage: storage}, nil
}

// Dir returns the on-disk root of the object store.
func (s *Store) Dir() string { return s.dir }

// Storer exposes the underlying encoded-object storer so that
// higher-level packages (treediff, staging) can build and read
// go-git's own object.Tree and object.Commit representations directly
// instead of re-deriving the Git object wire format by hand.
func (s *Store) Storer() storer.EncodedObjectStorer { return s.storage }

// Put stores bytes as an object of the given type and returns its
// content hash. A write failure surfaces dogmaerr.IOError; go-git's
// filesystem storage writes loose objects via a temp-file-then-rename
// sequence, so a failed write never leaves a half-written object
// visible under its final hash.
func (s *Store) Put(objType ObjectType, data []byte) (Hash, error) {
	obj := s.storage.NewEncodedObject()
	obj.SetType(objType)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, dogmaerr.Wrap(dogmaerr.IOError, "open object writer", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return plumbing.ZeroHash, dogmaerr.Wrap(dogmaerr.IOError, "write object", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, dogmaerr.Wrap(dogmaerr.IOError, "close object writer", err)
	}
	hash, err := s.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, dogmaerr.Wrap(dogmaerr.IOError, "persist object", err)
	}
	return hash, nil
}

// Open returns a reader over the object stored at id, along with its
// type. A missing object surfaces dogmaerr.StorageCorruption.
func (s *Store) Open(id Hash) (ObjectType, io.ReadCloser, error) {
	obj, err := s.storage.EncodedObject(plumbing.AnyObject, id)
	if err != nil {
		return 0, nil, dogmaerr.Wrap(dogmaerr.StorageCorruption, "missing object "+id.String(), err)
	}
	r, err := obj.Reader()
	if err != nil {
		return 0, nil, dogmaerr.Wrap(dogmaerr.StorageCorruption, "read object "+id.String(), err)
	}
	return obj.Type(), r, nil
}

// ReadAll is a convenience over Open that reads the full object body.
func (s *Store) ReadAll(id Hash) (ObjectType, []byte, error) {
	typ, r, err := s.Open(id)
	if err != nil {
		return 0, nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, dogmaerr.Wrap(dogmaerr.StorageCorruption, "read object body "+id.String(), err)
	}
	return typ, data, nil
}

// Exists reports whether id names a stored object.
func (s *Store) Exists(id Hash) bool {
	return s.storage.HasEncodedObject(id) == nil
}

// Head returns the commit hash refs/heads/master currently points at,
// or plumbing.ZeroHash if the ref has never been set (an empty store).
func (s *Store) Head() (Hash, bool, error) {
	ref, err := s.storage.Reference(headRef)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, dogmaerr.Wrap(dogmaerr.IOError, "read head reference", err)
	}
	return ref.Hash(), true, nil
}

// SetHead moves refs/heads/master to point at id.
func (s *Store) SetHead(id Hash) error {
	ref := plumbing.NewHashReference(headRef, id)
	if err := s.storage.SetReference(ref); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "update head reference", err)
	}
	return nil
}

// EnsureSymbolicHEAD writes the HEAD -> refs/heads/master symbolic
// reference expected by any Git-compatible reader of this store.
func (s *Store) EnsureSymbolicHEAD() error {
	symbolic := plumbing.NewSymbolicReference(plumbing.HEAD, headRef)
	if err := s.storage.SetReference(symbolic); err != nil {
		return dogmaerr.Wrap(dogmaerr.IOError, "write symbolic HEAD", err)
	}
	return nil
}
