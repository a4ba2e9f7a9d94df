package staging

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/commitindex"
	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/pathpattern"
	"github.com/cdogma/dogma-core/treediff"
)

// Result is the outcome of a successful Commit: the new revision and
// the ordered change map computed by pair-diffing base and new tree,
// for watch notification.
type Result struct {
	Revision int
	TreeHash objectstore.Hash
	Changes  []treediff.Change
}

// Commit stages changes against baseTreeHash and, if the result is
// non-empty (or allowEmpty is set), writes the new tree and commit
// object, then updates idx and the store's head pointer atomically.
// Callers must already hold the repository's exclusive write lock.
func Commit(
	store *objectstore.Store,
	index *commitindex.Index,
	baseRevision int,
	baseTreeHash objectstore.Hash,
	author, summary, detail string,
	markup dogma.Markup,
	timestampMs int64,
	changes []dogma.Change,
	allowEmpty bool,
) (Result, error) {
	staged, err := Load(store, baseTreeHash)
	if err != nil {
		return Result{}, err
	}
	for _, change := range changes {
		if err := staged.Apply(change); err != nil {
			return Result{}, err
		}
	}
	if staged.EditCount() == 0 && !allowEmpty {
		return Result{}, dogmaerr.New(dogmaerr.RedundantChange, "change-list produced no net edits")
	}

	newTreeHash, err := BuildTree(store, staged)
	if err != nil {
		return Result{}, err
	}

	changeEntries, err := treediff.Diff(store, baseTreeHash, newTreeHash, pathpattern.MustCompile("/**"))
	if err != nil {
		return Result{}, err
	}

	newRevision := baseRevision + 1
	message, err := dogma.EncodeMessage(summary, detail, markup, newRevision)
	if err != nil {
		return Result{}, dogmaerr.Wrap(dogmaerr.IOError, "encode commit message", err)
	}

	var parents []objectstore.Hash
	if baseRevision > 0 {
		parentHash, err := index.Get(baseRevision)
		if err != nil {
			return Result{}, err
		}
		parents = []objectstore.Hash{parentHash}
	}

	commitHash, err := writeCommit(store, newTreeHash, parents, author, message, timestampMs)
	if err != nil {
		return Result{}, err
	}

	// Index append is fsynced before the ref swap.
	if err := index.Put(newRevision, commitHash); err != nil {
		return Result{}, err
	}
	if err := store.SetHead(commitHash); err != nil {
		return Result{}, err
	}

	return Result{Revision: newRevision, TreeHash: newTreeHash, Changes: changeEntries}, nil
}

func writeCommit(store *objectstore.Store, treeHash objectstore.Hash, parents []objectstore.Hash, author, message string, timestampMs int64) (objectstore.Hash, error) {
	when := time.UnixMilli(timestampMs).UTC()
	sig := object.Signature{Name: author, Email: author, When: when}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := store.Storer().NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return objectstore.Hash{}, dogmaerr.Wrap(dogmaerr.IOError, "encode commit", err)
	}
	hash, err := store.Storer().SetEncodedObject(obj)
	if err != nil {
		return objectstore.Hash{}, dogmaerr.Wrap(dogmaerr.IOError, "persist commit", err)
	}
	return hash, nil
}
