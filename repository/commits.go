package repository

import (
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
)

// treeAt resolves the tree hash committed at revision rev. Revision 0
// denotes "no commits yet" and resolves to the zero (empty) tree, used
// when diffing against the repository's state before its first commit.
func (r *Repository) treeAt(rev int) (objectstore.Hash, error) {
	if rev == 0 {
		return objectstore.Hash{}, nil
	}
	if first := r.compactor.FirstRevision(); rev < first {
		return objectstore.Hash{}, dogmaerr.Newf(dogmaerr.RevisionNotFound, "revision %d has been compacted away, oldest available revision is %d", rev, first)
	}
	hash, err := r.idx.Get(rev)
	if err != nil {
		return objectstore.Hash{}, err
	}
	commit, err := object.GetCommit(r.db().Storer(), hash)
	if err != nil {
		return objectstore.Hash{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode commit "+hash.String(), err)
	}
	return commit.TreeHash, nil
}

// commitAt loads the read-side Commit metadata at revision rev.
func (r *Repository) commitAt(rev int) (dogma.Commit, error) {
	if first := r.compactor.FirstRevision(); rev < first {
		return dogma.Commit{}, dogmaerr.Newf(dogmaerr.RevisionNotFound, "revision %d has been compacted away, oldest available revision is %d", rev, first)
	}
	hash, err := r.idx.Get(rev)
	if err != nil {
		return dogma.Commit{}, err
	}
	return r.decodeCommit(hash)
}

func (r *Repository) decodeCommit(hash objectstore.Hash) (dogma.Commit, error) {
	raw, err := object.GetCommit(r.db().Storer(), hash)
	if err != nil {
		return dogma.Commit{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode commit "+hash.String(), err)
	}
	summary, detail, markup, revision, err := dogma.DecodeMessage(raw.Message)
	if err != nil {
		return dogma.Commit{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode commit message "+hash.String(), err)
	}
	c := dogma.Commit{
		Revision:    revision,
		Author:      raw.Author.Name,
		TimestampMs: raw.Author.When.UnixMilli(),
		Summary:     summary,
		Detail:      detail,
		Markup:      markup,
	}
	if len(raw.ParentHashes) > 0 {
		parentRev := revision - 1
		c.ParentRevision = &parentRev
	}
	return c, nil
}
