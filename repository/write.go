package repository

import (
	"context"
	"time"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/pathpattern"
	"github.com/cdogma/dogma-core/staging"
	"github.com/cdogma/dogma-core/treediff"
)

// Commit stages changes against baseRev and, if the result is
// non-empty (or allowEmpty is set), writes a new revision. Callers
// acquire the repository's exclusive write lock for the duration
//; compaction (C11) runs synchronously inside this same
// lock right after the commit lands, so no separate gc_lock check is
// needed here.
func (r *Repository) Commit(ctx context.Context, baseRev dogma.Revision, author, summary, detail string, markup dogma.Markup, changes []dogma.Change, allowEmpty bool) (dogma.Commit, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() (dogma.Commit, error) {
		if r.cfg.ReadOnly {
			return dogma.Commit{}, dogmaerr.New(dogmaerr.ReadOnly, "repository is read-only")
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.checkOpen(); err != nil {
			return dogma.Commit{}, err
		}
		baseAbs, err := r.normalizeLocked(baseRev)
		if err != nil {
			return dogma.Commit{}, err
		}
		baseTree, err := r.treeAt(baseAbs)
		if err != nil {
			return dogma.Commit{}, err
		}
		return r.commitInternal(baseAbs, baseTree, author, summary, detail, markup, changes, allowEmpty)
	})
}

// commitInternal performs the actual write. Callers must already hold
// the exclusive lock (or be constructing the repository for the first
// time, where no concurrent access is possible yet).
func (r *Repository) commitInternal(baseRev int, baseTree objectstore.Hash, author, summary, detail string, markup dogma.Markup, changes []dogma.Change, allowEmpty bool) (dogma.Commit, error) {
	result, err := staging.Commit(r.db(), r.idx, baseRev, baseTree, author, summary, detail, markup, time.Now().UnixMilli(), changes, allowEmpty)
	if err != nil {
		return dogma.Commit{}, err
	}

	c, err := r.commitAt(result.Revision)
	if err != nil {
		return dogma.Commit{}, err
	}

	commitHash, err := r.idx.Get(result.Revision)
	if err != nil {
		return dogma.Commit{}, err
	}
	if err := r.compactor.AfterCommit(result.Revision, commitHash); err != nil {
		return dogma.Commit{}, err
	}

	for _, change := range result.Changes {
		path := change.NewPath
		if path == "" {
			path = change.OldPath
		}
		r.watchMap.Notify(result.Revision, path)
	}
	return c, nil
}

// CommitDirect is the alternative commit(...) form distinguished by
// the direct flag. When direct is false it behaves
// exactly like Commit. When direct is true, the server first runs the
// staging step as a preview (PreviewDiff) and commits the *normalized*
// change map that preview produced rather than the caller's raw
// change-list: a JSON patch becomes a plain upsert of its result, and
// a redundant edit the preview already collapsed away simply isn't
// present. Both the preview and the commit run against baseRev; the
// change-list is not rebased onto a newer head, so a baseRev behind
// head fails as it does for Commit.
func (r *Repository) CommitDirect(ctx context.Context, baseRev dogma.Revision, author, summary, detail string, markup dogma.Markup, changes []dogma.Change, allowEmpty, direct bool) (dogma.Commit, error) {
	if !direct {
		return r.Commit(ctx, baseRev, author, summary, detail, markup, changes, allowEmpty)
	}
	normalized, err := r.PreviewDiff(ctx, baseRev, changes)
	if err != nil {
		return dogma.Commit{}, err
	}
	return r.Commit(ctx, baseRev, author, summary, detail, markup, changeEntriesToChanges(normalized), allowEmpty)
}

// changeEntriesToChanges converts a path -> Change result map (as
// produced by PreviewDiff/Diff) back into the write-side Change list
// CommitDirect re-applies for its normalized, idempotent re-commit.
func changeEntriesToChanges(entries []dogma.ChangeEntry) []dogma.Change {
	out := make([]dogma.Change, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case dogma.ChangeEntryUpsertJSON:
			out = append(out, dogma.UpsertJSON(e.Path, e.Content))
		case dogma.ChangeEntryUpsertText:
			text, _ := e.Content.(string)
			out = append(out, dogma.UpsertText(e.Path, text))
		case dogma.ChangeEntryRemove:
			out = append(out, dogma.Remove(e.Path))
		case dogma.ChangeEntryRename:
			out = append(out, dogma.Rename(e.Path, e.NewPath))
		}
	}
	return out
}

// Transformer maps the current JSON value at a path (nil if absent) to
// its replacement, for CommitWithTransformer.
type Transformer func(old any) (any, error)

// CommitWithTransformer is the transformer(old_json) -> new_json
// commit(...) form: read the current JSON value at path under baseRev,
// apply fn, and commit the result as a single UPSERT_JSON change with
// the same durability contract as Commit. fn sees nil when path is
// absent, matching APPLY_JSON_PATCH's "apply to a null node if absent"
// convention.
func (r *Repository) CommitWithTransformer(ctx context.Context, baseRev dogma.Revision, author, summary, detail string, markup dogma.Markup, path string, fn Transformer, allowEmpty bool) (dogma.Commit, error) {
	var old any
	entry, err := r.Get(ctx, baseRev, path)
	if err != nil && !dogmaerr.Is(err, dogmaerr.EntryNotFound) {
		return dogma.Commit{}, err
	}
	if err == nil {
		old = entry.Content
	}
	next, err := fn(old)
	if err != nil {
		return dogma.Commit{}, err
	}
	return r.Commit(ctx, baseRev, author, summary, detail, markup, []dogma.Change{dogma.UpsertJSON(path, next)}, allowEmpty)
}

// PreviewDiff stages changes against baseRev without committing them,
// returning the change-set that Commit would produce. It only needs
// the shared (read) lock: staged blobs/trees are written as ordinary
// content-addressed objects, and an uncommitted tree left dangling in
// the object store is harmless, the same way an unreferenced Git blob
// is harmless.
func (r *Repository) PreviewDiff(ctx context.Context, baseRev dogma.Revision, changes []dogma.Change) ([]dogma.ChangeEntry, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() ([]dogma.ChangeEntry, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return nil, err
		}
		baseAbs, err := r.normalizeLocked(baseRev)
		if err != nil {
			return nil, err
		}
		baseTree, err := r.treeAt(baseAbs)
		if err != nil {
			return nil, err
		}

		idx, err := staging.Load(r.db(), baseTree)
		if err != nil {
			return nil, err
		}
		for _, change := range changes {
			if err := idx.Apply(change); err != nil {
				return nil, err
			}
		}
		newTree, err := staging.BuildTree(r.db(), idx)
		if err != nil {
			return nil, err
		}
		treeChanges, err := treediff.Diff(r.db(), baseTree, newTree, pathpattern.MustCompile("/**"))
		if err != nil {
			return nil, err
		}
		return r.toChangeEntries(treeChanges, dogma.DiffPatchToUpsert)
	})
}
