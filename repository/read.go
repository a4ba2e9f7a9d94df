package repository

import (
	"context"
	"encoding/json"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/jsonpatch"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/pathpattern"
	"github.com/cdogma/dogma-core/resultcache"
	"github.com/cdogma/dogma-core/textpatch"
	"github.com/cdogma/dogma-core/treediff"
)

// Find returns every entry matching pattern at rev, capped at
// maxEntries (0 uses the configured default). Results are cached by
// absolute revision.
func (r *Repository) Find(ctx context.Context, rev dogma.Revision, pattern string, maxEntries int) ([]dogma.Entry, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() ([]dogma.Entry, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return nil, err
		}
		abs, empty, err := r.normalizeForFindLocked(rev)
		if err != nil {
			return nil, err
		}
		if empty {
			return nil, nil
		}
		if maxEntries <= 0 {
			maxEntries = r.cfg.MaxEntriesPerFind
		}
		matcher, err := pathpattern.Compile(pattern)
		if err != nil {
			return nil, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
		}

		key := resultcache.Key{Repo: r.name, Op: "find", ToRev: abs, Pattern: matcher.String(), MaxEntries: maxEntries}
		v, err := r.cache.Load(ctx, key, func(context.Context) (any, int64, error) {
			entries, err := r.findAtLocked(abs, matcher, maxEntries)
			if err != nil {
				return nil, 0, err
			}
			return entries, int64(len(entries)), nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dogma.Entry), nil
	})
}

func (r *Repository) findAtLocked(abs int, matcher *pathpattern.Matcher, maxEntries int) ([]dogma.Entry, error) {
	tree, err := r.treeAt(abs)
	if err != nil {
		return nil, err
	}
	walked, err := treediff.Walk(r.db(), tree, matcher)
	if err != nil {
		return nil, err
	}
	var out []dogma.Entry
	if matcher.MatchesDirectory(dogma.Root) {
		out = append(out, dogma.Entry{Revision: abs, Path: dogma.Root, Type: dogma.EntryTypeDirectory})
		if len(out) >= maxEntries {
			return out, nil
		}
	}
	for _, w := range walked {
		if w.Type != dogma.EntryTypeDirectory && !matcher.Matches(w.Path) {
			continue
		}
		entry, err := r.readEntry(abs, w)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
		if len(out) >= maxEntries {
			break
		}
	}
	return out, nil
}

func (r *Repository) readEntry(rev int, w treediff.WalkEntry) (dogma.Entry, error) {
	if w.Type == dogma.EntryTypeDirectory {
		return dogma.Entry{Revision: rev, Path: w.Path, Type: w.Type}, nil
	}
	_, data, err := r.db().ReadAll(w.ID)
	if err != nil {
		return dogma.Entry{}, err
	}
	if w.Type == dogma.EntryTypeJSON {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return dogma.Entry{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode JSON entry "+w.Path, err)
		}
		return dogma.Entry{Revision: rev, Path: w.Path, Type: w.Type, Content: v}, nil
	}
	return dogma.Entry{Revision: rev, Path: w.Path, Type: w.Type, Content: string(data)}, nil
}

// Get is Find narrowed to a single exact path, raising
// dogmaerr.EntryNotFound when absent.
func (r *Repository) Get(ctx context.Context, rev dogma.Revision, path string) (dogma.Entry, error) {
	if err := dogma.ValidatePath(path); err != nil {
		return dogma.Entry{}, err
	}
	entries, err := r.Find(ctx, rev, path, 1)
	if err != nil {
		return dogma.Entry{}, err
	}
	if len(entries) == 0 {
		return dogma.Entry{}, dogmaerr.Newf(dogmaerr.EntryNotFound, "no entry at %q", path)
	}
	return entries[0], nil
}

// History returns the commits in [from, to] whose change-set matches
// pattern, capped at maxCommits, in descending revision order when
// from >= to and ascending otherwise. The initial commit (revision 1)
// counts as matching an all-matching pattern even though it carries no
// diff.
func (r *Repository) History(ctx context.Context, from, to dogma.Revision, pattern string, maxCommits int) ([]dogma.Commit, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() ([]dogma.Commit, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return nil, err
		}
		fromAbs, err := r.normalizeLocked(from)
		if err != nil {
			return nil, err
		}
		toAbs, err := r.normalizeLocked(to)
		if err != nil {
			return nil, err
		}
		descending := fromAbs >= toAbs
		lo, hi := fromAbs, toAbs
		if lo > hi {
			lo, hi = hi, lo
		}
		if maxCommits <= 0 {
			maxCommits = r.cfg.MaxCommitsPerHistory
		}
		matcher, err := pathpattern.Compile(pattern)
		if err != nil {
			return nil, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
		}

		key := resultcache.Key{Repo: r.name, Op: "history", FromRev: lo, ToRev: hi, Pattern: matcher.String(), MaxEntries: maxCommits, Descending: descending}
		v, err := r.cache.Load(ctx, key, func(context.Context) (any, int64, error) {
			commits, err := r.historyLocked(lo, hi, descending, matcher, maxCommits)
			if err != nil {
				return nil, 0, err
			}
			return commits, int64(len(commits)), nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dogma.Commit), nil
	})
}

func (r *Repository) historyLocked(lo, hi int, descending bool, matcher *pathpattern.Matcher, maxCommits int) ([]dogma.Commit, error) {
	var out []dogma.Commit
	collect := func(rev int) (bool, error) {
		matches, err := r.commitMatchesLocked(rev, matcher)
		if err != nil {
			return false, err
		}
		if !matches {
			return false, nil
		}
		c, err := r.commitAt(rev)
		if err != nil {
			return false, err
		}
		out = append(out, c)
		return len(out) >= maxCommits, nil
	}
	if descending {
		for rev := hi; rev >= lo; rev-- {
			full, err := collect(rev)
			if err != nil {
				return nil, err
			}
			if full {
				break
			}
		}
		return out, nil
	}
	for rev := lo; rev <= hi; rev++ {
		full, err := collect(rev)
		if err != nil {
			return nil, err
		}
		if full {
			break
		}
	}
	return out, nil
}

func (r *Repository) commitMatchesLocked(rev int, matcher *pathpattern.Matcher) (bool, error) {
	if rev == 1 {
		return matcher.IsMatchAll() || matcher.MatchesDirectory(dogma.Root), nil
	}
	parentTree, err := r.treeAt(rev - 1)
	if err != nil {
		return false, err
	}
	tree, err := r.treeAt(rev)
	if err != nil {
		return false, err
	}
	changes, err := treediff.Diff(r.db(), parentTree, tree, matcher)
	if err != nil {
		return false, err
	}
	return len(changes) > 0, nil
}

// Diff returns the change-set between from and to (either order) over
// pattern. A request with from > to naturally yields the reverse diff
// since tree hashes are passed through unreordered. mode selects
// whether a modified entry is reported as a patch (DiffNormal) or a
// full upsert (DiffPatchToUpsert).
func (r *Repository) Diff(ctx context.Context, from, to dogma.Revision, pattern string, mode dogma.DiffMode) ([]dogma.ChangeEntry, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() ([]dogma.ChangeEntry, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return nil, err
		}
		fromAbs, err := r.normalizeLocked(from)
		if err != nil {
			return nil, err
		}
		toAbs, err := r.normalizeLocked(to)
		if err != nil {
			return nil, err
		}
		matcher, err := pathpattern.Compile(pattern)
		if err != nil {
			return nil, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
		}

		key := resultcache.Key{Repo: r.name, Op: "diff", FromRev: fromAbs, ToRev: toAbs, Pattern: matcher.String(), Mode: int(mode)}
		v, err := r.cache.Load(ctx, key, func(context.Context) (any, int64, error) {
			entries, err := r.diffLocked(fromAbs, toAbs, matcher, mode)
			if err != nil {
				return nil, 0, err
			}
			return entries, int64(len(entries)), nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dogma.ChangeEntry), nil
	})
}

func (r *Repository) diffLocked(fromAbs, toAbs int, matcher *pathpattern.Matcher, mode dogma.DiffMode) ([]dogma.ChangeEntry, error) {
	fromTree, err := r.treeAt(fromAbs)
	if err != nil {
		return nil, err
	}
	toTree, err := r.treeAt(toAbs)
	if err != nil {
		return nil, err
	}
	changes, err := treediff.Diff(r.db(), fromTree, toTree, matcher)
	if err != nil {
		return nil, err
	}
	return r.toChangeEntries(changes, mode)
}

// toChangeEntries converts a raw tree-diff change sequence into the
// public path -> Change list. Since C1 is configured with no rename
// detection, the tree differ itself never emits a rename: the object
// store only ever reports content-addressed ADD/DELETE pairs. The
// façade recovers renames the way any content-addressed store makes
// free: a DELETE and an ADD sharing the identical blob hash are the
// same content at a new path, so they are folded into a single RENAME
// entry. When the content also changed, the tree diff instead reports
// the pair as a plain DELETE+ADD with different hashes, which is
// reported as a remove of the old path plus an upsert at the new path;
// no RENAME entry is emitted for a rename whose content changed.
func (r *Repository) toChangeEntries(changes []treediff.Change, mode dogma.DiffMode) ([]dogma.ChangeEntry, error) {
	deletesByHash := make(map[objectstore.Hash][]treediff.Change)
	for _, c := range changes {
		if c.Action == treediff.Delete {
			deletesByHash[c.OldID] = append(deletesByHash[c.OldID], c)
		}
	}
	consumedDelete := make(map[string]bool)

	out := make([]dogma.ChangeEntry, 0, len(changes))
	for _, c := range changes {
		switch c.Action {
		case treediff.Delete:
			if consumedDelete[c.OldPath] {
				continue
			}
			out = append(out, dogma.ChangeEntry{Kind: dogma.ChangeEntryRemove, Path: c.OldPath})
		case treediff.Add:
			if pending := deletesByHash[c.NewID]; len(pending) > 0 {
				d := pending[0]
				deletesByHash[c.NewID] = pending[1:]
				consumedDelete[d.OldPath] = true
				out = append(out, dogma.ChangeEntry{Kind: dogma.ChangeEntryRename, Path: d.OldPath, NewPath: c.NewPath})
				continue
			}
			content, err := r.readContent(c.NewID, c.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, dogma.ChangeEntry{Kind: upsertKindFor(c.Type), Path: c.NewPath, Content: content})
		case treediff.Modify:
			entry, err := r.toModifyEntry(c, mode)
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// toModifyEntry reports a single MODIFY change. DiffPatchToUpsert
// (preview_diff, commit(direct=true)) reports the new content
// outright, since the caller re-applies the result as a plain upsert.
// DiffNormal instead reports how the entry changed: an RFC 6902 patch
// for JSON, a unified diff for text.
func (r *Repository) toModifyEntry(c treediff.Change, mode dogma.DiffMode) (dogma.ChangeEntry, error) {
	newContent, err := r.readContent(c.NewID, c.Type)
	if err != nil {
		return dogma.ChangeEntry{}, err
	}
	if mode == dogma.DiffPatchToUpsert {
		return dogma.ChangeEntry{Kind: upsertKindFor(c.Type), Path: c.NewPath, Content: newContent}, nil
	}
	oldContent, err := r.readContent(c.OldID, c.Type)
	if err != nil {
		return dogma.ChangeEntry{}, err
	}
	if c.Type == dogma.EntryTypeJSON {
		patch := jsonpatch.Generate(oldContent, newContent, jsonpatch.RFC6902)
		return dogma.ChangeEntry{Kind: dogma.ChangeEntryApplyJSONPatch, Path: c.NewPath, Patch: patch}, nil
	}
	oldText, _ := oldContent.(string)
	newText, _ := newContent.(string)
	diff := textpatch.GenerateUnifiedDiff(oldText, newText, textpatch.DefaultContext)
	return dogma.ChangeEntry{Kind: dogma.ChangeEntryApplyTextPatch, Path: c.NewPath, Diff: diff}, nil
}

func upsertKindFor(t dogma.EntryType) dogma.ChangeEntryKind {
	if t == dogma.EntryTypeJSON {
		return dogma.ChangeEntryUpsertJSON
	}
	return dogma.ChangeEntryUpsertText
}

func (r *Repository) readContent(id objectstore.Hash, typ dogma.EntryType) (any, error) {
	_, data, err := r.db().ReadAll(id)
	if err != nil {
		return nil, err
	}
	if typ == dogma.EntryTypeJSON {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode JSON change content", err)
		}
		return v, nil
	}
	return string(data), nil
}

// FindLatestRevision returns the head revision if any commit in
// (lastKnown, head] touched a path matching pattern, or 0 (no error) if
// not. lastKnown is a plain absolute revision a caller remembers, not a
// dogma.Revision: 0 is a valid sentinel meaning "nothing observed yet",
// distinct from dogma.Revision(0)'s "current head" — a client polling
// this call has no dogma.Revision to normalize, only the number it was
// handed last time. If no entry at head matches pattern and
// errorIfMissing is set, it raises dogmaerr.EntryNotFound instead of
// returning 0.
func (r *Repository) FindLatestRevision(ctx context.Context, lastKnown int, pattern string, errorIfMissing bool) (int, error) {
	ctx, cancel := clampContext(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return submit(ctx, r.pool, func() (int, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return 0, err
		}
		head, _ := r.idx.Head()
		matcher, err := pathpattern.Compile(pattern)
		if err != nil {
			return 0, dogmaerr.Wrap(dogmaerr.EntryNotFound, "invalid path pattern", err)
		}

		_, found, err := r.latestMatchingRevisionLocked(lastKnown, head, matcher)
		if err != nil {
			return 0, err
		}
		if found {
			return head, nil
		}
		if errorIfMissing {
			if ok, err := r.headMatchesLocked(head, matcher); err != nil {
				return 0, err
			} else if !ok {
				return 0, dogmaerr.Newf(dogmaerr.EntryNotFound, "no entry at revision %d matches %q", head, pattern)
			}
		}
		return 0, nil
	})
}

// latestMatchingRevisionLocked scans (lastKnown, head] in descending
// order for the newest commit whose change-set matches pattern.
// lastKnown = 0 needs no special case here: the loop already covers
// the full [1, head] range in that case, since revision 1 is always >
// 0. This linear scan terminates on the very first (i.e. newest) match,
// which is the common case for a client that polls right after a push.
func (r *Repository) latestMatchingRevisionLocked(lastKnown, head int, matcher *pathpattern.Matcher) (int, bool, error) {
	for rev := head; rev > lastKnown; rev-- {
		matches, err := r.commitMatchesLocked(rev, matcher)
		if err != nil {
			return 0, false, err
		}
		if matches {
			return rev, true, nil
		}
	}
	return 0, false, nil
}

func (r *Repository) headMatchesLocked(head int, matcher *pathpattern.Matcher) (bool, error) {
	if head == 0 {
		return matcher.IsMatchAll(), nil
	}
	tree, err := r.treeAt(head)
	if err != nil {
		return false, err
	}
	walked, err := treediff.Walk(r.db(), tree, matcher)
	if err != nil {
		return false, err
	}
	for _, w := range walked {
		if w.Type == dogma.EntryTypeDirectory || matcher.Matches(w.Path) {
			return true, nil
		}
	}
	return false, nil
}
