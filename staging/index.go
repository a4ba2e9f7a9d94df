// Package staging implements C7: a copy-on-write staging index built
// from a base tree, sequential change-list application against it, and
// construction of the resulting tree/commit objects via objectstore
// (C1), built on github.com/go-git/go-git/v5's object.Tree/object.Commit
// encoders.
package staging

import (
	"encoding/json"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/jsonpatch"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/textpatch"
	"github.com/cdogma/dogma-core/treediff"
)

// entry is one file held by the staging index.
type entry struct {
	typ  dogma.EntryType
	json any
	text string
}

// Index is an in-memory, copy-on-write snapshot of a tree's file
// entries, keyed by full path. Applying a change-list never touches
// the object store until BuildTree is called on the result, so a failed
// commit leaves the live tree untouched.
type Index struct {
	entries   map[string]entry
	editCount int
}

// Load builds a staging index from the tree rooted at base.
func Load(store *objectstore.Store, base objectstore.Hash) (*Index, error) {
	idx := &Index{entries: make(map[string]entry)}
	walked, err := treediff.Walk(store, base, nil)
	if err != nil {
		return nil, err
	}
	for _, w := range walked {
		if w.Type == dogma.EntryTypeDirectory {
			continue
		}
		_, data, err := store.ReadAll(w.ID)
		if err != nil {
			return nil, err
		}
		e, err := decodeBlob(w.Type, data)
		if err != nil {
			return nil, err
		}
		idx.entries[w.Path] = e
	}
	return idx, nil
}

func decodeBlob(typ dogma.EntryType, data []byte) (entry, error) {
	switch typ {
	case dogma.EntryTypeJSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return entry{}, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode JSON blob", err)
		}
		return entry{typ: typ, json: v}, nil
	default:
		return entry{typ: typ, text: textpatch.Sanitize(string(data))}, nil
	}
}

// EditCount reports how many net edits have been applied so far.
func (idx *Index) EditCount() int { return idx.editCount }

// Apply applies a single change to the index.
func (idx *Index) Apply(change dogma.Change) error {
	switch change.Kind {
	case dogma.ChangeUpsertJSON:
		return idx.upsertJSON(change.Path, change.JSON)
	case dogma.ChangeUpsertText:
		return idx.upsertText(change.Path, change.Text)
	case dogma.ChangeRemove:
		return idx.remove(change.Path)
	case dogma.ChangeRename:
		return idx.rename(change.Path, change.NewPath)
	case dogma.ChangeApplyJSONPatch:
		return idx.applyJSONPatch(change.Path, change.JSONPatch)
	case dogma.ChangeApplyTextPatch:
		return idx.applyTextPatch(change.Path, change.UnifiedDiff)
	default:
		return dogmaerr.Newf(dogmaerr.JsonPatchError, "unknown change kind %v", change.Kind)
	}
}

func (idx *Index) upsertJSON(path string, value any) error {
	if err := dogma.ValidatePath(path); err != nil {
		return err
	}
	if cur, ok := idx.entries[path]; ok && cur.typ == dogma.EntryTypeJSON && jsonpatch.Equivalent(cur.json, value) {
		return nil
	}
	idx.entries[path] = entry{typ: dogma.EntryTypeJSON, json: value}
	idx.editCount++
	return nil
}

func (idx *Index) upsertText(path, text string) error {
	if err := dogma.ValidatePath(path); err != nil {
		return err
	}
	sanitized := textpatch.Sanitize(text)
	if cur, ok := idx.entries[path]; ok && cur.typ == dogma.EntryTypeText && cur.text == sanitized {
		return nil
	}
	idx.entries[path] = entry{typ: dogma.EntryTypeText, text: sanitized}
	idx.editCount++
	return nil
}

func (idx *Index) remove(path string) error {
	if _, ok := idx.entries[path]; ok {
		delete(idx.entries, path)
		idx.editCount++
		return nil
	}
	removed := 0
	for p := range idx.entries {
		if dogma.IsDirectoryPrefixOf(path, p) {
			delete(idx.entries, p)
			removed++
		}
	}
	if removed == 0 {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "no entry at or under %q", path)
	}
	idx.editCount += removed
	return nil
}

func (idx *Index) rename(oldPath, newPath string) error {
	if _, ok := idx.entries[newPath]; ok {
		return dogmaerr.Newf(dogmaerr.ChangeConflict, "rename destination %q already exists", newPath)
	}
	for p := range idx.entries {
		if dogma.IsDirectoryPrefixOf(newPath, p) {
			return dogmaerr.Newf(dogmaerr.ChangeConflict, "rename destination prefix %q already exists", newPath)
		}
	}
	if e, ok := idx.entries[oldPath]; ok {
		delete(idx.entries, oldPath)
		idx.entries[newPath] = e
		idx.editCount++
		return nil
	}
	moved := make(map[string]entry)
	for p, e := range idx.entries {
		if dogma.IsDirectoryPrefixOf(oldPath, p) {
			moved[dogma.JoinUnderPrefix(oldPath, newPath, p)] = e
		}
	}
	if len(moved) == 0 {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "no entry at or under %q", oldPath)
	}
	for p := range idx.entries {
		if dogma.IsDirectoryPrefixOf(oldPath, p) {
			delete(idx.entries, p)
		}
	}
	for p, e := range moved {
		idx.entries[p] = e
	}
	idx.editCount += len(moved)
	return nil
}

func (idx *Index) applyJSONPatch(path string, patch []dogma.PatchOp) error {
	if err := dogma.ValidatePath(path); err != nil {
		return err
	}
	var current any
	if cur, ok := idx.entries[path]; ok {
		current = cur.json
	}
	// Apply mutates containers in place, so patch a deep copy and keep
	// current intact for the no-op comparison below.
	var working any
	if current != nil {
		data, err := json.Marshal(current)
		if err != nil {
			return dogmaerr.Wrap(dogmaerr.JsonPatchError, "copy JSON entry "+path, err)
		}
		if err := json.Unmarshal(data, &working); err != nil {
			return dogmaerr.Wrap(dogmaerr.JsonPatchError, "copy JSON entry "+path, err)
		}
	}
	next, err := jsonpatch.Apply(working, patch)
	if err != nil {
		return err
	}
	if jsonpatch.Equivalent(current, next) {
		return nil
	}
	idx.entries[path] = entry{typ: dogma.EntryTypeJSON, json: next}
	idx.editCount++
	return nil
}

func (idx *Index) applyTextPatch(path, unifiedDiff string) error {
	if err := dogma.ValidatePath(path); err != nil {
		return err
	}
	var current string
	if cur, ok := idx.entries[path]; ok {
		current = cur.text
	}
	next, err := textpatch.Apply(current, unifiedDiff)
	if err != nil {
		return err
	}
	next = textpatch.Sanitize(next)
	if current == next {
		return nil
	}
	idx.entries[path] = entry{typ: dogma.EntryTypeText, text: next}
	idx.editCount++
	return nil
}
