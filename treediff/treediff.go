// Package treediff implements C6: recursive tree enumeration and
// pairwise tree diffing over the object store built by C1, grounded on
// the same github.com/go-git/go-git/v5 object model the store itself
// uses — trees are decoded via object.GetTree rather
// than re-deriving the Git tree wire format by hand. Entry type
// (JSON/TEXT/DIRECTORY) is carried in the Git tree entry's file mode:
// regular (0100644) means TEXT, executable (0100755) means JSON, and a
// tree entry means DIRECTORY (see ModeForType and TypeForMode), since
// the Git object model has no native concept of our domain's entry
// types.
package treediff

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/pathpattern"
)

// Action tags one entry of a Pair diff
type Action int

const (
	Add Action = iota
	Delete
	Modify
)

func (a Action) String() string {
	switch a {
	case Add:
		return "ADD"
	case Delete:
		return "DELETE"
	case Modify:
		return "MODIFY"
	default:
		return "UNKNOWN"
	}
}

// Change is one entry of an ordered Pair-diff result.
type Change struct {
	Action  Action
	OldPath string
	NewPath string
	OldID   objectstore.Hash
	NewID   objectstore.Hash
	Type    dogma.EntryType
}

// WalkEntry is one entry of a Snapshot walk.
type WalkEntry struct {
	Path string
	ID   objectstore.Hash
	Type dogma.EntryType
}

// ModeForType maps an entry's domain type onto the Git file mode used
// to persist it, the inverse of TypeForMode.
func ModeForType(t dogma.EntryType) filemode.FileMode {
	switch t {
	case dogma.EntryTypeJSON:
		return filemode.Executable
	case dogma.EntryTypeDirectory:
		return filemode.Dir
	default:
		return filemode.Regular
	}
}

// TypeForMode recovers the domain entry type from a Git tree entry
// mode, the inverse of ModeForType.
func TypeForMode(m filemode.FileMode) dogma.EntryType {
	switch m {
	case filemode.Dir:
		return dogma.EntryTypeDirectory
	case filemode.Executable:
		return dogma.EntryTypeJSON
	default:
		return dogma.EntryTypeText
	}
}

// loadTree decodes the tree object at id, returning its entries sorted
// lexicographically by name. A zero id denotes an empty tree.
func loadTree(store *objectstore.Store, id objectstore.Hash) ([]object.TreeEntry, error) {
	if id.IsZero() {
		return nil, nil
	}
	tree, err := object.GetTree(store.Storer(), id)
	if err != nil {
		return nil, dogmaerr.Wrap(dogmaerr.StorageCorruption, "decode tree "+id.String(), err)
	}
	entries := append([]object.TreeEntry(nil), tree.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Walk performs a Snapshot walk of the tree rooted at id, yielding
// entries in lexicographic path order. A zero id denotes an empty
// tree. Directory entries are only emitted when pattern is non-nil and
// pattern.MatchesDirectory names them explicitly, matching the rule
// that DIRECTORY entries are never incidental; a nil pattern yields
// file entries only. File
// entries are always emitted, left for the caller to filter further by
// pattern.Matches.
func Walk(store *objectstore.Store, id objectstore.Hash, pattern *pathpattern.Matcher) ([]WalkEntry, error) {
	var out []WalkEntry
	if err := walkInto(store, id, dogma.Root, pattern, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkInto(store *objectstore.Store, id objectstore.Hash, prefix string, pattern *pathpattern.Matcher, out *[]WalkEntry) error {
	entries, err := loadTree(store, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := joinPath(prefix, e.Name)
		typ := TypeForMode(e.Mode)
		if typ == dogma.EntryTypeDirectory {
			if pattern != nil && pattern.MatchesDirectory(path) {
				*out = append(*out, WalkEntry{Path: path, ID: e.Hash, Type: typ})
			}
			if err := walkInto(store, e.Hash, path, pattern, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, WalkEntry{Path: path, ID: e.Hash, Type: typ})
	}
	return nil
}

// Diff performs a Pair diff between the trees rooted at from and to
// (either may be the zero hash for a whole-tree add/remove), returning
// an ordered sequence of Change entries. A path-pattern filter, when
// non-nil, prunes entries whose path does not match.
func Diff(store *objectstore.Store, from, to objectstore.Hash, pattern *pathpattern.Matcher) ([]Change, error) {
	var out []Change
	if err := diffInto(store, from, to, dogma.Root, pattern, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffInto(store *objectstore.Store, fromID, toID objectstore.Hash, prefix string, pattern *pathpattern.Matcher, out *[]Change) error {
	fromEntries, err := loadTree(store, fromID)
	if err != nil {
		return err
	}
	toEntries, err := loadTree(store, toID)
	if err != nil {
		return err
	}
	fromByName := make(map[string]object.TreeEntry, len(fromEntries))
	for _, e := range fromEntries {
		fromByName[e.Name] = e
	}
	toByName := make(map[string]object.TreeEntry, len(toEntries))
	for _, e := range toEntries {
		toByName[e.Name] = e
	}

	names := make(map[string]struct{}, len(fromEntries)+len(toEntries))
	for _, e := range fromEntries {
		names[e.Name] = struct{}{}
	}
	for _, e := range toEntries {
		names[e.Name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		path := joinPath(prefix, name)
		fromEntry, hasFrom := fromByName[name]
		toEntry, hasTo := toByName[name]

		switch {
		case hasFrom && !hasTo:
			if err := emitWhole(store, Delete, path, fromEntry, pattern, out); err != nil {
				return err
			}
		case !hasFrom && hasTo:
			if err := emitWhole(store, Add, path, toEntry, pattern, out); err != nil {
				return err
			}
		case fromEntry.Mode == filemode.Dir && toEntry.Mode == filemode.Dir:
			if err := diffInto(store, fromEntry.Hash, toEntry.Hash, path, pattern, out); err != nil {
				return err
			}
		case fromEntry.Mode == filemode.Dir || toEntry.Mode == filemode.Dir:
			// A file/directory kind change: delete the old subtree, add the new.
			if err := emitWhole(store, Delete, path, fromEntry, pattern, out); err != nil {
				return err
			}
			if err := emitWhole(store, Add, path, toEntry, pattern, out); err != nil {
				return err
			}
		case fromEntry.Mode != toEntry.Mode:
			appendChange(out, Change{Action: Delete, OldPath: path, OldID: fromEntry.Hash, Type: TypeForMode(fromEntry.Mode)}, pattern)
			appendChange(out, Change{Action: Add, NewPath: path, NewID: toEntry.Hash, Type: TypeForMode(toEntry.Mode)}, pattern)
		case fromEntry.Hash != toEntry.Hash:
			appendChange(out, Change{Action: Modify, OldPath: path, NewPath: path, OldID: fromEntry.Hash, NewID: toEntry.Hash, Type: TypeForMode(toEntry.Mode)}, pattern)
		}
	}
	return nil
}

// emitWhole recursively emits an ADD or DELETE for every file under
// entry (a single file, or every leaf of a directory subtree).
func emitWhole(store *objectstore.Store, action Action, path string, entry object.TreeEntry, pattern *pathpattern.Matcher, out *[]Change) error {
	if entry.Mode != filemode.Dir {
		c := Change{Action: action, Type: TypeForMode(entry.Mode)}
		if action == Delete {
			c.OldPath, c.OldID = path, entry.Hash
		} else {
			c.NewPath, c.NewID = path, entry.Hash
		}
		appendChange(out, c, pattern)
		return nil
	}
	children, err := loadTree(store, entry.Hash)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := emitWhole(store, action, joinPath(path, child.Name), child, pattern, out); err != nil {
			return err
		}
	}
	return nil
}

func appendChange(out *[]Change, c Change, pattern *pathpattern.Matcher) {
	path := c.NewPath
	if path == "" {
		path = c.OldPath
	}
	if pattern != nil && !pattern.Matches(path) {
		return
	}
	*out = append(*out, c)
}

func joinPath(prefix, name string) string {
	if prefix == dogma.Root {
		return dogma.Root + name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
