package staging

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
	"github.com/cdogma/dogma-core/objectstore"
	"github.com/cdogma/dogma-core/treediff"
)

// node is one directory level of the tree being built from the
// staging index; leaf is set only for file nodes.
type node struct {
	children map[string]*node
	leaf     *entry
}

func newNode() *node { return &node{children: make(map[string]*node)} }

// BuildTree writes the staging index's file entries as blob objects
// and assembles the resulting tree hierarchy, returning the root tree
// hash. An empty index yields an empty tree object.
func BuildTree(store *objectstore.Store, idx *Index) (objectstore.Hash, error) {
	root := newNode()
	for path, e := range idx.entries {
		segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
		cur := root
		for i, seg := range segs {
			if i == len(segs)-1 {
				child, ok := cur.children[seg]
				if !ok {
					child = newNode()
					cur.children[seg] = child
				}
				ev := e
				child.leaf = &ev
				continue
			}
			child, ok := cur.children[seg]
			if !ok {
				child = newNode()
				cur.children[seg] = child
			}
			cur = child
		}
	}
	return writeNode(store, root)
}

func writeNode(store *objectstore.Store, n *node) (objectstore.Hash, error) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		child := n.children[name]
		if child.leaf != nil {
			data, err := encodeBlob(*child.leaf)
			if err != nil {
				return objectstore.Hash{}, err
			}
			id, err := store.Put(objectstore.BlobObject, data)
			if err != nil {
				return objectstore.Hash{}, err
			}
			entries = append(entries, object.TreeEntry{Name: name, Mode: treediff.ModeForType(child.leaf.typ), Hash: id})
			continue
		}
		id, err := writeNode(store, child)
		if err != nil {
			return objectstore.Hash{}, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: id})
	}
	return persistTree(store, entries)
}

func encodeBlob(e entry) ([]byte, error) {
	if e.typ == dogma.EntryTypeJSON {
		data, err := json.Marshal(e.json)
		if err != nil {
			return nil, dogmaerr.Wrap(dogmaerr.JsonPatchError, "encode JSON blob", err)
		}
		return data, nil
	}
	return []byte(e.text), nil
}

func persistTree(store *objectstore.Store, entries []object.TreeEntry) (objectstore.Hash, error) {
	tree := &object.Tree{Entries: entries}
	obj := store.Storer().NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return objectstore.Hash{}, dogmaerr.Wrap(dogmaerr.IOError, "encode tree", err)
	}
	id, err := store.Storer().SetEncodedObject(obj)
	if err != nil {
		return objectstore.Hash{}, dogmaerr.Wrap(dogmaerr.IOError, "persist tree", err)
	}
	return id, nil
}
