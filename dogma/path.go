// Package dogma holds the value types shared by every storage-core
// component: entity paths, types, revisions, entries, commits, and
// write-side changes.
package dogma

import (
	"strings"
	"unicode/utf8"

	"github.com/cdogma/dogma-core/dogmaerr"
)

// Root is the canonical root directory path.
const Root = "/"

// ValidatePath checks a path against the Entity Path rules: starts with
// "/", UTF-8, no "\r", and does not end with "/" unless it is the root.
func ValidatePath(path string) error {
	if path == "" || path[0] != '/' {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "path must start with '/': %q", path)
	}
	if strings.ContainsRune(path, '\r') {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "path must not contain CR: %q", path)
	}
	if !utf8.ValidString(path) {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "path must be valid UTF-8: %q", path)
	}
	if path != Root && strings.HasSuffix(path, "/") {
		return dogmaerr.Newf(dogmaerr.EntryNotFound, "path must not end with '/': %q", path)
	}
	return nil
}

// IsDirectoryPrefixOf reports whether child is strictly inside the
// subtree rooted at prefix (prefix itself is not a match).
func IsDirectoryPrefixOf(prefix, child string) bool {
	if prefix == Root {
		return child != Root
	}
	return strings.HasPrefix(child, prefix+"/")
}

// JoinUnderPrefix rewrites a path that lives under oldPrefix so that it
// instead lives under newPrefix, preserving the remaining suffix. Used
// by RENAME of a directory subtree.
func JoinUnderPrefix(oldPrefix, newPrefix, path string) string {
	if path == oldPrefix {
		return newPrefix
	}
	suffix := strings.TrimPrefix(path, oldPrefix+"/")
	if newPrefix == Root {
		return Root + suffix
	}
	return newPrefix + "/" + suffix
}

// ParentOf returns the parent directory path of path, or Root if path is
// already a top-level entry.
func ParentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return Root
	}
	return path[:idx]
}
