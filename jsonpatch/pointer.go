package jsonpatch

import (
	"strconv"
	"strings"

	"github.com/cdogma/dogma-core/dogmaerr"
)

// splitPointer parses an RFC-6901 JSON pointer into its unescaped
// tokens. "" denotes the document root (zero tokens).
func splitPointer(ptr string) ([]string, error) {
	if ptr == "" {
		return nil, nil
	}
	if ptr[0] != '/' {
		return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "invalid JSON pointer %q", ptr)
	}
	raw := strings.Split(ptr[1:], "/")
	parts := make([]string, len(raw))
	for i, p := range raw {
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		parts[i] = p
	}
	return parts, nil
}

// getAt walks doc following parts, returning (value, true) on success.
func getAt(doc any, parts []string) (any, bool) {
	cur := doc
	for _, p := range parts {
		switch v := cur.(type) {
		case map[string]any:
			val, ok := v[p]
			if !ok {
				return nil, false
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// pointerGet returns the value at path, or a JsonPatchError if absent.
func pointerGet(doc any, path string) (any, error) {
	parts, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return doc, nil
	}
	val, ok := getAt(doc, parts)
	if !ok {
		return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "path %q not found", path)
	}
	return val, nil
}

// leafFn mutates the direct container (map or slice) holding the
// target of an operation and returns the (possibly reallocated)
// container.
type leafFn func(parent any, key string) (any, error)

// applyAtPath walks doc to the parent of the final pointer token,
// applies fn there, and propagates any reallocation (a slice insert or
// delete produces a new slice header) back up through every ancestor
// container.
func applyAtPath(doc any, parts []string, fn leafFn) (any, error) {
	if len(parts) == 1 {
		return fn(doc, parts[0])
	}
	head, rest := parts[0], parts[1:]
	switch v := doc.(type) {
	case map[string]any:
		child, ok := v[head]
		if !ok {
			return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "path segment %q not found", head)
		}
		newChild, err := applyAtPath(child, rest, fn)
		if err != nil {
			return nil, err
		}
		v[head] = newChild
		return v, nil
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "array index %q out of range", head)
		}
		newChild, err := applyAtPath(v[idx], rest, fn)
		if err != nil {
			return nil, err
		}
		v[idx] = newChild
		return v, nil
	default:
		return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "path segment %q has no children", head)
	}
}

// addLeaf implements `add`: insert-or-replace on an object key,
// insert-with-shift (or append for N==len / "-") on an array.
func addLeaf(value any) leafFn {
	return func(parent any, key string) (any, error) {
		switch p := parent.(type) {
		case map[string]any:
			p[key] = value
			return p, nil
		case []any:
			if key == "-" {
				return append(p, value), nil
			}
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "invalid array index %q", key)
			}
			if idx < 0 || idx > len(p) {
				return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "array index %d exceeds length %d", idx, len(p))
			}
			out := make([]any, 0, len(p)+1)
			out = append(out, p[:idx]...)
			out = append(out, value)
			out = append(out, p[idx:]...)
			return out, nil
		default:
			return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "cannot add into non-container at %q", key)
		}
	}
}

// replaceLeaf implements `replace`: the target must already exist.
func replaceLeaf(value any) leafFn {
	return func(parent any, key string) (any, error) {
		switch p := parent.(type) {
		case map[string]any:
			if _, ok := p[key]; !ok {
				return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "replace target %q missing", key)
			}
			p[key] = value
			return p, nil
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(p) {
				return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "replace index %q out of range", key)
			}
			p[idx] = value
			return p, nil
		default:
			return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "cannot replace into non-container at %q", key)
		}
	}
}

// removeLeaf implements `remove` (mustExist=true) and
// `removeIfExists` (mustExist=false).
func removeLeaf(mustExist bool) leafFn {
	return func(parent any, key string) (any, error) {
		switch p := parent.(type) {
		case map[string]any:
			if _, ok := p[key]; !ok {
				if mustExist {
					return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "remove target %q missing", key)
				}
				return p, nil
			}
			delete(p, key)
			return p, nil
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(p) {
				if mustExist {
					return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "remove index %q out of range", key)
				}
				return p, nil
			}
			out := make([]any, 0, len(p)-1)
			out = append(out, p[:idx]...)
			out = append(out, p[idx+1:]...)
			return out, nil
		default:
			if mustExist {
				return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "cannot remove from non-container at %q", key)
			}
			return parent, nil
		}
	}
}

func pointerAdd(doc any, path string, value any) (any, error) {
	parts, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return value, nil
	}
	return applyAtPath(doc, parts, addLeaf(value))
}

func pointerReplace(doc any, path string, value any) (any, error) {
	parts, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return value, nil
	}
	return applyAtPath(doc, parts, replaceLeaf(value))
}

func pointerRemove(doc any, path string, mustExist bool) (any, error) {
	parts, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return applyAtPath(doc, parts, removeLeaf(mustExist))
}
