package jsonpatch

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cdogma/dogma-core/dogma"
)

// unchangedEntry records a subtree that is identical (numerically
// tolerant, key-order-insensitive) between source and target at the
// same JSON pointer.
type unchangedEntry struct {
	Pointer string
	Value   any
}

// Generate produces a patch that, applied to source, yields target.
func Generate(source, target any, mode Mode) []dogma.PatchOp {
	if Equivalent(source, target) {
		return nil
	}
	unchanged := collectUnchanged(source, target)
	var ops []dogma.PatchOp
	generateAt("", source, target, mode, unchanged, &ops)
	return ops
}

func generateAt(path string, source, target any, mode Mode, unchanged []unchangedEntry, ops *[]dogma.PatchOp) {
	if Equivalent(source, target) {
		return
	}

	sm, sIsMap := source.(map[string]any)
	tm, tIsMap := target.(map[string]any)
	if sIsMap && tIsMap {
		generateObject(path, sm, tm, mode, unchanged, ops)
		return
	}

	sa, sIsArr := source.([]any)
	ta, tIsArr := target.([]any)
	if sIsArr && tIsArr {
		generateArray(path, sa, ta, mode, unchanged, ops)
		return
	}

	emitReplace(path, source, target, mode, ops)
}

func generateObject(path string, sm, tm map[string]any, mode Mode, unchanged []unchangedEntry, ops *[]dogma.PatchOp) {
	var removed, added, common []string
	for k := range sm {
		if _, ok := tm[k]; ok {
			common = append(common, k)
		} else {
			removed = append(removed, k)
		}
	}
	for k := range tm {
		if _, ok := sm[k]; !ok {
			added = append(added, k)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	for _, k := range removed {
		*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpRemove, Path: joinPointer(path, k)})
	}
	for _, k := range added {
		emitAdd(joinPointer(path, k), tm[k], unchanged, ops)
	}
	for _, k := range common {
		generateAt(joinPointer(path, k), sm[k], tm[k], mode, unchanged, ops)
	}
}

func generateArray(path string, sa, ta []any, mode Mode, unchanged []unchangedEntry, ops *[]dogma.PatchOp) {
	k := len(sa)
	if len(ta) < k {
		k = len(ta)
	}
	for i := 0; i < len(sa)-k; i++ {
		*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpRemove, Path: joinPointer(path, strconv.Itoa(k))})
	}
	for i := 0; i < k; i++ {
		generateAt(joinPointer(path, strconv.Itoa(i)), sa[i], ta[i], mode, unchanged, ops)
	}
	for i := k; i < len(ta); i++ {
		emitAdd(joinPointer(path, "-"), ta[i], unchanged, ops)
	}
}

func emitAdd(path string, value any, unchanged []unchangedEntry, ops *[]dogma.PatchOp) {
	if isContainer(value) {
		for _, u := range unchanged {
			if Equivalent(u.Value, value) {
				*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpCopy, From: u.Pointer, Path: path})
				return
			}
		}
	}
	*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpAdd, Path: path, Value: value})
}

func emitReplace(path string, source, target any, mode Mode, ops *[]dogma.PatchOp) {
	if mode == SAFE {
		*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpSafeReplace, Path: path, OldValue: source, Value: target})
		return
	}
	*ops = append(*ops, dogma.PatchOp{Op: dogma.PatchOpReplace, Path: path, Value: target})
}

// collectUnchanged walks source and target together, recording every
// pointer where the two sides hold an equivalent value. Equivalent
// subtrees are not descended into further — the whole subtree is
// unchanged — giving Generate candidate `copy` sources when emitting
// additions.
func collectUnchanged(source, target any) []unchangedEntry {
	var out []unchangedEntry
	var walk func(path string, s, t any)
	walk = func(path string, s, t any) {
		if Equivalent(s, t) {
			out = append(out, unchangedEntry{Pointer: path, Value: s})
			return
		}
		if sm, ok := s.(map[string]any); ok {
			if tm, ok := t.(map[string]any); ok {
				for k, sv := range sm {
					if tv, ok := tm[k]; ok {
						walk(joinPointer(path, k), sv, tv)
					}
				}
			}
			return
		}
		if sa, ok := s.([]any); ok {
			if ta, ok := t.([]any); ok {
				n := len(sa)
				if len(ta) < n {
					n = len(ta)
				}
				for i := 0; i < n; i++ {
					walk(joinPointer(path, strconv.Itoa(i)), sa[i], ta[i])
				}
			}
		}
	}
	walk("", source, target)
	sort.Slice(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}

func joinPointer(base, token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return base + "/" + token
}
