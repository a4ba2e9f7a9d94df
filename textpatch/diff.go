package textpatch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines kept around a hunk
// when generating a unified diff.
const DefaultContext = 3

// lineOp tags one line of the line-level diff.
type lineOp struct {
	kind diffmatchpatch.Operation
	text string
}

// GenerateUnifiedDiff computes a unified diff transforming oldText into
// newText, in the `@@ -l,c +l,c @@` form Apply consumes. Lines are
// diffed (not characters) via diffmatchpatch's lines-to-runes
// technique.
func GenerateUnifiedDiff(oldText, newText string, context int) string {
	if context <= 0 {
		context = DefaultContext
	}
	oldText = Sanitize(oldText)
	newText = Sanitize(newText)
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	for _, d := range diffs {
		for _, line := range splitKeepNone(d.Text) {
			ops = append(ops, lineOp{kind: d.Type, text: line})
		}
	}
	return renderHunks(ops, context)
}

// splitKeepNone splits s on "\n", dropping the trailing empty element
// produced when s ends in a newline (every line here does, since it
// comes from sanitized, newline-preserving text).
func splitKeepNone(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p + "\n"
	}
	return out
}

func renderHunks(ops []lineOp, context int) string {
	type hunk struct {
		oldStart, newStart   int
		oldCount, newCount   int
		lines                []string
	}
	var hunks []hunk
	oldLine, newLine := 1, 1

	i := 0
	for i < len(ops) {
		if ops[i].kind == diffmatchpatch.DiffEqual {
			oldLine++
			newLine++
			i++
			continue
		}
		// Found a change run; back up to include leading context.
		ctxStart := i
		for n := 0; n < context && ctxStart > 0 && ops[ctxStart-1].kind == diffmatchpatch.DiffEqual; n++ {
			ctxStart--
		}
		backed := i - ctxStart
		h := hunk{oldStart: oldLine - backed, newStart: newLine - backed}
		// Replay from ctxStart.
		ol, nl := oldLine-backed, newLine-backed
		j := ctxStart
		trailingEqual := 0
		for j < len(ops) {
			op := ops[j]
			if op.kind == diffmatchpatch.DiffEqual {
				trailingEqual++
				if trailingEqual > context {
					// Check whether another change run follows within the next
					// context ops; if not, close the hunk here. Op j is not
					// appended, so the hunk ends with exactly context equal lines.
					if !changeWithin(ops, j, context) {
						trailingEqual--
						break
					}
				}
				h.lines = append(h.lines, " "+op.text)
				h.oldCount++
				h.newCount++
				ol++
				nl++
				j++
				continue
			}
			trailingEqual = 0
			if op.kind == diffmatchpatch.DiffDelete {
				h.lines = append(h.lines, "-"+op.text)
				h.oldCount++
				ol++
			} else {
				h.lines = append(h.lines, "+"+op.text)
				h.newCount++
				nl++
			}
			j++
		}
		// Trim excess trailing equal lines beyond `context`.
		for trailingEqual > context {
			last := h.lines[len(h.lines)-1]
			if !strings.HasPrefix(last, " ") {
				break
			}
			h.lines = h.lines[:len(h.lines)-1]
			h.oldCount--
			h.newCount--
			trailingEqual--
		}
		hunks = append(hunks, h)
		oldLine, newLine = ol, nl
		i = j
	}

	if len(hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
		for _, l := range h.lines {
			sb.WriteString(l)
		}
	}
	return sb.String()
}

// changeWithin reports whether a non-equal op appears within the next
// context ops starting at idx. Called once context equal lines have
// already been kept, it merges two change runs separated by fewer than
// 2*context equal lines into one hunk instead of splitting them.
func changeWithin(ops []lineOp, idx, context int) bool {
	limit := idx + context
	if limit > len(ops) {
		limit = len(ops)
	}
	for k := idx; k < limit; k++ {
		if ops[k].kind != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}
