package textpatch

import (
	"strconv"
	"strings"

	"github.com/cdogma/dogma-core/dogmaerr"
)

// hunkHeader is a parsed `@@ -oldStart,oldCount +newStart,newCount @@`
// line.
type hunkHeader struct {
	oldStart, oldCount int
	newStart, newCount int
}

type hunk struct {
	header hunkHeader
	lines  []string
}

// Apply applies a unified-diff patch to text: hunk
// context is matched against the sanitized, line-split input; any
// mismatch raises dogmaerr.PatchConflict.
func Apply(text, patch string) (string, error) {
	text = Sanitize(text)
	hunks, err := parseHunks(patch)
	if err != nil {
		return "", err
	}

	srcLines := splitLines(text)
	var out []string
	cursor := 0 // 0-based index into srcLines, next unconsumed source line

	for _, h := range hunks {
		start := h.header.oldStart - 1
		if start < cursor || start > len(srcLines) {
			return "", dogmaerr.Newf(dogmaerr.PatchConflict, "hunk out of order or out of range at line %d", h.header.oldStart)
		}
		out = append(out, srcLines[cursor:start]...)
		cursor = start

		for _, l := range h.lines {
			if len(l) == 0 {
				continue
			}
			marker, content := l[0], l[1:]
			switch marker {
			case ' ':
				if cursor >= len(srcLines) || srcLines[cursor] != content {
					return "", dogmaerr.Newf(dogmaerr.PatchConflict, "context mismatch at line %d", cursor+1)
				}
				out = append(out, content)
				cursor++
			case '-':
				if cursor >= len(srcLines) || srcLines[cursor] != content {
					return "", dogmaerr.Newf(dogmaerr.PatchConflict, "delete mismatch at line %d", cursor+1)
				}
				cursor++
			case '+':
				out = append(out, content)
			default:
				return "", dogmaerr.Newf(dogmaerr.PatchConflict, "malformed hunk line %q", l)
			}
		}
	}
	out = append(out, srcLines[cursor:]...)
	return Sanitize(strings.Join(out, "")), nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	raw := strings.SplitAfter(text, "\n")
	if raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	return raw
}

func parseHunks(patch string) ([]hunk, error) {
	var hunks []hunk
	var cur *hunk
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			hdr, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, hunk{header: hdr})
			cur = &hunks[len(hunks)-1]
			continue
		}
		if cur == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, dogmaerr.Newf(dogmaerr.PatchConflict, "patch content before any hunk header")
		}
		if line == "" {
			continue
		}
		cur.lines = append(cur.lines, line+"\n")
	}
	if len(hunks) == 0 {
		return nil, dogmaerr.New(dogmaerr.PatchConflict, "patch contains no hunks")
	}
	return hunks, nil
}

// parseHunkHeader parses "@@ -l,c +l,c @@" (trailing section header
// text after the closing "@@" is ignored). A count of 1 may be omitted.
func parseHunkHeader(line string) (hunkHeader, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "@@" {
		return hunkHeader{}, dogmaerr.Newf(dogmaerr.PatchConflict, "malformed hunk header %q", line)
	}
	oldSpec := strings.TrimPrefix(fields[1], "-")
	newSpec := strings.TrimPrefix(fields[2], "+")
	oldStart, oldCount, err := parseRange(oldSpec)
	if err != nil {
		return hunkHeader{}, err
	}
	newStart, newCount, err := parseRange(newSpec)
	if err != nil {
		return hunkHeader{}, err
	}
	return hunkHeader{oldStart: oldStart, oldCount: oldCount, newStart: newStart, newCount: newCount}, nil
}

func parseRange(spec string) (start, count int, err error) {
	parts := strings.SplitN(spec, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, dogmaerr.Newf(dogmaerr.PatchConflict, "malformed hunk range %q", spec)
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, dogmaerr.Newf(dogmaerr.PatchConflict, "malformed hunk range %q", spec)
		}
	}
	return start, count, nil
}
