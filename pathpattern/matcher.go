// Package pathpattern implements C3: the comma-separated, ant-style
// glob matcher used to select entries by path. It is built on
// github.com/gobwas/glob, whose separator-aware compilation already
// gives '*' single-segment and '**' cross-segment semantics when
// compiled with '/' as the path separator.
package pathpattern

import (
	"strings"

	"github.com/gobwas/glob"
)

// Matcher evaluates a comma-separated list of ant-style glob patterns
// against entry paths. The aggregate matches if any sub-pattern
// matches.
type Matcher struct {
	raw        []string
	compiled   []glob.Glob
	matchesAll bool
}

// Compile parses a comma-separated pattern list. Each element is
// trimmed of surrounding whitespace before compiling.
func Compile(pattern string) (*Matcher, error) {
	parts := splitPattern(pattern)
	m := &Matcher{raw: parts}
	if len(parts) == 1 && parts[0] == "/**" {
		m.matchesAll = true
		return m, nil
	}
	m.compiled = make([]glob.Glob, len(parts))
	for i, p := range parts {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		m.compiled[i] = g
	}
	return m, nil
}

// MustCompile is Compile but panics on an invalid pattern; useful for
// constants.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func splitPattern(pattern string) []string {
	rawParts := strings.Split(pattern, ",")
	parts := make([]string, 0, len(rawParts))
	for _, p := range rawParts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		parts = []string{"/**"}
	}
	return parts
}

// Matches reports whether path satisfies any sub-pattern.
func (m *Matcher) Matches(path string) bool {
	if m.matchesAll {
		return true
	}
	for _, g := range m.compiled {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// MatchesDirectory applies the tree-walker's directory-match rule:
// a directory is a match iff its path is listed explicitly among the
// raw sub-patterns (wildcard expansion never implicitly matches a
// directory), matching the data-model invariant that a DIRECTORY entry
// is only ever emitted when the client explicitly names its path.
func (m *Matcher) MatchesDirectory(path string) bool {
	for _, p := range m.raw {
		if p == path {
			return true
		}
	}
	return false
}

// IsMatchAll reports whether this matcher was recognized as the
// "/**" fast path.
func (m *Matcher) IsMatchAll() bool { return m.matchesAll }

// String returns the original comma-joined pattern.
func (m *Matcher) String() string { return strings.Join(m.raw, ",") }
