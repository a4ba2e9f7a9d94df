package jsonpatch

// Mode selects how Generate emits replacement operations.
type Mode int

const (
	// RFC6902 emits plain `replace` operations.
	RFC6902 Mode = iota
	// SAFE emits `safeReplace` operations so two concurrent producers
	// diffing against the same base never silently overwrite one
	// another.
	SAFE
)
