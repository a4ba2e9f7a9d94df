package dogma

// ChangeKind tags the variant of a write-side Change.
type ChangeKind int

const (
	ChangeUpsertJSON ChangeKind = iota
	ChangeUpsertText
	ChangeRemove
	ChangeRename
	ChangeApplyJSONPatch
	ChangeApplyTextPatch
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpsertJSON:
		return "UPSERT_JSON"
	case ChangeUpsertText:
		return "UPSERT_TEXT"
	case ChangeRemove:
		return "REMOVE"
	case ChangeRename:
		return "RENAME"
	case ChangeApplyJSONPatch:
		return "APPLY_JSON_PATCH"
	case ChangeApplyTextPatch:
		return "APPLY_TEXT_PATCH"
	default:
		return "UNKNOWN"
	}
}

// Change is the tagged variant over a path accepted by Commit. Exactly
// the fields relevant to Kind are populated.
type Change struct {
	Kind ChangeKind
	Path string

	// ChangeUpsertJSON / ChangeApplyJSONPatch
	JSON any
	// ChangeUpsertText
	Text string
	// ChangeRename
	NewPath string
	// ChangeApplyJSONPatch
	JSONPatch []PatchOp
	// ChangeApplyTextPatch
	UnifiedDiff string
}

func UpsertJSON(path string, value any) Change {
	return Change{Kind: ChangeUpsertJSON, Path: path, JSON: value}
}

func UpsertText(path, text string) Change {
	return Change{Kind: ChangeUpsertText, Path: path, Text: text}
}

func Remove(path string) Change {
	return Change{Kind: ChangeRemove, Path: path}
}

func Rename(oldPath, newPath string) Change {
	return Change{Kind: ChangeRename, Path: oldPath, NewPath: newPath}
}

func ApplyJSONPatch(path string, patch []PatchOp) Change {
	return Change{Kind: ChangeApplyJSONPatch, Path: path, JSONPatch: patch}
}

func ApplyTextPatch(path, unifiedDiff string) Change {
	return Change{Kind: ChangeApplyTextPatch, Path: path, UnifiedDiff: unifiedDiff}
}

// ChangeEntryKind tags the result of a tree diff or a staged commit's
// change map (read side), distinct from the write-side ChangeKind
// above.
type ChangeEntryKind int

const (
	ChangeEntryUpsertJSON ChangeEntryKind = iota
	ChangeEntryUpsertText
	ChangeEntryRemove
	ChangeEntryRename
	ChangeEntryApplyJSONPatch
	ChangeEntryApplyTextPatch
)

// DiffMode selects how Diff reports a modified entry.
type DiffMode int

const (
	// DiffNormal emits a patch (APPLY_JSON_PATCH / APPLY_TEXT_PATCH)
	// describing how a modified entry changed.
	DiffNormal DiffMode = iota
	// DiffPatchToUpsert emits a full upsert of the new content instead
	// of a patch, collapsing modifications the same way adds are
	// reported. preview_diff and commit(direct=true) always use this
	// mode, since their normalized change-list is re-applied as plain
	// upserts.
	DiffPatchToUpsert
)

// ChangeEntry is a single entry of the path -> Change map returned by
// diff, preview_diff, and commit.
type ChangeEntry struct {
	Kind    ChangeEntryKind
	Path    string
	NewPath string // set for ChangeEntryRename
	Content any    // upsert payload (string or decoded JSON)
	Patch   []PatchOp
	Diff    string
}
