// Package dogmaflags holds the --dir flag convention, revision parsing,
// change-file decoding and repository-opening boilerplate shared by
// every dogma-core subcommand, so it's imported once rather than
// reimplemented per subcommand.
package dogmaflags

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cdogma/dogma-core/config"
	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/internal/dogmalog"
	"github.com/cdogma/dogma-core/repository"
)

// AddDirFlag registers the --dir flag every subcommand accepts,
// defaulting to the current directory.
func AddDirFlag(cmd *cobra.Command) *string {
	return cmd.Flags().String("dir", ".", "repository directory")
}

// Open loads dir/dogma.yaml (if present) and opens the repository
// rooted at dir, installing the process-wide logger the first time
// it's called.
func Open(dir string) (*repository.Repository, error) {
	_ = dogmalog.Init("", true)
	cfg, err := config.Load(dir + "/dogma.yaml")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	name := dir
	return repository.Open(dir, name, cfg)
}

// ParseRevision accepts either an absolute integer or "head"/"" as a
// case-insensitive alias for 0.
func ParseRevision(s string) (dogma.Revision, error) {
	if s == "" || strings.EqualFold(s, "head") {
		return dogma.Revision(0), nil
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid revision %q: %w", s, err)
	}
	return dogma.Revision(v), nil
}

// ChangeFile is the on-disk JSON shape accepted by `dogma-core commit
// --changes-file`, one object per entry in the write-side change list.
type ChangeFile struct {
	Kind        string          `json:"kind"`
	Path        string          `json:"path"`
	NewPath     string          `json:"newPath,omitempty"`
	JSON        any             `json:"json,omitempty"`
	Text        string          `json:"text,omitempty"`
	JSONPatch   []dogma.PatchOp `json:"jsonPatch,omitempty"`
	UnifiedDiff string          `json:"unifiedDiff,omitempty"`
}

// LoadChanges reads a JSON array of ChangeFile entries from path and
// converts each into a dogma.Change.
func LoadChanges(path string) ([]dogma.Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []ChangeFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse changes file: %w", err)
	}
	out := make([]dogma.Change, 0, len(raw))
	for _, c := range raw {
		switch c.Kind {
		case "UPSERT_JSON":
			out = append(out, dogma.UpsertJSON(c.Path, c.JSON))
		case "UPSERT_TEXT":
			out = append(out, dogma.UpsertText(c.Path, c.Text))
		case "REMOVE":
			out = append(out, dogma.Remove(c.Path))
		case "RENAME":
			out = append(out, dogma.Rename(c.Path, c.NewPath))
		case "APPLY_JSON_PATCH":
			out = append(out, dogma.ApplyJSONPatch(c.Path, c.JSONPatch))
		case "APPLY_TEXT_PATCH":
			out = append(out, dogma.ApplyTextPatch(c.Path, c.UnifiedDiff))
		default:
			return nil, fmt.Errorf("unknown change kind %q", c.Kind)
		}
	}
	return out, nil
}
