package dogma

import "encoding/json"

// Markup identifies how a commit's Detail field should be rendered.
type Markup int

const (
	MarkupPlaintext Markup = iota
	MarkupMarkdown
)

func (m Markup) String() string {
	if m == MarkupMarkdown {
		return "MARKDOWN"
	}
	return "PLAINTEXT"
}

// Commit is the read-side representation of a single transaction on
// the linear history. ParentRevision is nil only for the initial
// commit (Revision == 1).
type Commit struct {
	Revision       int
	Author         string
	TimestampMs    int64
	Summary        string
	Detail         string
	Markup         Markup
	ParentRevision *int
}

// messageEnvelope is the JSON payload stored inside the underlying
// commit object's message, so a foreign Git reader can
// recover summary/detail/markup/revision without understanding this
// module's higher-level format.
type messageEnvelope struct {
	Summary  string `json:"summary"`
	Detail   string `json:"detail"`
	Markup   string `json:"markup"`
	Revision int    `json:"revision"`
}

// EncodeMessage renders the commit message envelope as JSON.
func EncodeMessage(summary, detail string, markup Markup, revision int) (string, error) {
	env := messageEnvelope{Summary: summary, Detail: detail, Markup: markup.String(), Revision: revision}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMessage parses a commit message envelope back into its fields.
func DecodeMessage(message string) (summary, detail string, markup Markup, revision int, err error) {
	var env messageEnvelope
	if err = json.Unmarshal([]byte(message), &env); err != nil {
		return "", "", MarkupPlaintext, 0, err
	}
	m := MarkupPlaintext
	if env.Markup == "MARKDOWN" {
		m = MarkupMarkdown
	}
	return env.Summary, env.Detail, m, env.Revision, nil
}
