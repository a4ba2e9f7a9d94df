package textpatch

import "strings"

// Sanitize normalizes text content on every ingress/egress path: strip
// every carriage return, then ensure a trailing newline on non-empty
// content.
func Sanitize(text string) string {
	if strings.ContainsRune(text, '\r') {
		text = strings.ReplaceAll(text, "\r", "")
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}
