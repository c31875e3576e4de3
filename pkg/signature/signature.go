// Package signature handles the opaque encrypted tokens exchanged with
// job workers.
//
// Signatures are never interpreted. They are relayed between calls after
// stripping the JSON string quoting and escape artifacts that workers
// leave on raw text responses.
package signature

import (
	"strings"
	"unicode/utf8"
)

// Sanitize prepares a signature for reuse in a request body.
//
// If s starts and ends with a double quote, one leading and one trailing
// character are removed; a lone quote becomes empty. Every backslash is
// then removed regardless of position.
// Sanitize is idempotent on clean input.
func Sanitize(s string) string {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = trimQuotes(s)
	}
	return strings.ReplaceAll(s, `\`, "")
}

// Truncate shortens s to at most n bytes for log output. The cut is moved
// back to a rune boundary so multi-byte characters are never split.
func Truncate(s string, n int) string {
	if n < 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func trimQuotes(s string) string {
	if len(s) < 2 {
		return ""
	}
	return s[1 : len(s)-1]
}
