// Package security holds input hardening helpers for names that end up on
// the filesystem.
package security

import "strings"

const maxFilenameLen = 128

// SanitizeFilename makes a safe file name component from an arbitrary
// string. Runs of characters other than ASCII letters, digits, dot,
// underscore and dash become one underscore; leading and trailing dots and
// underscores are trimmed. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
		if !ok {
			pending = true
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
