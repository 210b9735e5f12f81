package textutil

import (
	"strings"
	"unicode"
)

// HyphenateWhitespace trims the string and collapses every run of whitespace
// into a single hyphen, producing identifier-safe text for SKUs.
func HyphenateWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			pending = true
			continue
		}
		if pending {
			b.WriteRune('-')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CollapseWhitespace trims the string and collapses every run of whitespace
// into a single space.
func CollapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
