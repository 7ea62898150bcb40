// Package mask redacts sensitive identifiers before they reach logs.
package mask

import "strings"

// String keeps the first and last four characters of a token and replaces the
// middle with asterisks. Short values are fully redacted.
func String(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// Reference masks the identifier half of a "<provider>:<id>" reference while
// keeping the provider segment readable.
func Reference(ref string) string {
	if i := strings.IndexByte(ref, ':'); i > 0 {
		return ref[:i+1] + String(ref[i+1:])
	}
	return String(ref)
}
