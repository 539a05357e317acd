// Package utils provides shared text, retry, and logging helpers.
package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen runes and appends "..." when anything
// was cut. Cuts happen on rune boundaries so multi-byte text stays valid.
// A zero or negative maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
