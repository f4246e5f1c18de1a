// Package utils provides shared helpers for logging, vector math and text.
package utils

import "strings"

// Truncate returns s cut to at most maxLen runes, with "..." appended if it
// was cut. A non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// SingleLine collapses all whitespace runs, newlines included, to one space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
