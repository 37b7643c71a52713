package utils

import "strings"

// OneLine collapses every run of whitespace, newlines included, to a single
// space.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
