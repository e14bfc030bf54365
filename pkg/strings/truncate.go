package strings

import (
	"strings"
)

// DefaultCellMaxLen is the width table cells are cut to in reports.
const DefaultCellMaxLen = 60

// minLen leaves room for one character plus the ellipsis.
const minLen = 4

// SingleLine collapses all whitespace runs, newlines included, into single
// spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s on a single line, cut to at most maxLen runes with a
// trailing "...". maxLen values below 4 are raised to 4.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, minLen)
	runes := []rune(SingleLine(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen-3]) + "..."
}

// Tail keeps the last maxBytes bytes of a multi-line text such as process
// output, starting at a line boundary when one is available, and marks the
// cut with a leading "... (truncated)" line.
func Tail(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	tail := s[len(s)-maxBytes:]
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return "... (truncated)\n" + tail
}
