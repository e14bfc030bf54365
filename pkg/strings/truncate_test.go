package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "fits", input: "exit code 1", maxLen: 20, want: "exit code 1"},
		{name: "exact", input: "hello", maxLen: 5, want: "hello"},
		{name: "cut", input: "timed out after 10m0s waiting", maxLen: 15, want: "timed out af..."},
		{name: "newlines", input: "first\nsecond\r\nthird", maxLen: 40, want: "first second third"},
		{name: "tabs and spaces", input: "a\t\t b   c", maxLen: 40, want: "a b c"},
		{name: "runes", input: "Überprüfung läuft", maxLen: 8, want: "Überp..."},
		{name: "small max raised", input: "abcdefgh", maxLen: 1, want: "a..."},
		{name: "empty", input: "", maxLen: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "pending: a, b", SingleLine("  pending:\n a,\tb \n"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", Tail("short", 100))
	assert.Equal(t, "unbounded", Tail("unbounded", 0))

	logs := "line one\nline two\nline three\n"
	assert.Equal(t, "... (truncated)\nline three\n", Tail(logs, 14))

	// Without a line break in the kept part the cut is mid-line.
	assert.Equal(t, "... (truncated)\nhree", Tail("one two three", 4))
}
