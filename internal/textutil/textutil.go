package textutil

import (
	"bytes"
	"strings"
)

// SplitLines splits b into physical lines, keeping each line's '\n'. A final
// line without a terminator is returned as-is; an empty input yields no lines.
func SplitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// CountLines returns the number of physical lines in b.
func CountLines(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := bytes.Count(b, []byte("\n"))
	if b[len(b)-1] != '\n' {
		n++
	}
	return n
}
