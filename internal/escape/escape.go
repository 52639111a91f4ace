// Package escape turns arbitrary text lines into SAS `put` statements that
// write the same line back out when executed inside a data step.
//
// Only the single quote is special-cased (doubled). Any other character that
// means something to the SAS tokenizer inside a quoted literal is written
// through untouched.
package escape

import (
	"strings"
	"unicode"
)

const (
	putPrefix = "  put '"
	putSuffix = " ';\n"
)

// Line trims trailing white space and doubles every single quote.
func Line(line string) string {
	return strings.ReplaceAll(strings.TrimRightFunc(line, unicode.IsSpace), "'", "''")
}

// Put returns one put statement (indented, terminated, newline included) that
// emits line followed by a single space.
func Put(line string) string {
	return putPrefix + Line(line) + putSuffix
}

// Puts applies Put to every line, preserving order.
func Puts(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Put(l)
	}
	return out
}

// Unput recovers the trimmed line from a statement produced by Put.
// It reports false when stmt was not produced by Put.
func Unput(stmt string) (string, bool) {
	if !strings.HasPrefix(stmt, putPrefix) || !strings.HasSuffix(stmt, putSuffix) {
		return "", false
	}
	body := stmt[len(putPrefix) : len(stmt)-len(putSuffix)]
	return strings.ReplaceAll(body, "''", "'"), true
}

// Width is the number of bytes the emitted line occupies at runtime: the
// trimmed line plus the added trailing space. Record lengths are measured in
// bytes, so multibyte characters count in full.
func Width(line string) int {
	return len(strings.TrimRightFunc(line, unicode.IsSpace)) + 1
}
