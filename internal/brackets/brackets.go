// Package brackets flags unmatched parentheses and square brackets with
// inline warning markers.
package brackets

import (
	"sort"
	"strings"
)

// Marker is inserted immediately before and after every unmatched bracket.
// It contains no brackets, so annotating already-annotated text never flags
// anything new.
const Marker = "⚠"

// Annotate scans text once, left to right, tracking parentheses and square
// brackets on independent stacks: a "(" can never close a "[" or vice versa.
// Unmatched positions are flagged in descending order so earlier indices
// stay valid while markers are inserted.
func Annotate(text string) string {
	var parens, squares []int
	var unmatched []int

	for i, r := range text {
		switch r {
		case '(':
			parens = append(parens, i)
		case ')':
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			} else if !flagged(text, i, 1) {
				unmatched = append(unmatched, i)
			}
		case '[':
			squares = append(squares, i)
		case ']':
			if len(squares) > 0 {
				squares = squares[:len(squares)-1]
			} else if !flagged(text, i, 1) {
				unmatched = append(unmatched, i)
			}
		}
	}
	for _, pos := range parens {
		if !flagged(text, pos, 1) {
			unmatched = append(unmatched, pos)
		}
	}
	for _, pos := range squares {
		if !flagged(text, pos, 1) {
			unmatched = append(unmatched, pos)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(unmatched)))
	for _, pos := range unmatched {
		text = text[:pos] + Marker + text[pos:pos+1] + Marker + text[pos+1:]
	}
	return text
}

// flagged reports whether the width-byte character at pos already carries
// markers on both sides, which keeps Annotate idempotent.
func flagged(text string, pos, width int) bool {
	return strings.HasSuffix(text[:pos], Marker) && strings.HasPrefix(text[pos+width:], Marker)
}
