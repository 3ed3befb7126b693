package editor

import (
	"errors"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNothingToUndo is returned when no replace-all operation is on record.
var ErrNothingToUndo = errors.New("no replace operation to undo")

// Replacer performs literal find/replace-all over a buffer and keeps a
// single-slot undo record. Each new operation overwrites the previous
// record; only the most recent replace-all can be undone.
type Replacer struct {
	mu     sync.Mutex
	undo   *replaceOperation
	logger *zap.Logger
}

type replaceOperation struct {
	originalContent  string
	findText         string
	replaceText      string
	caseSensitive    bool
	replacementCount int
	buffer           TextBuffer
}

// NewReplacer creates a Replacer.
func NewReplacer(logger *zap.Logger) *Replacer {
	return &Replacer{logger: logger}
}

// ReplaceAll replaces every occurrence of find in the buffer and returns the
// replacement count. A zero count still overwrites the undo slot.
func (r *Replacer) ReplaceAll(buf TextBuffer, find, replace string, caseSensitive bool) int {
	if find == "" {
		return 0
	}

	original := buf.Read()
	replaced, count := replaceAllLiteral(original, find, replace, caseSensitive)
	if count > 0 {
		buf.Write(replaced)
	}

	r.mu.Lock()
	r.undo = &replaceOperation{
		originalContent:  original,
		findText:         find,
		replaceText:      replace,
		caseSensitive:    caseSensitive,
		replacementCount: count,
		buffer:           buf,
	}
	r.mu.Unlock()

	r.logger.Debug("Replace all applied",
		zap.String("find", find),
		zap.Int("count", count),
	)
	return count
}

// Undo restores the buffer content captured before the last replace-all and
// clears the slot.
func (r *Replacer) Undo() (int, error) {
	r.mu.Lock()
	op := r.undo
	r.undo = nil
	r.mu.Unlock()

	if op == nil {
		return 0, ErrNothingToUndo
	}
	op.buffer.Write(op.originalContent)
	return op.replacementCount, nil
}

// replaceAllLiteral is a literal (non-regex) replace-all with optional
// case-insensitive matching.
func replaceAllLiteral(text, find, replace string, caseSensitive bool) (string, int) {
	if caseSensitive {
		count := strings.Count(text, find)
		return strings.ReplaceAll(text, find, replace), count
	}

	// Case folding can change byte length (Ⱥ is 2 bytes, ⱥ is 3), so the
	// match must walk the original text rune by rune instead of indexing
	// into a lowercased copy.
	var b strings.Builder
	count := 0
	for i := 0; i < len(text); {
		if n := foldMatchLen(text[i:], find); n > 0 {
			b.WriteString(replace)
			i += n
			count++
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	return b.String(), count
}

// foldMatchLen reports the byte length of the prefix of s that matches
// needle under Unicode simple case folding, or 0 when there is no match.
// The matched prefix and the needle can differ in byte length.
func foldMatchLen(s, needle string) int {
	if needle == "" {
		return 0
	}
	n := 0
	for _, nr := range needle {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || !runeEqualFold(r, nr) {
			return 0
		}
		n += size
	}
	return n
}

func runeEqualFold(a, b rune) bool {
	if a == b {
		return true
	}
	r := unicode.SimpleFold(a)
	for r != a && r != b {
		r = unicode.SimpleFold(r)
	}
	return r == b
}
