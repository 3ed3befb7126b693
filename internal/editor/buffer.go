// Package editor holds the abstract text buffer the transformation pipeline
// reads and writes, plus the editing features layered directly on it:
// find/replace with a one-step undo and crash-recovery autosave.
package editor

import "sync"

// TextBuffer is the only surface the core sees of a host editor. How the
// host locates or renders its concrete editing widget is out of scope.
type TextBuffer interface {
	Read() string
	Write(text string)
	Cursor() (start, end int)
	SetCursor(start, end int)
}

// MemoryBuffer is an in-process TextBuffer used by the HTTP surface and by
// tests.
type MemoryBuffer struct {
	mu       sync.Mutex
	text     string
	selStart int
	selEnd   int
}

// NewMemoryBuffer creates a buffer seeded with text.
func NewMemoryBuffer(text string) *MemoryBuffer {
	return &MemoryBuffer{text: text}
}

func (b *MemoryBuffer) Read() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *MemoryBuffer) Write(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	if b.selStart > len(text) {
		b.selStart = len(text)
	}
	if b.selEnd > len(text) {
		b.selEnd = len(text)
	}
}

func (b *MemoryBuffer) Cursor() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selStart, b.selEnd
}

func (b *MemoryBuffer) SetCursor(start, end int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selStart, b.selEnd = start, end
}
