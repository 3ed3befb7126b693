package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMemoryBuffer(t *testing.T) {
	buf := NewMemoryBuffer("hello")
	if buf.Read() != "hello" {
		t.Errorf("Read = %q", buf.Read())
	}
	buf.SetCursor(1, 3)
	start, end := buf.Cursor()
	if start != 1 || end != 3 {
		t.Errorf("Cursor = (%d, %d), want (1, 3)", start, end)
	}
	buf.Write("hi")
	start, end = buf.Cursor()
	if start != 1 || end != 2 {
		t.Errorf("Cursor not clamped after shrink: (%d, %d)", start, end)
	}
}

func TestReplaceAll(t *testing.T) {
	r := NewReplacer(zap.NewNop())

	t.Run("CaseSensitive", func(t *testing.T) {
		buf := NewMemoryBuffer("Cat cat CAT")
		count := r.ReplaceAll(buf, "cat", "dog", true)
		if count != 1 {
			t.Errorf("Count = %d, want 1", count)
		}
		if buf.Read() != "Cat dog CAT" {
			t.Errorf("Buffer = %q", buf.Read())
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		buf := NewMemoryBuffer("Cat cat CAT")
		count := r.ReplaceAll(buf, "cat", "dog", false)
		if count != 3 {
			t.Errorf("Count = %d, want 3", count)
		}
		if buf.Read() != "dog dog dog" {
			t.Errorf("Buffer = %q", buf.Read())
		}
	})

	t.Run("CaseInsensitiveUnicode", func(t *testing.T) {
		// İ (U+0130) lowercases to two runes and Ⱥ (U+023A, 2 bytes)
		// lowercases to ⱥ (U+2C65, 3 bytes); offsets into a lowercased
		// copy of the text would desync on both.
		buf := NewMemoryBuffer("İx")
		if count := r.ReplaceAll(buf, "x", "y", false); count != 1 {
			t.Errorf("Count = %d, want 1", count)
		}
		if buf.Read() != "İy" {
			t.Errorf("Buffer = %q, want %q", buf.Read(), "İy")
		}

		buf = NewMemoryBuffer("Ⱥx")
		if count := r.ReplaceAll(buf, "x", "y", false); count != 1 {
			t.Errorf("Count = %d, want 1", count)
		}
		if buf.Read() != "Ⱥy" {
			t.Errorf("Buffer = %q, want %q", buf.Read(), "Ⱥy")
		}

		// The matched text and the needle may have different byte lengths.
		buf = NewMemoryBuffer("Ⱥrm up")
		if count := r.ReplaceAll(buf, "ⱥrm", "warm", false); count != 1 {
			t.Errorf("Count = %d, want 1", count)
		}
		if buf.Read() != "warm up" {
			t.Errorf("Buffer = %q, want %q", buf.Read(), "warm up")
		}
	})

	t.Run("EmptyFind", func(t *testing.T) {
		buf := NewMemoryBuffer("abc")
		if count := r.ReplaceAll(buf, "", "x", true); count != 0 {
			t.Errorf("Count = %d, want 0", count)
		}
	})
}

func TestUndo_SingleSlot(t *testing.T) {
	r := NewReplacer(zap.NewNop())
	buf := NewMemoryBuffer("one two three")

	r.ReplaceAll(buf, "one", "1", true)
	r.ReplaceAll(buf, "two", "2", true)

	count, err := r.Undo()
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Undo count = %d, want 1", count)
	}
	// Only the second operation is undone; the first is gone for good.
	if buf.Read() != "1 two three" {
		t.Errorf("Buffer after undo = %q, want %q", buf.Read(), "1 two three")
	}

	if _, err := r.Undo(); err != ErrNothingToUndo {
		t.Errorf("Second undo error = %v, want ErrNothingToUndo", err)
	}
}

type fakeAutosaveStore struct {
	mu      sync.Mutex
	saves   []AutosaveRecord
	cleared int
}

func (s *fakeAutosaveStore) SaveAutosave(_ context.Context, _ string, rec AutosaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, rec)
	return nil
}

func (s *fakeAutosaveStore) LoadAutosave(context.Context, string) (*AutosaveRecord, error) {
	return nil, nil
}

func (s *fakeAutosaveStore) ClearAutosave(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

func (s *fakeAutosaveStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func TestAutosaver_DebounceAfterEdit(t *testing.T) {
	store := &fakeAutosaveStore{}
	buf := NewMemoryBuffer("draft")
	// A huge interval keeps the periodic path out of this test.
	a := NewAutosaver(buf, "https://example.com/lyrics/1", store, time.Hour, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.NotifyEdit()

	deadline := time.After(time.Second)
	for store.saveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Debounced autosave never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.mu.Lock()
	rec := store.saves[0]
	store.mu.Unlock()
	if rec.Content != "draft" {
		t.Errorf("Saved content = %q", rec.Content)
	}
	if rec.URL != "https://example.com/lyrics/1" {
		t.Errorf("Saved URL = %q", rec.URL)
	}
}

func TestAutosaver_FlushAndClear(t *testing.T) {
	store := &fakeAutosaveStore{}
	buf := NewMemoryBuffer("draft")
	a := NewAutosaver(buf, "https://example.com/lyrics/1", store, 0, 0, zap.NewNop())
	if a.interval != defaultAutosaveInterval || a.debounce != defaultEditDebounce {
		t.Errorf("Zero durations not defaulted: %v/%v", a.interval, a.debounce)
	}

	a.Flush(context.Background())
	if store.saveCount() != 1 {
		t.Errorf("Flush did not save, count = %d", store.saveCount())
	}

	a.Clear(context.Background())
	if store.cleared != 1 {
		t.Errorf("Clear count = %d, want 1", store.cleared)
	}
}
