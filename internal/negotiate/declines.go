package negotiate

import (
	"context"
	"sync"
	"time"
)

// DeclineTTL is how long a decline decision stays on record. After expiry
// the candidate is offered again.
const DeclineTTL = 7 * 24 * time.Hour

// MemoryDeclineStore is the in-process DeclineStore used when no persistent
// backend is configured, and by tests. Entries expire after DeclineTTL.
type MemoryDeclineStore struct {
	mu      sync.Mutex
	entries map[string]map[string]time.Time
	now     func() time.Time
}

// NewMemoryDeclineStore creates an empty store.
func NewMemoryDeclineStore() *MemoryDeclineStore {
	return &MemoryDeclineStore{
		entries: make(map[string]map[string]time.Time),
		now:     time.Now,
	}
}

// Decline records uids for url.
func (s *MemoryDeclineStore) Decline(_ context.Context, url string, uids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[url]
	if !ok {
		m = make(map[string]time.Time)
		s.entries[url] = m
	}
	at := s.now()
	for _, uid := range uids {
		m[uid] = at
	}
	return nil
}

// Declined returns the unexpired decline set for url, pruning stale entries
// as it goes.
func (s *MemoryDeclineStore) Declined(_ context.Context, url string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	cutoff := s.now().Add(-DeclineTTL)
	for uid, at := range s.entries[url] {
		if at.Before(cutoff) {
			delete(s.entries[url], uid)
			continue
		}
		out[uid] = true
	}
	return out, nil
}
