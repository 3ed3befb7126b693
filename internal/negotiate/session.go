// Package negotiate implements the interactive number-conversion protocol:
// candidates are presented one at a time in ascending position order, and the
// session survives the offset drift caused by its own accepted edits.
//
// The session is an explicit resumable state machine driven by a single
// external decision event, not a callback chain, so cancellation and testing
// stay tractable.
package negotiate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raaihank/lyricsmith/internal/convert"
	"github.com/raaihank/lyricsmith/internal/editor"
	"go.uber.org/zap"
)

// State is the lifecycle phase of a session.
type State int

const (
	// StateIdle means no candidate is being presented (before Start and
	// after termination).
	StateIdle State = iota
	// StatePresenting means a candidate awaits a decision.
	StatePresenting
	// StateDone means every candidate was processed or the session was
	// declined-all or aborted.
	StateDone
)

// Decision is the user's answer to a presented candidate.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionDecline
	DecisionDeclineAll
)

// DeclineStore persists decline decisions keyed by normalized page URL.
type DeclineStore interface {
	Decline(ctx context.Context, url string, uids []string) error
	Declined(ctx context.Context, url string) (map[string]bool, error)
}

// Prompt describes the candidate currently awaiting a decision.
type Prompt struct {
	Index     int                `json:"index"`
	Total     int                `json:"total"`
	Candidate convert.Conversion `json:"candidate"`
	Context   string             `json:"context"`
}

// positionWindow is how far around a stale offset the re-resolution search
// looks before falling back to a full-text scan.
const positionWindow = 100

// Session walks a candidate list over a live buffer.
type Session struct {
	ID         string
	url        string
	buffer     editor.TextBuffer
	candidates []convert.Conversion
	idx        int
	state      State
	declines   DeclineStore
	logger     *zap.Logger
	applied    int
}

// NewSession creates a session over the given candidates. Candidates must be
// in ascending position order, as produced by convert.FindCandidates.
func NewSession(url string, buffer editor.TextBuffer, candidates []convert.Conversion, declines DeclineStore, logger *zap.Logger) *Session {
	return &Session{
		ID:         uuid.New().String(),
		url:        url,
		buffer:     buffer,
		candidates: candidates,
		state:      StateIdle,
		declines:   declines,
		logger:     logger,
	}
}

// FilterDeclined drops candidates whose UID was declined for this URL within
// the persistence window. A store failure degrades to no filtering.
func FilterDeclined(ctx context.Context, store DeclineStore, url string, candidates []convert.Conversion) []convert.Conversion {
	declined, err := store.Declined(ctx, url)
	if err != nil || len(declined) == 0 {
		return candidates
	}
	kept := candidates[:0:0]
	for _, c := range candidates {
		if !declined[c.UID] {
			kept = append(kept, c)
		}
	}
	return kept
}

// State returns the current lifecycle phase.
func (s *Session) State() State { return s.state }

// Applied returns how many conversions were accepted so far.
func (s *Session) Applied() int { return s.applied }

// Start moves to the first candidate. ok is false when there is nothing to
// present.
func (s *Session) Start() (*Prompt, bool) {
	if s.state != StateIdle || len(s.candidates) == 0 {
		s.state = StateDone
		return nil, false
	}
	s.state = StatePresenting
	s.idx = 0
	return s.prompt(), true
}

// Current returns the candidate awaiting a decision.
func (s *Session) Current() (*Prompt, bool) {
	if s.state != StatePresenting {
		return nil, false
	}
	return s.prompt(), true
}

// Decide applies the decision to the current candidate and advances. The
// returned prompt is the next candidate; ok is false once the session is
// done.
func (s *Session) Decide(ctx context.Context, d Decision) (*Prompt, bool, error) {
	if s.state != StatePresenting {
		return nil, false, fmt.Errorf("no candidate is being presented")
	}

	current := s.candidates[s.idx]
	switch d {
	case DecisionAccept:
		s.accept(current)
	case DecisionDecline:
		s.persistDeclines(ctx, []string{current.UID})
	case DecisionDeclineAll:
		uids := make([]string, 0, len(s.candidates)-s.idx)
		for _, c := range s.candidates[s.idx:] {
			uids = append(uids, c.UID)
		}
		s.persistDeclines(ctx, uids)
		s.state = StateDone
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unknown decision %d", d)
	}

	s.idx++
	if s.idx >= len(s.candidates) {
		s.state = StateDone
		return nil, false, nil
	}
	return s.prompt(), true, nil
}

// Abort terminates the session from any state. It is idempotent: aborting an
// already-terminated session is a no-op.
func (s *Session) Abort() {
	s.state = StateDone
}

// accept applies the current candidate at its re-resolved position and shifts
// every later candidate's stored offset by the length delta, which keeps
// those offsets valid without a full re-scan.
func (s *Session) accept(c convert.Conversion) {
	text := s.buffer.Read()
	pos, ok := resolvePosition(text, c.Original, c.Position)
	if !ok {
		s.logger.Warn("Conversion position no longer resolvable, skipping",
			zap.String("original", c.Original),
			zap.Int("stale_position", c.Position),
		)
		return
	}
	if text[pos:pos+len(c.Original)] != c.Original {
		s.logger.Warn("Live text diverged from expected snippet, skipping",
			zap.String("original", c.Original),
			zap.Int("position", pos),
		)
		return
	}

	s.buffer.Write(text[:pos] + c.Converted + text[pos+len(c.Original):])
	s.applied++

	delta := len(c.Converted) - len(c.Original)
	for i := s.idx + 1; i < len(s.candidates); i++ {
		if s.candidates[i].Position > pos {
			s.candidates[i].Position += delta
		}
	}
}

func (s *Session) persistDeclines(ctx context.Context, uids []string) {
	if err := s.declines.Decline(ctx, s.url, uids); err != nil {
		s.logger.Warn("Failed to persist declines", zap.String("url", s.url), zap.Error(err))
	}
}

func (s *Session) prompt() *Prompt {
	c := s.candidates[s.idx]
	return &Prompt{
		Index:     s.idx,
		Total:     len(s.candidates),
		Candidate: c,
		Context:   contextSnippet(s.buffer.Read(), c.Position, len(c.Original)),
	}
}

// resolvePosition finds where original currently lives, given the offset it
// had at discovery time. Exact match wins; otherwise occurrences within
// ±100 characters of the stale offset are considered, then the whole text.
// Nearest absolute distance wins, leftmost on a tie.
func resolvePosition(text, original string, stale int) (int, bool) {
	if stale >= 0 && stale+len(original) <= len(text) && text[stale:stale+len(original)] == original {
		return stale, true
	}

	occurrences := func(lo, hi int) []int {
		var out []int
		for at := lo; at < hi; {
			idx := strings.Index(text[at:hi], original)
			if idx < 0 {
				break
			}
			idx += at
			if tokenBoundary(text, idx, idx+len(original)) {
				out = append(out, idx)
			}
			at = idx + 1
		}
		return out
	}

	lo := stale - positionWindow
	if lo < 0 {
		lo = 0
	}
	hi := stale + positionWindow
	if hi > len(text) {
		hi = len(text)
	}
	found := occurrences(lo, hi)
	if len(found) == 0 {
		found = occurrences(0, len(text))
	}
	if len(found) == 0 {
		return 0, false
	}

	best, bestDist := found[0], abs(found[0]-stale)
	for _, pos := range found[1:] {
		if d := abs(pos - stale); d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best, true
}

// tokenBoundary reports whether [start, end) is not embedded in a larger
// word/number token, so "15" never resolves into the middle of "215".
func tokenBoundary(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

func contextSnippet(text string, pos, width int) string {
	lo := pos - 20
	if lo < 0 {
		lo = 0
	}
	hi := pos + width + 20
	if hi > len(text) {
		hi = len(text)
	}
	if pos > len(text) {
		return ""
	}
	return strings.TrimSpace(text[lo:hi])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
