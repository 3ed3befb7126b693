package editor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AutosaveRecord is the crash-recovery snapshot persisted per page URL.
type AutosaveRecord struct {
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	URL            string    `json:"url"`
	SelectionStart int       `json:"selectionStart"`
	SelectionEnd   int       `json:"selectionEnd"`
}

// AutosaveStore persists autosave records. Failures degrade the feature to
// "no persistence this session"; they never interrupt editing.
type AutosaveStore interface {
	SaveAutosave(ctx context.Context, url string, rec AutosaveRecord) error
	LoadAutosave(ctx context.Context, url string) (*AutosaveRecord, error)
	ClearAutosave(ctx context.Context, url string) error
}

const (
	defaultAutosaveInterval = 30 * time.Second
	defaultEditDebounce     = 2 * time.Second
)

// Autosaver snapshots a buffer on a fixed interval and shortly after each
// edit burst.
type Autosaver struct {
	buffer   TextBuffer
	url      string
	store    AutosaveStore
	logger   *zap.Logger
	interval time.Duration
	debounce time.Duration
	edits    chan struct{}
}

// NewAutosaver creates an autosaver for one buffer/URL pair. A zero interval
// or debounce falls back to the defaults (30s and 2s).
func NewAutosaver(buffer TextBuffer, url string, store AutosaveStore, interval, debounce time.Duration, logger *zap.Logger) *Autosaver {
	if interval <= 0 {
		interval = defaultAutosaveInterval
	}
	if debounce <= 0 {
		debounce = defaultEditDebounce
	}
	return &Autosaver{
		buffer:   buffer,
		url:      url,
		store:    store,
		logger:   logger,
		interval: interval,
		debounce: debounce,
		edits:    make(chan struct{}, 1),
	}
}

// NotifyEdit signals that the buffer changed; a snapshot is taken once edits
// settle for the debounce window.
func (a *Autosaver) NotifyEdit() {
	select {
	case a.edits <- struct{}{}:
	default:
	}
}

// Run drives the autosave loop until ctx is cancelled.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(a.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.save(ctx)
		case <-a.edits:
			debounce.Reset(a.debounce)
		case <-debounce.C:
			a.save(ctx)
		}
	}
}

// Flush snapshots immediately.
func (a *Autosaver) Flush(ctx context.Context) {
	a.save(ctx)
}

// Clear drops the persisted record, called after a successful save/publish.
func (a *Autosaver) Clear(ctx context.Context) {
	if err := a.store.ClearAutosave(ctx, a.url); err != nil {
		a.logger.Warn("Failed to clear autosave", zap.String("url", a.url), zap.Error(err))
	}
}

func (a *Autosaver) save(ctx context.Context) {
	start, end := a.buffer.Cursor()
	rec := AutosaveRecord{
		Content:        a.buffer.Read(),
		Timestamp:      time.Now(),
		URL:            a.url,
		SelectionStart: start,
		SelectionEnd:   end,
	}
	if err := a.store.SaveAutosave(ctx, a.url, rec); err != nil {
		a.logger.Warn("Autosave failed", zap.String("url", a.url), zap.Error(err))
	}
}
