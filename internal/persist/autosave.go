package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/lyricsmith/internal/editor"
	"go.uber.org/zap"
)

// autosaveTTL bounds how long an unclaimed draft is kept.
const autosaveTTL = 30 * 24 * time.Hour

// RedisAutosaveStore keeps one draft per normalized page URL.
type RedisAutosaveStore struct {
	client *Client
}

// NewRedisAutosaveStore wraps the shared client.
func NewRedisAutosaveStore(client *Client) *RedisAutosaveStore {
	return &RedisAutosaveStore{client: client}
}

var _ editor.AutosaveStore = (*RedisAutosaveStore)(nil)

// SaveAutosave overwrites the draft for the page.
func (s *RedisAutosaveStore) SaveAutosave(ctx context.Context, pageURL string, rec editor.AutosaveRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode autosave: %w", err)
	}
	key := s.client.key("autosave", pageURL)
	if err := s.client.rdb.Set(ctx, key, data, autosaveTTL).Err(); err != nil {
		return fmt.Errorf("failed to store autosave: %w", err)
	}
	s.client.logger.Debug("Autosave stored",
		zap.String("url", NormalizeURL(pageURL)),
		zap.Int("content_bytes", len(rec.Content)))
	return nil
}

// LoadAutosave returns the draft for the page, or nil when none exists.
func (s *RedisAutosaveStore) LoadAutosave(ctx context.Context, pageURL string) (*editor.AutosaveRecord, error) {
	key := s.client.key("autosave", pageURL)
	data, err := s.client.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load autosave: %w", err)
	}
	var rec editor.AutosaveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt drafts are dropped rather than surfaced forever.
		s.client.rdb.Del(ctx, key)
		return nil, fmt.Errorf("failed to decode autosave: %w", err)
	}
	return &rec, nil
}

// ClearAutosave deletes the draft for the page.
func (s *RedisAutosaveStore) ClearAutosave(ctx context.Context, pageURL string) error {
	key := s.client.key("autosave", pageURL)
	if err := s.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear autosave: %w", err)
	}
	return nil
}
