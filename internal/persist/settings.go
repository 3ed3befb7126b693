package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisSettingsStore keeps one settings document per user. The document is
// opaque JSON so this package stays ignorant of the pipeline's option set.
type RedisSettingsStore struct {
	client *Client
}

// NewRedisSettingsStore wraps the shared client.
func NewRedisSettingsStore(client *Client) *RedisSettingsStore {
	return &RedisSettingsStore{client: client}
}

func (s *RedisSettingsStore) settingsKey(userID string) string {
	return fmt.Sprintf("%s:settings:%s", s.client.prefix, userID)
}

// SaveSettings overwrites the settings document. Settings never expire.
func (s *RedisSettingsStore) SaveSettings(ctx context.Context, userID string, settings any) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.client.rdb.Set(ctx, s.settingsKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}
	return nil
}

// LoadSettings decodes the stored document into out. found is false when the
// user has never saved settings; out is left untouched so callers keep their
// defaults.
func (s *RedisSettingsStore) LoadSettings(ctx context.Context, userID string, out any) (found bool, err error) {
	data, err := s.client.rdb.Get(ctx, s.settingsKey(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode settings: %w", err)
	}
	return true, nil
}
