package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/lyricsmith/internal/negotiate"
)

// RedisDeclineStore persists decline decisions as a sorted set per page,
// scored by decision time. Entries older than negotiate.DeclineTTL are
// pruned on read, and the whole key expires with the newest decision, so an
// abandoned page leaves nothing behind.
type RedisDeclineStore struct {
	client *Client
}

// NewRedisDeclineStore wraps the shared client.
func NewRedisDeclineStore(client *Client) *RedisDeclineStore {
	return &RedisDeclineStore{client: client}
}

var _ negotiate.DeclineStore = (*RedisDeclineStore)(nil)

// Decline records uids for the page.
func (s *RedisDeclineStore) Decline(ctx context.Context, pageURL string, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	key := s.client.key("declines", pageURL)
	now := float64(time.Now().Unix())

	members := make([]*redis.Z, len(uids))
	for i, uid := range uids {
		members[i] = &redis.Z{Score: now, Member: uid}
	}

	pipe := s.client.rdb.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, negotiate.DeclineTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist declines: %w", err)
	}
	return nil
}

// Declined returns the unexpired decline set for the page.
func (s *RedisDeclineStore) Declined(ctx context.Context, pageURL string) (map[string]bool, error) {
	key := s.client.key("declines", pageURL)
	cutoff := time.Now().Add(-negotiate.DeclineTTL).Unix()

	pipe := s.client.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	fetch := pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", cutoff),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read declines: %w", err)
	}

	uids, err := fetch.Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read declines: %w", err)
	}
	out := make(map[string]bool, len(uids))
	for _, uid := range uids {
		out[uid] = true
	}
	return out, nil
}
