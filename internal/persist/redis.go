// Package persist provides the Redis-backed stores behind the editor's
// durable state: decline decisions, autosave drafts and user settings. Keys
// are derived from normalized page URLs so that query strings and fragments
// never split one song's state across entries.
package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Config contains Redis connection settings.
type Config struct {
	RedisURL       string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string `yaml:"key_prefix" mapstructure:"key_prefix"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// Client wraps the shared Redis connection used by all persist stores.
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "lyricsmith"
	}

	logger.Info("Persist client initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.String("key_prefix", prefix),
		zap.Int("max_connections", config.MaxConnections))

	return &Client{rdb: rdb, prefix: prefix, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// key builds a namespaced key from a kind and a normalized URL.
func (c *Client) key(kind, pageURL string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, kind, urlHash(NormalizeURL(pageURL)))
}

// NormalizeURL strips query, fragment and trailing slash and lowercases the
// host, so every visit to the same lyrics page maps to the same state.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func urlHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(raw string) string {
	if strings.Contains(raw, "@") {
		parts := strings.Split(raw, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return raw
}
