package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores serialized stats under a short TTL. Any redis failure is
// treated as a miss so a dead cache degrades to direct counts, never an error.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache with the given TTL (the dashboard poll
// interval is the natural choice).
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(sessionID string) string { return "qrattend:stats:" + sessionID }

// Get returns a cached entry if present and parseable.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (Stats, bool) {
	if c == nil || c.client == nil {
		return Stats{}, false
	}
	raw, err := c.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		return Stats{}, false
	}
	var s Stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return Stats{}, false
	}
	return s, true
}

// Set writes an entry, best effort.
func (c *RedisCache) Set(ctx context.Context, sessionID string, s Stats) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(sessionID), raw, c.ttl).Err()
}

// Invalidate drops an entry, best effort.
func (c *RedisCache) Invalidate(ctx context.Context, sessionID string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key(sessionID)).Err()
}

// InvalidateAll drops every stats entry, best effort. SCAN keeps this safe on
// a shared redis; the keyspace is tiny (one entry per recent session).
func (c *RedisCache) InvalidateAll(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, key("*"), 100).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
