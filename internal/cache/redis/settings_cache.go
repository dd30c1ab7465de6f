package redis

import (
	"context"
	"time"

	rplatform "relay-bot-backend/internal/platform/redis"
)

// SettingsCache caches config values in Redis so the hot relay path does not
// hit Postgres for every toggle read. Failures degrade to cache misses; the
// store remains the source of truth.
type SettingsCache struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewSettingsCache(client *rplatform.Client, ttl time.Duration) *SettingsCache {
	return &SettingsCache{client: client, ttl: ttl}
}

func (c *SettingsCache) key(k string) string { return "config:" + k }

func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *SettingsCache) Set(ctx context.Context, key, value string) {
	_ = c.client.Set(ctx, c.key(key), value, c.ttl).Err()
}

func (c *SettingsCache) Invalidate(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.key(key)).Err()
}
