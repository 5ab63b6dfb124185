package subscription

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "billing:subscription:"

// redisCache backs the subscription read cache with a shared Redis tier so
// an invalidation issued by one instance is seen by all of them. Cache
// failures are deliberately soft: a Redis outage turns reads into store
// reads, it never turns them into errors.
type redisCache struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisCache(client *redis.Client, log *slog.Logger) Cache {
	if log == nil {
		log = slog.Default()
	}
	return &redisCache{client: client, log: log}
}

func (c *redisCache) key(tenantID uuid.UUID) string {
	return redisKeyPrefix + tenantID.String()
}

func (c *redisCache) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, bool) {
	data, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "subscription cache read failed", "error", err, "tenant_id", tenantID)
		}
		return nil, false
	}

	var sub Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		// Poisoned entry, drop it rather than serving garbage.
		c.client.Del(ctx, c.key(tenantID))
		return nil, false
	}
	return &sub, true
}

func (c *redisCache) Set(ctx context.Context, tenantID uuid.UUID, sub *Subscription, ttl time.Duration) {
	if sub == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(tenantID), data, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "subscription cache write failed", "error", err, "tenant_id", tenantID)
	}
}

func (c *redisCache) Delete(ctx context.Context, tenantID uuid.UUID) {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		c.log.WarnContext(ctx, "subscription cache invalidation failed", "error", err, "tenant_id", tenantID)
	}
}

func (c *redisCache) Close() error { return nil }
