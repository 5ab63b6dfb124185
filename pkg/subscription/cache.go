package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cache is a read-through cache for subscription rows keyed by tenant id.
// Every successful write path must Delete the tenant's entry; entries also
// expire on their own after the TTL so a missed invalidation degrades to
// staleness bounded by the TTL, never to permanent drift.
type Cache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, bool)
	Set(ctx context.Context, tenantID uuid.UUID, sub *Subscription, ttl time.Duration)
	Delete(ctx context.Context, tenantID uuid.UUID)
	Close() error
}

type memoryCacheItem struct {
	sub       *Subscription
	expiresAt time.Time
}

// memoryCache is the default single-process cache. Multi-instance
// deployments should use the Redis cache instead so invalidations are
// visible across processes.
type memoryCache struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]memoryCacheItem
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func NewMemoryCache() Cache {
	c := &memoryCache{
		items: make(map[uuid.UUID]memoryCacheItem),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *memoryCache) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, bool) {
	c.mu.RLock()
	item, ok := c.items[tenantID]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return clone(item.sub), true
}

func (c *memoryCache) Set(ctx context.Context, tenantID uuid.UUID, sub *Subscription, ttl time.Duration) {
	if sub == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[tenantID] = memoryCacheItem{
		sub:       clone(sub),
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *memoryCache) Delete(ctx context.Context, tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, tenantID)
}

func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// noOpCache disables caching; useful in tests.
type noOpCache struct{}

func NewNoOpCache() Cache { return noOpCache{} }

func (noOpCache) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, bool) { return nil, false }
func (noOpCache) Set(ctx context.Context, tenantID uuid.UUID, sub *Subscription, ttl time.Duration) {
}
func (noOpCache) Delete(ctx context.Context, tenantID uuid.UUID) {}
func (noOpCache) Close() error                                   { return nil }
