package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadTTL = 12 * time.Hour

// Cache keeps per-module unread counters in Redis so dashboard badges do not
// hit PostgreSQL on every poll. Counters are advisory; the database count is
// the source of truth on a miss.
type Cache struct {
	client *redis.Client
}

// NewCache constructs the cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func unreadKey(module string) string {
	return fmt.Sprintf("notify:unread:%s", module)
}

// UnreadCount returns the cached counter, or found=false on a miss.
func (c *Cache) UnreadCount(ctx context.Context, module string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, unreadKey(module)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetUnreadCount seeds the counter after a database count.
func (c *Cache) SetUnreadCount(ctx context.Context, module string, count int64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, unreadKey(module), count, unreadTTL)
}

// IncrUnread bumps the counter when a notification is emitted. A missing key
// stays missing so the next read reseeds from the database.
func (c *Cache) IncrUnread(ctx context.Context, module string) {
	c.adjust(ctx, module, 1)
}

// DecrUnread drops the counter when a notification is read.
func (c *Cache) DecrUnread(ctx context.Context, module string) {
	c.adjust(ctx, module, -1)
}

func (c *Cache) adjust(ctx context.Context, module string, delta int64) {
	if c == nil || c.client == nil {
		return
	}
	key := unreadKey(module)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return
	}
	c.client.IncrBy(ctx, key, delta)
	c.client.Expire(ctx, key, unreadTTL)
}
