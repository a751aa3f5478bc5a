package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usermanagement/account-api/internal/core/domain"
)

const defaultRoleTTL = time.Hour

// RoleCache remembers role names known to exist in the credential store.
// Key format: role:exists:<NORMALIZED_NAME>
type RoleCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRoleCache wraps client. A non-positive ttl falls back to one hour.
func NewRoleCache(client redis.Cmdable, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = defaultRoleTTL
	}
	return &RoleCache{client: client, ttl: ttl}
}

// Known reports whether name was remembered and has not expired.
func (c *RoleCache) Known(ctx context.Context, name string) (bool, error) {
	n, err := c.client.Exists(ctx, roleKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("role cache lookup: %w", err)
	}
	return n > 0, nil
}

// Remember marks every name as existing for the cache TTL.
func (c *RoleCache) Remember(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, name := range names {
			p.Set(ctx, roleKey(name), "1", c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("role cache store: %w", err)
	}
	return nil
}

// Forget evicts name.
func (c *RoleCache) Forget(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, roleKey(name)).Err(); err != nil {
		return fmt.Errorf("role cache evict: %w", err)
	}
	return nil
}

func roleKey(name string) string {
	return "role:exists:" + domain.Normalize(name)
}
