package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant-system/internal/models"
)

// ErrCacheMiss is returned by Cache.Get when no snapshot is stored
var ErrCacheMiss = errors.New("cache miss")

const menuCacheKey = "menu:snapshot"

// Cache stores the full public menu
type Cache interface {
	Get(ctx context.Context) (*models.Menu, error)
	Set(ctx context.Context, menu *models.Menu) error
	Invalidate(ctx context.Context) error
}

// RedisCache keeps the menu snapshot as one JSON value
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context) (*models.Menu, error) {
	data, err := c.client.Get(ctx, menuCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var menu models.Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("unmarshal menu failed: %w", err)
	}
	return &menu, nil
}

// Set stores menu with a jittered TTL so replicas do not expire together
func (c *RedisCache) Set(ctx context.Context, menu *models.Menu) error {
	data, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("marshal menu failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/5) + 1))
	if err := c.client.Set(ctx, menuCacheKey, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, menuCacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
