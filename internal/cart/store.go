package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant-system/internal/apperrors"
)

// Store keeps one cart per owner for the lifetime of the browsing session
type Store interface {
	Load(ctx context.Context, ownerID string) (*Cart, error)
	Save(ctx context.Context, ownerID string, c *Cart) error
	Delete(ctx context.Context, ownerID string) error
	// Release removes the quantities in ordered from the stored cart and
	// leaves anything added since it was loaded.
	Release(ctx context.Context, ownerID string, ordered *Cart) error
}

const maxReleaseAttempts = 5

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore stores carts as JSON under cart:<owner> with a sliding TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Load returns an empty cart when the owner has none
func (s *RedisStore) Load(ctx context.Context, ownerID string) (*Cart, error) {
	c, err := load(ctx, s.client, cacheKey(ownerID))
	if err != nil {
		return nil, apperrors.Platform("load cart", err)
	}
	return c, nil
}

func load(ctx context.Context, r getter, key string) (*Cart, error) {
	data, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return c, nil
}

// Save writes c and refreshes its TTL. An empty cart deletes the key.
func (s *RedisStore) Save(ctx context.Context, ownerID string, c *Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, ownerID)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return apperrors.Platform("save cart", fmt.Errorf("marshal cart failed: %w", err))
	}

	if err := s.client.Set(ctx, cacheKey(ownerID), data, s.ttl).Err(); err != nil {
		return apperrors.Platform("save cart", fmt.Errorf("redis set failed: %w", err))
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		return apperrors.Platform("delete cart", fmt.Errorf("redis delete failed: %w", err))
	}
	return nil
}

// Release runs under WATCH so a concurrent Save is never overwritten; the
// transaction is retried when the key changes underneath it.
func (s *RedisStore) Release(ctx context.Context, ownerID string, ordered *Cart) error {
	key := cacheKey(ownerID)
	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		c.Subtract(ordered)

		var data []byte
		if !c.IsEmpty() {
			if data, err = json.Marshal(c); err != nil {
				return fmt.Errorf("marshal cart failed: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if data == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, data, s.ttl)
			}
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxReleaseAttempts; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return apperrors.Platform("release cart", err)
	}
	return nil
}

func cacheKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}
