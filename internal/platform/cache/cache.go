// Package cache wraps Redis with JSON-encoded values.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values in Redis. Strings are stored as-is.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache wraps client. Every key is prefixed with prefix when non-empty.
func NewCache(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get loads key into dest. found is false when the key is missing.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	return true, decode(raw, dest)
}

// Set stores value under key. A zero ttl keeps the key until deleted.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}

// SetNX stores value only if key is absent and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	raw, err := encode(value)
	if err != nil {
		return false, err
	}
	ok, err := c.client.SetNX(ctx, c.key(key), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("platform/cache: setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("platform/cache: delete %s: %w", key, err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("platform/cache: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// HashGet loads a hash field into dest.
func (c *Cache) HashGet(ctx context.Context, hash, field string, dest any) (bool, error) {
	raw, err := c.client.HGet(ctx, c.key(hash), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/cache: hget %s.%s: %w", hash, field, err)
	}
	return true, decode(raw, dest)
}

// HashSet stores a hash field.
func (c *Cache) HashSet(ctx context.Context, hash, field string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	if err := c.client.HSet(ctx, c.key(hash), field, raw).Err(); err != nil {
		return fmt.Errorf("platform/cache: hset %s.%s: %w", hash, field, err)
	}
	return nil
}

// Flush clears the selected Redis database.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("platform/cache: flush: %w", err)
	}
	return nil
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("platform/cache: encode: %w", err)
	}
	return raw, nil
}

func decode(raw []byte, dest any) error {
	switch d := dest.(type) {
	case nil:
		return nil
	case *string:
		*d = string(raw)
		return nil
	case *[]byte:
		*d = append((*d)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("platform/cache: decode: %w", err)
	}
	return nil
}
