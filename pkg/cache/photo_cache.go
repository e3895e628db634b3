package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PhotoCache keeps photo bytes keyed by their object-storage URL.
// Entries expire after a single fixed TTL; there is no other eviction.
type PhotoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPhotoCache(client *redis.Client, ttl time.Duration) *PhotoCache {
	return &PhotoCache{client: client, ttl: ttl}
}

func PhotoKey(url string) string {
	return "photo:" + url
}

func (c *PhotoCache) Put(ctx context.Context, url string, data []byte) error {
	return c.client.Set(ctx, PhotoKey(url), data, c.ttl).Err()
}

func (c *PhotoCache) Delete(ctx context.Context, url string) error {
	return c.client.Del(ctx, PhotoKey(url)).Err()
}

// Get returns (nil, false, nil) on a miss.
func (c *PhotoCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, PhotoKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
