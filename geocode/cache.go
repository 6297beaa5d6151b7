// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional lookup cache in front of the provider. A miss and a
// backend failure look the same to the client: not-hit.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

const cacheKeyPrefix = "jobseg:geocode:"

// RedisCache caches lookups in Redis with a TTL. Geocoding results drift
// slowly, so a TTL of days is fine.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr. password may be empty.
func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}

	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	// Best effort; a failed write only costs a future lookup.
	c.client.Set(ctx, cacheKeyPrefix+key, value, c.ttl)
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
