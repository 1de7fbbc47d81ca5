// Package cache stores rendered published post listings in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crucial707/inkwell/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	// PublishedListPrefix prefixes every cached page of the public listing.
	PublishedListPrefix = "posts:published:"
	// generationKey counts invalidations. It sits outside PublishedListPrefix.
	generationKey = "posts:published-gen"
)

// PublishedListKey is the cache key of one page of the public listing
// under generation gen. A page filled under an older generation is never
// read again.
func PublishedListKey(gen int64, page, limit int) string {
	return fmt.Sprintf("%sgen=%d:page=%d:limit=%d", PublishedListPrefix, gen, page, limit)
}

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg config.Config) *RedisClient {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisClient{client: c, ttl: time.Duration(cfg.CacheTTLSeconds) * time.Second}
}

func (r *RedisClient) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisClient) Close() error { return r.client.Close() }

// GetJSON decodes the value at key into dest. It reports false on a miss.
func (r *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, dest)
}

func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, b, r.ttl).Err()
}

// Generation is the current listing generation. A missing counter is 0.
func (r *RedisClient) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate starts a new generation, then drops the cached pages.
func (r *RedisClient) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		return err
	}
	return r.DeletePrefix(ctx, PublishedListPrefix)
}

// DeletePrefix removes every key starting with prefix.
func (r *RedisClient) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
