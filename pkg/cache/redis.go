package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBacking implements Backing against a Redis instance, the production
// backing store behind the advisory cache's process-local LRU+TTL layer.
// This package's doc comment already notes that errors from Backing degrade
// to a cache miss rather than propagating; RedisBacking relies on that
// contract for every transient Redis failure.
type RedisBacking struct {
	client *redis.Client
}

// NewRedisBacking dials addr (host:port) and returns a RedisBacking, or an
// error if the initial ping fails. No example repo in the pack calls
// go-redis/v9 from reachable non-test source; this file is this module's
// first concrete consumer, following the Options shape used in the pack's
// own Redis connectivity tests.
func NewRedisBacking(addr, password string, db int) (*RedisBacking, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisBacking{client: client}, nil
}

// Get returns the cached value for key, or (_, false, nil) on a cache miss.
func (r *RedisBacking) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (r *RedisBacking) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisBacking) Close() error {
	return r.client.Close()
}
