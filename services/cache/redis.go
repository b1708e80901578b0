package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the optional shared cache tier. TTL handling is native to the
// backend, so Get never has to reason about expiry itself.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a shared-tier client. The connection is verified
// lazily; a dead backend surfaces as per-call errors the tiered wrapper
// degrades around.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		}),
	}
}

// Ping verifies the backend is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return raw, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *Redis) Stats(ctx context.Context) Stats {
	entries, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{Backend: "redis"}
	}
	return Stats{Entries: int(entries), Backend: "redis"}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
