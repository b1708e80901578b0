// Package cache provides the TTL key/value store used to avoid re-fetching
// and re-parsing identical queries. A fast in-process tier is always
// present; an optional shared redis tier can be layered on top of it with
// Tiered, which degrades to the in-process tier when redis misbehaves.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Stats describes the state of a cache backend.
type Stats struct {
	Entries int    `json:"entries"`
	Backend string `json:"backend"`
}

// Store is a TTL key/value store for serialized pipeline results.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) Stats
	Close() error
}

// GetJSON reads and decodes a cached value. Any backend or decode failure
// is treated as a miss; the cache never fails a caller.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Printf("[cache] get %q failed: %v", key, err)
		}
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[cache] decode %q failed: %v", key, err)
		return out, false
	}
	return out, true
}

// SetJSON encodes and stores a value. Failures are logged, never surfaced.
func SetJSON[T any](ctx context.Context, s Store, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("[cache] encode %q failed: %v", key, err)
		return
	}
	if err := s.Set(ctx, key, raw, ttl); err != nil {
		log.Printf("[cache] set %q failed: %v", key, err)
	}
}
