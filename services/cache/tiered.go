package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

// Tiered composes the shared tier with the in-process tier. Writes go to
// both; reads prefer the shared tier and fall back to the in-process one.
// A misbehaving shared backend degrades the cache, it never fails a caller.
type Tiered struct {
	shared Store
	local  Store
}

// NewTiered wraps a shared store over a local one.
func NewTiered(shared, local Store) *Tiered {
	return &Tiered{shared: shared, local: local}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := t.shared.Get(ctx, key)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Printf("[cache] shared tier get failed, using local: %v", err)
	}
	return t.local.Get(ctx, key)
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.shared.Set(ctx, key, value, ttl); err != nil {
		log.Printf("[cache] shared tier set failed: %v", err)
	}
	return t.local.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.shared.Delete(ctx, key); err != nil {
		log.Printf("[cache] shared tier delete failed: %v", err)
	}
	return t.local.Delete(ctx, key)
}

func (t *Tiered) Clear(ctx context.Context) error {
	if err := t.shared.Clear(ctx); err != nil {
		log.Printf("[cache] shared tier clear failed: %v", err)
	}
	return t.local.Clear(ctx)
}

func (t *Tiered) Stats(ctx context.Context) Stats {
	shared := t.shared.Stats(ctx)
	local := t.local.Stats(ctx)
	return Stats{
		Entries: max(shared.Entries, local.Entries),
		Backend: shared.Backend + "+" + local.Backend,
	}
}

func (t *Tiered) Close() error {
	sharedErr := t.shared.Close()
	localErr := t.local.Close()
	if sharedErr != nil {
		return sharedErr
	}
	return localErr
}
