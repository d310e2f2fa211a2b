package ports

import (
	"context"
	"time"
)

// CacheStore is a generic key/value cache with TTL support. The engine
// treats it strictly as a cache: any value must be recomputable from the
// repositories, and store errors are logged and bypassed, never surfaced.
type CacheStore interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
