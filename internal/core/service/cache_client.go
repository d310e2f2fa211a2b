package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/progressly/featuregate/internal/core/ports"
	"github.com/progressly/featuregate/internal/metrics"
)

// cacheClient wraps the raw cache store with JSON codec, per-namespace TTLs,
// metrics, and the fail-open policy: every cache failure is logged and
// treated as a miss, never surfaced to the caller.
type cacheClient struct {
	store ports.CacheStore
	ttls  CacheTTLs
	log   zerolog.Logger
}

// get loads and decodes the value at key into dest, reporting whether a
// usable entry was found.
func (c *cacheClient) get(ctx context.Context, ns Namespace, key string, dest any) bool {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues(string(ns), "error").Inc()
		c.log.Warn().Err(err).Str("cache_key", key).Msg("cache get failed, bypassing")
		return false
	}
	if !found {
		metrics.CacheOpsTotal.WithLabelValues(string(ns), "miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheOpsTotal.WithLabelValues(string(ns), "error").Inc()
		c.log.Warn().Err(err).Str("cache_key", key).Msg("cache entry corrupt, treating as miss")
		return false
	}
	metrics.CacheOpsTotal.WithLabelValues(string(ns), "hit").Inc()
	return true
}

// set encodes and stores the value with the namespace TTL. Failures are
// logged only; the fresh value was already computed from the store.
func (c *cacheClient) set(ctx context.Context, ns Namespace, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("cache_key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttls.For(ns)); err != nil {
		c.log.Warn().Err(err).Str("cache_key", key).Msg("cache set failed")
	}
}

// delete removes keys, logging failures. Invalidation is always targeted;
// there is deliberately no bulk flush.
func (c *cacheClient) delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Warn().Err(err).Strs("cache_keys", keys).Msg("cache invalidation failed")
	}
}
