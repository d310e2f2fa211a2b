package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second
	// Evaluations sit on the request path; a cache round trip slower than
	// this is worse than a miss, so per-operation timeouts stay tight.
	defaultOpTimeout = 250 * time.Millisecond
	defaultPoolSize  = 20
)

// Config captures the settings for the cache connection. The evaluation
// workload is many small GETs per request, so the pool and per-operation
// timeouts matter more than raw throughput.
type Config struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	OpTimeout time.Duration
}

// Connect initialises a Redis client tuned for cache traffic and validates
// connectivity with a ping. Zero pool size and timeout get defaults.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
