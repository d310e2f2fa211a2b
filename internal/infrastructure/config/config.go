package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo MongoConfig
	Redis RedisConfig
	Cache CacheConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=featuregate"`
}

type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB,         default=0"`
	PoolSize  int           `env:"REDIS_POOL_SIZE,  default=20"`
	OpTimeout time.Duration `env:"REDIS_OP_TIMEOUT, default=250ms"`
}

// CacheConfig sets the per-namespace TTLs. The per-user namespaces stay
// short so a missed invalidation self-heals quickly; flag metadata and
// rules change rarely and live longer.
type CacheConfig struct {
	UserFlagsTTL  time.Duration `env:"CACHE_USER_FLAGS_TTL,  default=5m"`
	FlagMetaTTL   time.Duration `env:"CACHE_FLAG_META_TTL,   default=30m"`
	RulesTTL      time.Duration `env:"CACHE_RULES_TTL,       default=30m"`
	OnboardingTTL time.Duration `env:"CACHE_ONBOARDING_TTL,  default=10m"`
	RolloutTTL    time.Duration `env:"CACHE_ROLLOUT_TTL,     default=10m"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
