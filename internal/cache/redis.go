package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"taskvault/internal/config"
	"taskvault/pkg/logger"
)

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return b, err
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, val, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewRedisIndex builds the production Index from config. An invalid or
// empty Redis URL yields a permanently degraded index rather than an
// error: the service runs fine without its cache.
func NewRedisIndex(ctx context.Context) *Index {
	cfg := config.Get()
	if cfg.RedisURL == "" {
		logger.Warn(ctx, "REDIS_URL not set, running without cache")
		return NewIndex(ctx, nil, cfg.CacheTTL, cfg.CacheOpTimeout)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error(ctx, "Invalid REDIS_URL, running without cache", "error", err)
		return NewIndex(ctx, nil, cfg.CacheTTL, cfg.CacheOpTimeout)
	}
	opts.PoolSize = cfg.RedisPoolSize
	client := redis.NewClient(opts)
	idx := NewIndex(ctx, &redisStore{client: client}, cfg.CacheTTL, cfg.CacheOpTimeout)
	if idx.Healthy() {
		logger.Info(ctx, "Redis cache initialized", "pool_size", cfg.RedisPoolSize)
	} else {
		logger.Warn(ctx, "Redis unreachable at startup, cache degraded until probe succeeds")
	}
	return idx
}
