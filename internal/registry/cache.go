package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/config"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
)

// KVClient is the key-value cache surface the registry exposes. Misses
// are reported as dberrors.ErrCacheMiss, never as empty values.
type KVClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// redisKV implements KVClient on go-redis
type redisKV struct {
	client *redis.Client
}

// newRedisKV creates a Redis client and verifies connectivity
func newRedisKV(ctx context.Context, cfg config.CacheConfig) (KVClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisKV{client: client}, nil
}

func (s *redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", dberrors.ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *redisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // no expiry
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisKV) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisKV) Close() error {
	return s.client.Close()
}

// CacheGet returns the cached value for key, or dberrors.ErrCacheMiss.
func (r *Registry) CacheGet(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()

	v, err := r.cache.Get(ctx, key)
	if errors.Is(err, dberrors.ErrCacheMiss) {
		r.metrics.CacheMisses.Inc()
		return "", err
	}
	if err != nil {
		r.metrics.QueryErrors.WithLabelValues(RoleCache).Inc()
		return "", dberrors.New(dberrors.ErrCodeCacheFailed, "cache get failed", err)
	}
	r.metrics.CacheHits.Inc()
	return v, nil
}

// CacheSet stores a value. ttl <= 0 means no expiry.
func (r *Registry) CacheSet(ctx context.Context, key string, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()

	if err := r.cache.Set(ctx, key, value, ttl); err != nil {
		r.metrics.QueryErrors.WithLabelValues(RoleCache).Inc()
		return dberrors.New(dberrors.ErrCodeCacheFailed, "cache set failed", err)
	}
	return nil
}

// CacheDel removes a key. Deleting an absent key is not an error.
func (r *Registry) CacheDel(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()

	if err := r.cache.Del(ctx, key); err != nil {
		r.metrics.QueryErrors.WithLabelValues(RoleCache).Inc()
		return dberrors.New(dberrors.ErrCodeCacheFailed, "cache del failed", err)
	}
	return nil
}
