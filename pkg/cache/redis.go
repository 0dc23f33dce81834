package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-material-store/pkg/config"

	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace      = "ms"
	sessionPrefix     = "session"
	idempotencyPrefix = "idempotency"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Store is the small key/value surface used for session lookups and webhook dedup.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	store cmdable
	raw   *redis.Client
}

// NewRedis connects and pings Redis.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis address is required")
	}
	raw := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw}, nil
}

func (c *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (c *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.store.Set(ctx, key, value, ttl).Err()
}

func (c *RedisStore) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...).Err()
}

func (c *RedisStore) Ping(ctx context.Context) error {
	return c.store.Ping(ctx).Err()
}

func (c *RedisStore) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// SessionKey addresses the cached session of one login (token version).
func SessionKey(userID, tokenVersion string) string {
	return buildKey(sessionPrefix, userID, tokenVersion)
}

// IdempotencyKey addresses a processed-event marker within a scope.
func IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ":")
}
