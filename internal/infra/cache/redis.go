package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/config"
)

// ErrMiss is returned when a key is absent or the cache is disabled
var ErrMiss = errors.New("cache: miss")

// Cache is a JSON read-through cache backed by Redis.
// A nil client is a valid disabled cache; every call degrades to a miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis. When Redis is disabled in config or unreachable,
// the returned cache is disabled rather than failing startup.
func New(cfg config.RedisConfig) *Cache {
	if !cfg.Enabled {
		return &Cache{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("⚠️  Redis unreachable, cache disabled")
		return &Cache{}
	}

	log.Info().Str("addr", cfg.Addr).Msg("✅ Redis connected")
	return &Cache{client: client, ttl: cfg.CacheTTL}
}

// Get unmarshals a cached value into dest
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Set stores a value as JSON with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Delete removes a key; used to invalidate after a batch run
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
