package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"reclink/internal/match"
)

const redisKeyPrefix = "reclink:matches:"

// RedisBackend shares cached search results across instances. All failures
// degrade to cache misses; the cache is advisory so a flaky Redis never
// blocks matching.
type RedisBackend struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBackend(client *redis.Client, logger *slog.Logger) *RedisBackend {
	return &RedisBackend{client: client, logger: logger}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (*match.Result, bool) {
	payload, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil && b.logger != nil {
			b.logger.DebugContext(ctx, "match cache redis get failed", "error", err)
		}
		return nil, false
	}

	var result match.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		if b.logger != nil {
			b.logger.WarnContext(ctx, "match cache entry corrupt, dropping", "key", key, "error", err)
		}
		b.Delete(ctx, key)
		return nil, false
	}
	return &result, true
}

func (b *RedisBackend) Set(ctx context.Context, key string, result *match.Result, ttl time.Duration) {
	payload, err := json.Marshal(result)
	if err != nil {
		if b.logger != nil {
			b.logger.WarnContext(ctx, "match cache marshal failed", "key", key, "error", err)
		}
		return
	}
	if err := b.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil && b.logger != nil {
		b.logger.DebugContext(ctx, "match cache redis set failed", "error", err)
	}
}

func (b *RedisBackend) Delete(ctx context.Context, key string) {
	if err := b.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil && b.logger != nil {
		b.logger.DebugContext(ctx, "match cache redis delete failed", "error", err)
	}
}
