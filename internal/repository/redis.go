package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

// releaseScript deletes the guard only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// rateLimitScript counts an attempt and (re)arms the window on any counter without a TTL.
var rateLimitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type RedisGuardRepository struct {
	client *redis.Client
}

// NewRedisClient builds a client from config. It does not dial until first use.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisGuardRepository(client *redis.Client) *RedisGuardRepository {
	return &RedisGuardRepository{client: client}
}

func (r *RedisGuardRepository) AcquireSlot(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.client == nil {
		return "", false, errNilClient
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, "slot_guard:"+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire slot guard: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisGuardRepository) ReleaseSlot(ctx context.Context, key, token string) error {
	if r.client == nil {
		return errNilClient
	}
	if err := releaseScript.Run(ctx, r.client, []string{"slot_guard:" + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release slot guard: %w", err)
	}
	return nil
}

func (r *RedisGuardRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	count, err := rateLimitScript.Run(ctx, r.client, []string{"rate_limit:" + key}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to count rate limit attempt: %w", err)
	}

	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
