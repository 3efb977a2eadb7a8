package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "guard:"

// hitScript increments the counter and starts its window on the first hit.
var hitScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// Acquire reports whether key was free and is now held for ttl.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, guardKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Hit records one attempt and reports whether the key is still within limit.
func (g *RedisGuard) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := hitScript.Run(ctx, g.client, []string{guardKeyPrefix + key}, window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis hit failed: %w", err)
	}
	return n <= limit, nil
}

func (g *RedisGuard) Reset(ctx context.Context, key string) error {
	return g.Release(ctx, key)
}
