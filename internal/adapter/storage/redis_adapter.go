package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// Fixed window counter: the first hit of a window starts its expiry.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('PEXPIRE', key, window)
end

if current > limit then
	return 0
end

return 1
`)

// RedisAdapter counts requests per key in Redis so every server instance shares one budget.
type RedisAdapter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisAdapter(client *redis.Client, limit int, window time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (r *RedisAdapter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{rateLimitKeyPrefix + key},
		r.limit, r.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
