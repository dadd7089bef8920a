package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// rateLimitScript считает запросы в фиксированном окне. Счётчик и его
// время жизни выставляются атомарно.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Allow учитывает запрос клиента key и сообщает, укладывается ли он в limit
// запросов за window. Второе значение: через сколько окно сбросится.
func (c *Cache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	const op = "cache.Allow"

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}
	raw, err := rateLimitScript.Run(ctx, c.Db, []string{rateLimitKeyPrefix + key}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w", op, err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("%s: unexpected response %T", op, raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("%s: unexpected count type %T", op, values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}
	return count <= int64(limit), time.Duration(ttlMs) * time.Millisecond, nil
}
