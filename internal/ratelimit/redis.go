package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rollcall/internal/clock"
	"go.uber.org/zap"
)

const keyPrefix = "rollcall:ratelimit:"

// The window starts on the first INCR of a key. PEXPIRE is only set then, so
// denied calls never push the reset time forward.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end

return {count, ttl}
`

// RedisLimiter shares fixed windows across instances through redis.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	window time.Duration
	clock  clock.Clock
	log    *zap.Logger
}

func NewRedisLimiter(client redis.Scripter, window time.Duration, clk clock.Clock, log *zap.Logger) *RedisLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		window: window,
		clock:  clk,
		log:    log.Named("ratelimit.redis"),
	}
}

// Consume allows the request when redis cannot be reached.
func (l *RedisLimiter) Consume(ctx context.Context, key string, limit int) Result {
	limit = normalizeLimit(limit)
	now := l.clock.Now()

	count, ttl, err := l.incr(ctx, key)
	if err != nil {
		l.log.Warn("rate limit backend unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: now.Add(l.window)}
	}

	return resultFromCount(count, ttl, limit, now)
}

func (l *RedisLimiter) incr(ctx context.Context, key string) (int64, time.Duration, error) {
	if l.client == nil {
		return 0, 0, errors.New("rate limit redis client not configured")
	}

	res, err := l.script.Run(
		ctx,
		l.client,
		[]string{keyPrefix + key},
		l.window.Milliseconds(),
	).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) < 2 {
		return 0, 0, errors.New("invalid rate limit script response")
	}

	return castToInt(res[0]), time.Duration(castToInt(res[1])) * time.Millisecond, nil
}

func resultFromCount(count int64, ttl time.Duration, limit int, now time.Time) Result {
	resetAt := now.Add(ttl)
	if count > int64(limit) {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - int(count), ResetAt: resetAt}
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

var _ Limiter = (*RedisLimiter)(nil)
