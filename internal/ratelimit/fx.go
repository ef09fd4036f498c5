package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)

// NewLimiter builds the backend named by RATE_LIMIT_BACKEND and ties its
// background work to the application lifecycle.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (Limiter, error) {
	limitCfg := cfg.RateLimit
	window := time.Duration(limitCfg.WindowSeconds) * time.Second

	switch limitCfg.Backend {
	case config.RateLimitBackendRedis:
		if limitCfg.RedisAddr == "" {
			return nil, errors.New("rate limit redis addr is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     limitCfg.RedisAddr,
			Password: limitCfg.RedisPassword,
			DB:       limitCfg.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		log.Info("rate limiter configured", zap.String("backend", "redis"), zap.Duration("window", window))
		return NewRedisLimiter(client, window, clk, log), nil
	default:
		limiter := NewMemoryLimiter(window, clk)
		sweep := time.Duration(limitCfg.SweepSeconds) * time.Second
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				limiter.StartSweeper(sweep)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				limiter.Stop()
				return nil
			},
		})
		log.Info("rate limiter configured", zap.String("backend", "memory"), zap.Duration("window", window))
		return limiter, nil
	}
}
