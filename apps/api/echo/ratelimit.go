package echoapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/minerva/core"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	client redis.Cmdable
	logger core.Logger
}

func NewRateLimiter(client redis.Cmdable, logger core.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// Limit allows limit requests per window to the routes of scope from a given IP.
// Requests are let through when Redis is unavailable.
func (rl *RateLimiter) Limit(scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()
			key := fmt.Sprintf("rate_limit:%s:%s", scope, ctx.RealIP())

			count, err := rl.client.Incr(reqCtx, key).Result()
			if err != nil {
				rl.logger.Warn(fmt.Sprintf("rate limiter: %v", err), err)
				return next(ctx)
			}
			if count == 1 {
				if err = rl.client.Expire(reqCtx, key, window).Err(); err != nil {
					rl.logger.Warn(fmt.Sprintf("rate limiter: %v", err), err)
				}
			}

			if count > int64(limit) {
				ttl, err := rl.client.TTL(reqCtx, key).Result()
				if err != nil || ttl < 0 {
					ttl = window
				}
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// NewRedisClient returns a client for conf.Redis, or nil when no address is configured.
func NewRedisClient(conf *core.Config) *redis.Client {
	if conf.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}
