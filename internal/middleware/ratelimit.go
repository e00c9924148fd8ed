// Package middleware provides logging, metrics, tracing, token and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot count it.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// Quota is the state of one fixed window after a request was counted.
type Quota struct {
	Allowed   bool
	Remaining int
	// ResetIn is how long until the window closes.
	ResetIn time.Duration
}

func limiterBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "test", "stress":
		return true
	}
	return false
}

// Take counts one request for id against resource in a fixed window of
// length window. The counter and its expiry are written in one transaction,
// so a crash between the two cannot leave a key without a TTL.
func Take(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Quota, error) {
	if limiterBypassed() {
		return Quota{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}
	if rdb == nil {
		return Quota{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Quota{}, err
	}

	count := int(incr.Val())
	q := Quota{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		ResetIn:   ttl.Val(),
	}
	if q.ResetIn <= 0 {
		q.ResetIn = window
	}
	return q, nil
}

// CheckRateLimit reports whether the request fits in the current window.
// Limiting is disabled when APP_ENV is "test" or "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	q, err := Take(ctx, rdb, resource, id, limit, window)
	if err != nil {
		return false, err
	}
	return q.Allowed, nil
}

// RateLimit enforces limit requests per window, keyed by the authenticated
// user when known and by client IP otherwise. Redis failures fail open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy. The
// resource defaults to the request path.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		q, err := Take(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limiter unavailable, rejecting",
				slog.String("resource", resource), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "rate limit unavailable",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		if !q.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(q.ResetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		}
		return c.Next()
	}
}
