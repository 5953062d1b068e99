package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) returns an error.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis fails.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis fails.
	FailClosed
)

// defaultMaxLocalKeys bounds the in-process fallback buckets.
const defaultMaxLocalKeys = 10000

// RateLimiter enforces fixed-window limits in Redis. Without a Redis client
// it falls back to per-process token buckets keyed the same way.
type RateLimiter struct {
	rdb      *redis.Client
	disabled bool

	mu        sync.Mutex
	local     map[string]*localBucket
	maxLocal  int
	lastSweep time.Time
	now       func() time.Time
}

// localBucket is idle once lastSeen is a full window old; its bucket has
// refilled by then and dropping it loses nothing.
type localBucket struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// NewRateLimiter returns a limiter for env. Limits are not enforced in the
// development, test and stress environments.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	if env == "" {
		env = "development"
	}
	disabled := false
	switch env {
	case "test", "development", "stress":
		disabled = true
	}
	return &RateLimiter{
		rdb:      rdb,
		disabled: disabled,
		local:    make(map[string]*localBucket),
		maxLocal: defaultMaxLocalKeys,
		now:      time.Now,
	}
}

// Allow reports whether one more request for (resource, id) fits in the window.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if l.disabled {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	if l.rdb == nil {
		return l.localLimiter(key, limit, window).Allow(), nil
	}

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

func (l *RateLimiter) localLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if b, ok := l.local[key]; ok {
		b.lastSeen = now
		return b.lim
	}

	if len(l.local) >= l.maxLocal || now.Sub(l.lastSweep) >= time.Minute {
		l.sweepLocked(now)
	}
	if len(l.local) >= l.maxLocal {
		l.evictOldestLocked()
	}

	b := &localBucket{
		lim:      rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		window:   window,
		lastSeen: now,
	}
	l.local[key] = b
	return b.lim
}

// sweepLocked drops idle buckets. l.mu must be held.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for key, b := range l.local {
		if now.Sub(b.lastSeen) >= b.window {
			delete(l.local, key)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, b := range l.local {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = key, b.lastSeen
		}
	}
	delete(l.local, oldestKey)
}

// Handler returns a Fiber middleware enforcing limit requests per window.
// Requests are keyed by the authenticated viewer when known, otherwise by IP.
func (l *RateLimiter) Handler(name string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		allowed, err := l.Allow(c.UserContext(), name, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", name),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
