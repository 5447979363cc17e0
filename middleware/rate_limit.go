// middleware/rate_limit.go
package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// LimiterConfig sets the token bucket used for every key.
type LimiterConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration // buckets unused for this long are dropped
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one in-memory token bucket per key.
type RateLimiter struct {
	conf    LimiterConfig
	mu      sync.Mutex
	buckets map[string]*keyLimiter
}

// NewRateLimiter creates the limiter and evicts idle buckets until ctx is done.
func NewRateLimiter(ctx context.Context, conf LimiterConfig) *RateLimiter {
	if conf.IdleTTL <= 0 {
		conf.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		conf:    conf,
		buckets: make(map[string]*keyLimiter),
	}
	go rl.evictLoop(ctx)
	return rl
}

func (rl *RateLimiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.conf.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, v := range rl.buckets {
		if now.Sub(v.lastSeen) > rl.conf.IdleTTL {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.conf.RPS), rl.conf.Burst)
	rl.buckets[key] = &keyLimiter{limiter: lim, lastSeen: now}
	return lim
}

// Middleware limits by client IP and answers 429 once the bucket is empty.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.getLimiter(c.IP()).Allow() {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		}
		return c.Next()
	}
}
