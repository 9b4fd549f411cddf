// ratelimit.go enforces per-client token-bucket limits. Three profiles are
// tuned to the cost of what they guard: general reads, record saves, and the
// audit CSV export.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig holds one limiter profile.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	// CleanupInterval is how often idle client buckets are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig covers general API reads. The editing surface loads a
// project's field catalog and dropdown options in parallel, hence the burst.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// MutationRateLimitConfig covers the record save endpoint. One save per second
// sustained is plenty for form edits.
func MutationRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// ExportRateLimitConfig covers the audit CSV export, which scans the full
// filtered range per request.
func ExportRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         3,
		CleanupInterval:   5 * time.Minute,
	}
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-memory token-bucket limiter keyed per client.
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.RWMutex
	buckets map[string]*bucket
	stopCh  chan struct{}
}

// NewRateLimiter creates a limiter and starts its idle-bucket eviction loop.
// Call Stop on shutdown.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastUpdate) > 10*time.Minute {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the eviction goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) refillRate() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// Allow consumes one token for key, reporting whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		// A new client starts with a full burst allowance.
		rl.buckets[key] = &bucket{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true
	}

	refilled := b.tokens + now.Sub(b.lastUpdate).Seconds()*rl.refillRate()
	if max := float64(rl.config.BurstSize); refilled > max {
		refilled = max
	}
	b.lastUpdate = now

	if refilled < 1 {
		b.tokens = refilled
		return false
	}
	b.tokens = refilled - 1
	return true
}

// RemainingTokens reports the current allowance for key without consuming.
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, ok := rl.buckets[key]
	if !ok {
		return rl.config.BurstSize
	}
	refilled := b.tokens + time.Since(b.lastUpdate).Seconds()*rl.refillRate()
	if max := float64(rl.config.BurstSize); refilled > max {
		refilled = max
	}
	return int(refilled)
}

// RateLimitMiddleware rejects over-limit requests with 429 and standard
// X-RateLimit headers.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))
		c.Next()
	}
}

// rateLimitKey buckets by actor name when identity has already been resolved
// on this request, otherwise by client IP. Per-route limiters mounted after
// ActorIdentity get per-user buckets; the general limiter runs earlier and
// buckets by IP.
func rateLimitKey(c *gin.Context) string {
	if v, ok := c.Get(userNameKey); ok {
		if name, ok := v.(string); ok && name != "" && name != AnonymousUser {
			return "user:" + name
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
