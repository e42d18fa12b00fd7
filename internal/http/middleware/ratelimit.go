// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with
// per-identity buckets and opportunistic garbage collection:
//   - per-key token buckets using golang.org/x/time/rate
//   - pluggable identity function (authenticated user or client IP)
//   - cleanup of idle buckets to bound memory
//   - bypass for idempotent replays (when paired with IdempotencyValidator)
//
// The limiter is process-local and meant for edge-level abuse control; it is
// not an authorization mechanism. The payment webhook route is never limited.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the actor set by Auth(), falling back to the
// client IP for anonymous routes. Keys are prefixed ("user:42", "ip:203.0.113.7")
// so the two namespaces never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if a, ok := actorFrom(c); ok && a.ID != 0 {
			return "user:" + strconv.FormatUint(uint64(a.ID), 10)
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys buckets by client IP only.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Buckets are created on
// demand; buckets idle for longer than ttl are swept every gcEvery lookups.
// It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

const gcEvery = 5000

// NewRateLimiter returns a limiter allowing rps tokens per second with the
// given burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Buckets reports how many buckets are live.
func (rl *RateLimiter) Buckets() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// getVisitor returns the limiter for key, creating it if absent. The sweep
// runs before the lookup so a stale bucket is evicted even when it is the one
// being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which Handler() serves without consuming a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
// Replays flagged by IdempotencyValidator are not limited. Denied requests get
// a 429 whose Retry-After is the whole number of seconds until the bucket
// holds a token again:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 3
//	{"request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		lim := rl.getVisitor(rl.keyFn(c))
		now := time.Now()
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		rid, _ := c.Get(requestIDKey)
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(lim, now)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": asString(rid),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfterSeconds peeks at the wait for the next token without consuming
// it. The result is at least 1 and capped at an hour.
func retryAfterSeconds(lim *rate.Limiter, now time.Time) int {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 3600
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)

	secs := int(math.Ceil(d.Seconds()))
	switch {
	case secs < 1:
		return 1
	case secs > 3600:
		return 3600
	}
	return secs
}
