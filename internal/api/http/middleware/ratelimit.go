package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const rateLimitMessage = "Too many requests from this IP, please try again later."

// RateLimiter caps requests per client address with a sliding window: at most
// max requests are accepted in any span of window length.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	max       int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time

	// one "rate limit exceeded" line per second is enough during a flood
	warn rate.Sometimes
}

// visitor holds the accepted request times still inside the window, oldest first.
type visitor struct {
	hits []time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		max:       max,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
		warn:      rate.Sometimes{Interval: time.Second},
	}
}

// Allow records one request for key. It returns how many requests are left in
// the current window or, when denied, how long until the oldest hit expires.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{hits: make([]time.Time, 0, rl.max)}
		rl.visitors[key] = v
	}
	v.expire(now, rl.window)

	if len(v.hits) >= rl.max {
		return false, 0, v.hits[0].Add(rl.window).Sub(now)
	}
	v.hits = append(v.hits, now)
	return true, rl.max - len(v.hits), 0
}

// expire drops hits that are a full window old.
func (v *visitor) expire(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(v.hits) && !v.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		v.hits = append(v.hits[:0], v.hits[i:]...)
	}
}

// sweep drops visitors with nothing left inside the window.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for key, v := range rl.visitors {
		v.expire(now, rl.window)
		if len(v.hits) == 0 {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}

// Middleware keys on gin's ClientIP, so the engine's trusted proxy list
// decides whether forwarding headers are believed.
func (rl *RateLimiter) Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, remaining, retryAfter := rl.Allow(ip)

		c.Header("RateLimit-Limit", strconv.Itoa(rl.max))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			secs := max(int(math.Ceil(retryAfter.Seconds())), 1)
			c.Header("Retry-After", strconv.Itoa(secs))
			rl.warn.Do(func() {
				logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.Int("retry_after_s", secs))
			})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage})
			return
		}
		c.Next()
	}
}
