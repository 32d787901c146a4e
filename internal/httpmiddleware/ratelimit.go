package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"geoattend/internal/auth"
	"geoattend/internal/metrics"
)

// SimpleTokenBucket is an in-memory rate limiter keyed by caller identity,
// or by client IP for unauthenticated requests.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// WithClock replaces the limiter's time source.
func (l *SimpleTokenBucket) WithClock(now func() time.Time) *SimpleTokenBucket {
	l.now = now
	return l
}

// GinMiddleware returns gin handler enforcing per-caller limits. Mount it
// after auth.Bearer so authenticated callers get their own bucket; without an
// identity it falls back to the client IP.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return l.middleware(func(c *gin.Context) string {
		if id, ok := auth.IdentityFrom(c); ok {
			return "sub:" + id.Subject
		}
		return "ip:" + c.ClientIP()
	})
}

// IPMiddleware limits by client IP only. Mount it before auth.Bearer so
// requests with bad tokens are throttled too.
func (l *SimpleTokenBucket) IPMiddleware() gin.HandlerFunc {
	return l.middleware(func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

func (l *SimpleTokenBucket) middleware(keyOf func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyOf(c)
		if !l.allow(key) {
			metrics.RateLimited.Inc()
			zerolog.Ctx(c.Request.Context()).Warn().Str("bucket", key).Msg("rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *SimpleTokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
