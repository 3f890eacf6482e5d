package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/davitran/docchat-be/types"
)

// RateLimiter is a per-client token bucket keyed by remote IP. Buckets are
// created lazily and never evicted; the map stays small for typical
// deployments behind a known set of clients.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func NewRateLimiter(config types.RateLimitConfig) *RateLimiter {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = limiter
	}
	return limiter
}

func (l *RateLimiter) Middleware(c *gin.Context) {
	if !l.limiterFor(c.ClientIP()).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, types.DataResponse{
			Status:     "error",
			Message:    "too many requests",
			RetryAfter: 1,
		})
		return
	}
	c.Next()
}
