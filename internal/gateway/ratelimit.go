package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiterRegistry keeps one token bucket per client IP and evicts buckets
// that have been idle longer than staleAfter.
type ipLimiterRegistry struct {
	mu         sync.Mutex
	buckets    map[string]*ipBucket
	rps        rate.Limit
	burst      int
	staleAfter time.Duration
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiterRegistry(rps, burst int, staleAfter time.Duration) *ipLimiterRegistry {
	return &ipLimiterRegistry{
		buckets:    make(map[string]*ipBucket),
		rps:        rate.Limit(rps),
		burst:      burst,
		staleAfter: staleAfter,
	}
}

func (r *ipLimiterRegistry) allow(ip string) bool {
	r.mu.Lock()
	b, ok := r.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	r.mu.Unlock()
	return b.limiter.Allow()
}

// sweep evicts stale buckets every interval. Runs until the process exits.
func (r *ipLimiterRegistry) sweep(interval time.Duration) {
	for {
		time.Sleep(interval)
		r.mu.Lock()
		for ip, b := range r.buckets {
			if time.Since(b.lastSeen) > r.staleAfter {
				delete(r.buckets, ip)
			}
		}
		r.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	registry := newIPLimiterRegistry(rps, burst, 10*time.Minute)
	go registry.sweep(5 * time.Minute)

	return func(c *gin.Context) {
		if !registry.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
