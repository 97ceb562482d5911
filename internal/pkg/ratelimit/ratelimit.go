// Package ratelimit is gin middleware for per-IP rate limiting.
//
// Simple in-memory implementation, not shared between instances. Each client
// IP gets a token bucket holding max requests that refills over window, which
// approximates "max requests per window" without the burst at window edges of
// a fixed counter.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

// Message is sent with every 429.
const Message = "Too many requests from this IP, please try again later."

// visitor tracks a single IPs limiter and last activity
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged tracks whether the first denial was reported; reset on eviction
	logged bool
}

// IPLimiter holds per-IP rate limiters with background eviction
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perSecond rate.Limit
	burst     int

	// ttl controls how long an idle IP stays in the map before cleanup evicts it
	ttl time.Duration

	now func() time.Time

	// OnFirstDenied is called once per visitor when they first get rate limited
	OnFirstDenied func(ip string)

	// OnDenied is called on every denied request
	OnDenied func(ip string)
}

type Option func(*IPLimiter)

// WithWindow allows max requests per window, refilled continuously.
func WithWindow(max int, window time.Duration) Option {
	return func(l *IPLimiter) {
		if max <= 0 || window <= 0 {
			return
		}
		l.burst = max
		l.perSecond = rate.Limit(float64(max) / window.Seconds())
		if l.ttl < window {
			l.ttl = window
		}
	}
}

// WithTTL controls how long an idle IP stays in the map before cleanup
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) {
		l.ttl = d
	}
}

// WithOnFirstDenied sets a callback for the first denial per visitor, used for logging.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnFirstDenied = fn
	}
}

// WithOnDenied sets a callback for every denied request, used for metrics.
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnDenied = fn
	}
}

// New creates an IPLimiter and starts the background cleanup goroutine, which
// stops when ctx is done.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:  make(map[string]*visitor),
		perSecond: rate.Limit(100.0 / (15 * time.Minute).Seconds()),
		burst:     100,
		ttl:       15 * time.Minute,
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow reports whether ip may proceed and how many requests it has left.
func (l *IPLimiter) allow(ip string) (bool, int) {
	now := l.now()

	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)
	remaining := int(math.Max(0, math.Floor(v.limiter.TokensAt(now))))

	first := !allowed && !v.logged
	if first {
		v.logged = true
	}
	// hooks may do slow work; never run them under the lock
	l.mu.Unlock()

	if first && l.OnFirstDenied != nil {
		l.OnFirstDenied(ip)
	}
	if !allowed && l.OnDenied != nil {
		l.OnDenied(ip)
	}
	return allowed, remaining
}

// retryAfter is the time until one token is back in the bucket.
func (l *IPLimiter) retryAfter() time.Duration {
	if l.perSecond <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(l.perSecond))
}

// cleanup periodically evicts visitors that haven't been seen within the TTL.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
}

// Middleware sets the RateLimit headers and forwards a 429 for IPs over their limit.
func (l *IPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining := l.allow(c.ClientIP())

		c.Header("RateLimit-Limit", strconv.Itoa(l.burst))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			secs := int(math.Ceil(l.retryAfter().Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			response.Error(c, apperror.TooManyRequests(Message))
			return
		}

		c.Next()
	}
}
