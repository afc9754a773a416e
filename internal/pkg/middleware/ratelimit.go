// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/raglab/raglab/internal/pkg/errors"
)

// staleAfter is how long a client may be idle before its bucket is evicted.
const staleAfter = 5 * time.Minute

// retryAfterSeconds is advertised to throttled clients. Dashboard pollers
// back off for at least this long before retrying.
const retryAfterSeconds = 1

// RateLimiter applies a per-client token bucket keyed by client IP.
type RateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientBucket
	rate    rate.Limit
	burst   int
	cleanup time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64
	// Burst is the maximum burst size per client.
	Burst int
	// CleanupInterval is how often idle client buckets are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		CleanupInterval:   time.Minute,
	}
}

// NewRateLimiter creates a rate limiter and starts its eviction loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		rate:    rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		cleanup: cfg.CleanupInterval,
		stop:    make(chan struct{}),
	}

	go rl.evictLoop()

	return rl
}

// Allow reports whether a request from the given client IP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	bucket, ok := rl.clients[clientIP]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[clientIP] = bucket
	}
	bucket.lastSeen = time.Now()
	rl.mu.Unlock()

	return bucket.limiter.Allow()
}

// Stop terminates the eviction loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter)
			rl.mu.Lock()
			for ip, bucket := range rl.clients {
				if bucket.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			apperrors.WriteErrorWithStatus(w, http.StatusTooManyRequests,
				apperrors.RateLimitedError(retryAfterSeconds))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request, preferring proxy
// headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop in the chain is the originating client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
