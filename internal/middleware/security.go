package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxBodySize caps request bodies. Webhook deliveries are small JSON documents.
const MaxBodySize = 1 << 20

// SecurityHeadersMiddleware sets response headers appropriate for a JSON/text-only service
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// LimitBodyMiddleware caps the request body at MaxBodySize
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window per-key request limiter
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	rate        int
	window      time.Duration
	cleanup     time.Duration
	lastCleanup time.Time
}

// NewRateLimiter allows rate requests per window for each key
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  2 * window,
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > rl.cleanup {
		for k, v := range rl.visitors {
			if now.Sub(v.windowStart) > rl.cleanup {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.windowStart) > rl.window {
		rl.visitors[key] = &visitor{count: 1, windowStart: now}
		return true
	}
	if v.count >= rl.rate {
		return false
	}
	v.count++
	return true
}

// RateLimitMiddleware rejects clients exceeding the limiter with 429. Clients are keyed by
// ClientIP, so forwarding headers only count when ClientIPMiddleware trusts them.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(limiter.window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !limiter.Allow(ip) {
				log.Warn().Str("client_ip", ip).Str("path", r.URL.Path).Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
