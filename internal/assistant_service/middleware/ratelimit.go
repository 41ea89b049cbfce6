package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a fixed-window limiter keyed by caller address. It is
// constructed at startup and injected, never package-level, so tests can run
// isolated instances. State is in-memory only and resets on restart; the
// limiter throttles abuse, it does not enforce correctness.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	windowSize  time.Duration
	maxRequests int
	now         func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(windowSize time.Duration, maxRequests int) *RateLimiter {
	return &RateLimiter{
		windows:     make(map[string]*window),
		windowSize:  windowSize,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// Allow records one request for key and reports whether it is within the
// window budget, along with the remaining budget and the time until the
// window resets.
func (l *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictExpired(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.windowSize {
		w = &window{start: now}
		l.windows[key] = w
	}

	reset = l.windowSize - now.Sub(w.start)
	if w.count >= l.maxRequests {
		return false, 0, reset
	}
	w.count++
	return true, l.maxRequests - w.count, reset
}

// evictExpired drops windows whose period has lapsed. Called under mu on
// every Allow, which bounds the map at one live window per active caller.
func (l *RateLimiter) evictExpired(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.windowSize {
			delete(l.windows, key)
		}
	}
}

// Middleware applies the limiter per caller IP. Rejections get 429 with
// Retry-After and X-RateLimit-* headers.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerAddress(r)
		allowed, remaining, reset := l.Allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(l.now().Add(reset).Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"success":false,"error":"rate limit exceeded, try again later"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerAddress strips the port so every connection from one host shares a
// window. chi's RealIP middleware runs first and rewrites RemoteAddr from
// forwarding headers when present.
func callerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
