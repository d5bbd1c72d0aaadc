package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-key request rate limit.
type RateLimitConfig struct {
	// Max is how many requests one key may make per window.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
	// KeyFunc derives the limit key from a request. Defaults to the
	// client IP.
	KeyFunc func(*http.Request) string
}

// window holds the request counts a sliding-window limiter needs: the
// current window's count and the previous one's, which decays linearly as
// the current window progresses.
type window struct {
	start     time.Time
	count     float64
	prevCount float64
	prevStart time.Time
}

// limiter tracks one window per key. The clock is a field so tests can
// drive time explicitly.
type limiter struct {
	max    float64
	period time.Duration
	keyFor func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	keyFor := cfg.KeyFunc
	if keyFor == nil {
		keyFor = clientIP
	}
	return &limiter{
		max:     float64(cfg.Max),
		period:  cfg.Window,
		keyFor:  keyFor,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// verdict is the outcome of one admission check.
type verdict struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

// take admits or rejects one request for the given key and, when admitted,
// counts it.
func (l *limiter) take(key string) verdict {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{start: now}
		l.windows[key] = w
	}

	if now.Sub(w.start) >= l.period {
		w.prevCount = w.count
		w.prevStart = w.start
		w.count = 0
		w.start = now.Truncate(l.period)
		if now.Sub(w.prevStart) >= 2*l.period {
			w.prevCount = 0
		}
	}

	// The previous window contributes proportionally to how much of it the
	// sliding window still covers.
	carry := 1 - now.Sub(w.start).Seconds()/l.period.Seconds()
	if carry < 0 {
		carry = 0
	}
	used := w.prevCount*carry + w.count
	resetAt := w.start.Add(l.period)

	if used >= l.max {
		return verdict{allowed: false, remaining: 0, resetAt: resetAt}
	}

	w.count++
	remaining := int(l.max - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return verdict{allowed: true, remaining: remaining, resetAt: resetAt}
}

// evictStale drops keys whose windows no longer influence admission.
func (l *limiter) evictStale() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

// RateLimit returns a middleware enforcing a sliding-window rate limit per
// key. Rejected requests get 429 with a JSON body; every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset headers.
// Stale keys are never evicted; use RateLimitWithCleanup on long-running
// servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitMiddleware(newLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that evicts
// stale keys until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictLoop(ctx)
	return limitMiddleware(l)
}

func limitMiddleware(l *limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := l.take(l.keyFor(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(l.max)))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(v.resetAt.Unix(), 10))

			if !v.allowed {
				retryAfter := time.Until(v.resetAt)
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller's address: X-Forwarded-For first (leftmost
// entry), then X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
