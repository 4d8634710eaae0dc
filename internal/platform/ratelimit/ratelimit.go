// Package ratelimit throttles registration submissions per client IP with an
// in-memory sliding window. Kiosks share one process, so the window is not
// distributed.
package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/httputil"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/requestcontext"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Limiter tracks request timestamps per key over a sliding window.
type Limiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// New returns a limiter allowing limit requests per window for each key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		clock:   time.Now,
		buckets: make(map[string][]time.Time),
	}
}

// Allow records a request for key when it fits in the window.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	stamps := expire(l.buckets[key], now.Add(-l.window))

	if len(stamps) >= l.limit {
		l.buckets[key] = stamps
		resetAt := stamps[0].Add(l.window)
		return Result{
			Limit:      l.limit,
			ResetAt:    resetAt,
			RetryAfter: max(1, int(resetAt.Sub(now).Round(time.Second)/time.Second)),
		}
	}

	stamps = append(stamps, now)
	l.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// Sweep drops keys whose every timestamp has left the window.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock().Add(-l.window)
	for key, stamps := range l.buckets {
		if stamps = expire(stamps, cutoff); len(stamps) == 0 {
			delete(l.buckets, key)
		} else {
			l.buckets[key] = stamps
		}
	}
}

// expire drops timestamps at or before cutoff. stamps is sorted ascending.
func expire(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

// Middleware rejects requests over the limit with 429. A nil limiter lets
// everything through.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result := l.Allow(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				logger.WarnContext(ctx, "registration rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", ip,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":             "rate_limit_exceeded",
					"error_description": "Too many registrations from this device. Please try again shortly.",
					"retry_after":       result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
