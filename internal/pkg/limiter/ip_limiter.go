/*
Package limiter provides per-IP rate limiting for the HTTP and WebSocket entry
points.

It keeps one token bucket (rate.Limiter) per client IP and periodically drops
buckets that have refilled completely, so idle addresses do not accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"

	"golang.org/x/time/rate"
)

// cleanupInterval is how often inactive buckets are swept.
const cleanupInterval = 3 * time.Minute

// IPRateLimiter hands out a token bucket per client IP address.
type IPRateLimiter struct {
	// mu protects concurrent access to the limits map.
	mu sync.RWMutex

	// limits maps a client IP to its *rate.Limiter.
	limits map[string]*rate.Limiter

	// r is the sustained rate allowed per IP, in events per second.
	r rate.Limit

	// b is the burst capacity per IP.
	b int
}

// NewIPRateLimiter creates an IPRateLimiter allowing rate r with burst b per
// IP and starts the background sweep of inactive buckets.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.sweepInactive()

	return i
}

// GetLimiter returns the limiter for the given IP, creating it on first use.
// Double-checked locking keeps the common path on the read lock.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// sweepInactive periodically removes buckets that are full again. A full
// bucket means the IP has been quiet long enough to be indistinguishable
// from a new one.
func (i *IPRateLimiter) sweepInactive() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		removed := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				removed++
			}
		}
		remaining := len(i.limits)
		i.mu.Unlock()

		logx.Debug("Rate limiter sweep finished", "removed", removed, "remaining", remaining)
	}
}

// Middleware wraps an HTTP handler with the per-IP limit, answering
// 429 Too Many Requests when the bucket is empty.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.GetLimiter(ip).Allow() {
			resp.RespondError(w, r, errs.New(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
