package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Enrollment rate limit defaults: a single IP gets 5 connect attempts per
// 15 minutes.
const (
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultRateLimitMax    = 5
)

// RateLimiter enforces a sliding-window request limit per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	attempts  map[string][]time.Time
	lastSweep time.Time
	nowFn     func() time.Time // injectable clock for testing
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:   window,
		max:      max,
		attempts: make(map[string][]time.Time),
		nowFn:    time.Now,
	}
}

// Allow records an attempt for the IP and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()
	cutoff := now.Add(-rl.window)

	// IPs that stop sending never prune their own entries, so stale keys
	// are swept at most once per window to keep the map bounded.
	if now.Sub(rl.lastSweep) >= rl.window {
		for key, ts := range rl.attempts {
			if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
				delete(rl.attempts, key)
			}
		}
		rl.lastSweep = now
	}

	pruned := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	if len(pruned) >= rl.max {
		rl.attempts[ip] = pruned
		return false
	}
	rl.attempts[ip] = append(pruned, now)
	return true
}

// Limit is the middleware form. Pair it with chi's RealIP so the client
// address survives proxies.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.Allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
