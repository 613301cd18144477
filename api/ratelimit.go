package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client limiter on rebuild requests.
type RateLimitConfig struct {
	RequestsPerSecond float64       // Rebuilds allowed per second per client
	Burst             int           // Maximum burst size
	IdleTimeout       time.Duration // Limiters unused this long are dropped
}

// DefaultRateLimitConfig allows a slider-driven client to rebuild a few
// times per second.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 4,
	Burst:             8,
	IdleTimeout:       10 * time.Minute,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// ClientRateLimiter keeps one token bucket per client IP. Idle entries are
// pruned lazily on access, so no goroutine is started.
type ClientRateLimiter struct {
	limiters  sync.Map // map[string]*clientLimiter
	config    RateLimitConfig
	lastPrune atomic.Int64

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewClientRateLimiter creates a limiter.
func NewClientRateLimiter(cfg RateLimitConfig) *ClientRateLimiter {
	return &ClientRateLimiter{config: cfg}
}

func (rl *ClientRateLimiter) get(ip string, now time.Time) *rate.Limiter {
	if v, ok := rl.limiters.Load(ip); ok {
		e := v.(*clientLimiter)
		e.lastSeen.Store(now.UnixNano())
		return e.limiter
	}
	e := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
	e.lastSeen.Store(now.UnixNano())
	v, _ := rl.limiters.LoadOrStore(ip, e)
	return v.(*clientLimiter).limiter
}

func (rl *ClientRateLimiter) prune(now time.Time) {
	if rl.config.IdleTimeout <= 0 {
		return
	}
	last := rl.lastPrune.Load()
	if now.UnixNano()-last < int64(rl.config.IdleTimeout) || !rl.lastPrune.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-rl.config.IdleTimeout).UnixNano()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*clientLimiter).lastSeen.Load() < cutoff {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Allow reports whether ip may make another request now.
func (rl *ClientRateLimiter) Allow(ip string) bool {
	now := time.Now()
	rl.prune(now)
	if rl.get(ip, now).AllowN(now, 1) {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware rejects requests over the limit with 429.
func (rl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many rebuild requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns allowed and rejected counts.
func (rl *ClientRateLimiter) Stats() (allowed, rejected uint64) {
	return rl.allowed.Load(), rl.rejected.Load()
}

// ClientIP extracts the client address, preferring X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
