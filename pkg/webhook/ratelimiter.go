package webhook

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-IP token bucket rate limiting
type RateLimiter struct {
	limits            map[string]*rateLimitEntry
	maxRequestsPerMin int
	mu                sync.Mutex
	cleanupInterval   time.Duration
	maxIdle           time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing maxRequestsPerMinute per IP,
// all of which may arrive as one burst
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limits:            make(map[string]*rateLimitEntry),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		maxIdle:           10 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.startCleanup()

	return rl
}

func (rl *RateLimiter) entry(ip string, now time.Time) *rateLimitEntry {
	e, exists := rl.limits[ip]
	if !exists {
		e = &rateLimitEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.maxRequestsPerMin)), rl.maxRequestsPerMin),
		}
		rl.limits[ip] = e
	}
	e.lastSeen = now
	return e
}

// CheckLimit consumes one request for ip and reports whether it is allowed
func (rl *RateLimiter) CheckLimit(ip string) bool {
	if rl.maxRequestsPerMin <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	return rl.entry(ip, now).limiter.AllowN(now, 1)
}

// GetRetryAfter returns the number of seconds until ip may send again
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.limits[ip]
	if !exists {
		return 0
	}

	now := time.Now()
	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	return int(math.Ceil(delay.Seconds()))
}

// startCleanup periodically removes idle entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops IPs not seen for maxIdle; their bucket would be full again anyway
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, e := range rl.limits {
		if now.Sub(e.lastSeen) > rl.maxIdle {
			delete(rl.limits, ip)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
