package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client IP. Buckets idle for an hour
// are dropped by a background sweep.
type ipLimiter struct {
	mu      sync.Mutex
	limits  map[string]*ipBucket
	rps     rate.Limit
	burst   int
	started bool
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = int(rps)
		if burst <= 0 {
			burst = 1
		}
	}
	return &ipLimiter{
		limits: make(map[string]*ipBucket),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

// Allow reports whether a request from clientIP may proceed.
func (l *ipLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	b, ok := l.limits[clientIP]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limits[clientIP] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

func (l *ipLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-time.Hour)
	for ip, b := range l.limits {
		if b.lastSeen.Before(cutoff) {
			delete(l.limits, ip)
		}
	}
}

func (l *ipLimiter) startCleanup() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.cleanup()
		}
	}()
}
