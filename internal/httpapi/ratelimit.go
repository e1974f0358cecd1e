package httpapi

import (
	"sync"
	"time"

	"github.com/easeverse/server/internal/metrics"
)

// Family buckets endpoints into independent rate-limit budgets.
type Family string

const (
	FamilyPronounce    Family = "pronounce"
	FamilySessionScore Family = "session_score"
	FamilyEasePocket   Family = "easepocket_score"
	FamilyLearning     Family = "learning"
)

var familyLimits = map[Family]int{
	FamilyPronounce:    30,
	FamilySessionScore: 12,
	FamilyEasePocket:   20,
	FamilyLearning:     80,
}

const (
	windowDuration = time.Minute
	sweepInterval  = 5 * time.Minute
)

type bucketKey struct {
	ip     string
	family Family
}

type bucket struct {
	count       int
	windowStart time.Time
	lastTouch   time.Time
}

// RateLimiter tracks request counts per (client IP, endpoint family) in a
// fixed window: when the window has drifted past windowDuration, a new one
// starts. Idle keys are pruned opportunistically on access, at most once
// per sweepInterval, so no timer goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[bucketKey]*bucket
	lastSweep time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[bucketKey]*bucket), lastSweep: time.Now()}
}

// Allow reports whether a request from ip in family is within its budget,
// recording the hit if so.
func (rl *RateLimiter) Allow(ip string, family Family) bool {
	limit, ok := familyLimits[family]
	if !ok {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.maybeSweep(now)

	key := bucketKey{ip: ip, family: family}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		rl.buckets[key] = b
	}
	b.lastTouch = now

	if now.Sub(b.windowStart) > windowDuration {
		b.windowStart = now
		b.count = 0
	}

	if b.count >= limit {
		metrics.RateLimitRejections.WithLabelValues(string(family)).Inc()
		return false
	}
	b.count++
	return true
}

// maybeSweep prunes keys idle for longer than the sweep interval. Called
// under rl.mu.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now
	cutoff := now.Add(-sweepInterval)
	for k, b := range rl.buckets {
		if b.lastTouch.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}
