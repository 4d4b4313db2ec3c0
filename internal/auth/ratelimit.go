package auth

import (
	"context"
	"sync"
	"time"
)

// LoginRateLimiter blocks an address after too many failed logins
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*ipAttempts
	now      func() time.Time

	maxFailures int
	window      time.Duration
	blockTime   time.Duration
}

type ipAttempts struct {
	failures  int
	firstTime time.Time
	blockEnd  time.Time
}

// NewLoginRateLimiter creates a new rate limiter.
// Default: 5 failures per 2 minutes, block for 5 minutes.
func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    make(map[string]*ipAttempts),
		now:         time.Now,
		maxFailures: 5,
		window:      2 * time.Minute,
		blockTime:   5 * time.Minute,
	}
}

// Allow reports whether ip may attempt a login, and if not,
// how many seconds remain until the block ends
func (rl *LoginRateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	att, ok := rl.attempts[ip]
	if !ok {
		return true, 0
	}
	now := rl.now()
	if now.Before(att.blockEnd) {
		return false, int(att.blockEnd.Sub(now).Seconds()) + 1
	}
	return true, 0
}

// RecordFailure counts a failed login. Reaching the limit inside the window blocks ip.
func (rl *LoginRateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	att, ok := rl.attempts[ip]
	if !ok || now.Sub(att.firstTime) > rl.window || (!att.blockEnd.IsZero() && !now.Before(att.blockEnd)) {
		att = &ipAttempts{firstTime: now}
		rl.attempts[ip] = att
	}

	att.failures++
	if att.failures >= rl.maxFailures {
		att.blockEnd = now.Add(rl.blockTime)
	}
}

// Reset clears the record of ip after a successful login
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// Run drops stale entries every 10 minutes until ctx is done
func (rl *LoginRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *LoginRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, att := range rl.attempts {
		blocked := now.Before(att.blockEnd)
		if !blocked && now.Sub(att.firstTime) > rl.window {
			delete(rl.attempts, ip)
		}
	}
}
