package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Per-user token buckets. Users who keep hitting the limit are muted for a
// while; muted users get no reply at all.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per user.
	RequestsPerMinute int

	// BurstSize is the maximum burst size (tokens in bucket at start).
	BurstSize int

	// CleanupInterval is how often idle buckets are dropped.
	CleanupInterval time.Duration

	// IdleTTL is how long a bucket may stay unused before cleanup.
	IdleTTL time.Duration

	// BanDuration is how long to mute users who exceed limits repeatedly.
	BanDuration time.Duration

	// BanThreshold is the number of violations before a mute. 0 disables muting.
	BanThreshold int

	// WhitelistedUsers are users exempt from rate limiting (e.g., admins).
	WhitelistedUsers []int64
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           30 * time.Minute,
		BanDuration:       10 * time.Minute,
		BanThreshold:      5,
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is allowed.
	Allowed bool

	// RetryAfter is how long the user should wait before retrying.
	RetryAfter time.Duration

	// IsBanned indicates if the user is muted.
	IsBanned bool

	// FirstViolation is true for the first rejection in a row. Callers reply
	// only then so a flood does not produce a flood of warnings.
	FirstViolation bool
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config    RateLimitConfig
	limit     rate.Limit
	whitelist map[int64]bool
	now       func() time.Time

	mu      sync.Mutex
	buckets map[int64]*bucket

	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	violations int
	bannedTill time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Stop to release it.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := newRateLimiter(config, time.Now)
	go rl.cleanupLoop()
	return rl
}

func newRateLimiter(config RateLimitConfig, now func() time.Time) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRateLimitConfig().RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimitConfig().CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}

	whitelist := make(map[int64]bool, len(config.WhitelistedUsers))
	for _, id := range config.WhitelistedUsers {
		whitelist[id] = true
	}

	return &RateLimiter{
		config:    config,
		limit:     rate.Every(time.Minute / time.Duration(config.RequestsPerMinute)),
		whitelist: whitelist,
		now:       now,
		buckets:   make(map[int64]*bucket),
		done:      make(chan struct{}),
	}
}

// Check checks if a request from the given user is allowed.
func (rl *RateLimiter) Check(_ context.Context, userID int64) *RateLimitResult {
	if rl.whitelist[userID] {
		return &RateLimitResult{Allowed: true}
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[userID]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.config.BurstSize)}
		rl.buckets[userID] = b
	}
	b.lastSeen = now

	if now.Before(b.bannedTill) {
		return &RateLimitResult{IsBanned: true, RetryAfter: b.bannedTill.Sub(now)}
	}

	if b.limiter.AllowN(now, 1) {
		b.violations = 0
		return &RateLimitResult{Allowed: true}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Rejected
	// ─────────────────────────────────────────────────────────────────────────
	b.violations++
	res := &RateLimitResult{FirstViolation: b.violations == 1}

	r := b.limiter.ReserveN(now, 1)
	if r.OK() {
		res.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}

	if rl.config.BanThreshold > 0 && b.violations >= rl.config.BanThreshold {
		b.bannedTill = now.Add(rl.config.BanDuration)
		b.violations = 0
		res.IsBanned = true
		res.RetryAfter = rl.config.BanDuration
	}

	return res
}

// Reset forgets a user's bucket and mute.
func (rl *RateLimiter) Reset(userID int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, userID)
}

// Tracked returns the number of users with a live bucket.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop shuts down the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops buckets that have been idle for IdleTTL and are not muted.
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.config.IdleTTL && !now.Before(b.bannedTill) {
			delete(rl.buckets, id)
		}
	}
}
