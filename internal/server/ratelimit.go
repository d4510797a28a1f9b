package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// RateLimiter is a per-key token bucket with an optional daily quota.
type RateLimiter struct {
	mu sync.Mutex

	// Token bucket: refill rate in tokens per second and bucket capacity
	ratePerSecond float64
	burst         int

	// Daily cap per key (0 = unlimited)
	maxPerDay int

	buckets map[string]*bucket
	now     func() time.Time
}

// bucket tracks usage for one contributor.
type bucket struct {
	tokens   float64
	last     time.Time
	today    int
	dayStart time.Time
}

// Usage is a snapshot of one key's state.
type Usage struct {
	Tokens float64
	Today  int
}

// NewRateLimiter allows perMinute requests per key on average, bursts of up
// to burst, and at most maxPerDay per key per day. A zero perMinute disables
// the bucket; a burst below 1 defaults to perMinute.
func NewRateLimiter(perMinute, burst, maxPerDay int) *RateLimiter {
	if burst < 1 {
		burst = max(perMinute, 1)
	}
	return &RateLimiter{
		ratePerSecond: float64(perMinute) / 60,
		burst:         burst,
		maxPerDay:     maxPerDay,
		buckets:       make(map[string]*bucket),
		now:           time.Now,
	}
}

// Allow takes one token for key, or reports why it cannot.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.getOrCreateBucket(key, now)
	rl.refill(b, now)

	if rl.ratePerSecond > 0 && b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.ratePerSecond * float64(time.Second))
		return &RateLimitError{
			Type:       "burst",
			Limit:      rl.burst,
			RetryAfter: wait,
		}
	}
	if rl.maxPerDay > 0 && b.today >= rl.maxPerDay {
		return &QuotaExceededError{
			Type:   "daily",
			Limit:  rl.maxPerDay,
			Used:   b.today,
			Resets: nextMidnight(now),
		}
	}

	if rl.ratePerSecond > 0 {
		b.tokens--
	}
	b.today++
	return nil
}

// refill adds tokens for the time since the last call and resets the daily
// count when the day has changed.
func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = math.Min(float64(rl.burst), b.tokens+elapsed.Seconds()*rl.ratePerSecond)
		b.last = now
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := b.dayStart.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		b.today = 0
		b.dayStart = now
	}
}

func (rl *RateLimiter) getOrCreateBucket(key string, now time.Time) *bucket {
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), last: now, dayStart: now}
		rl.buckets[key] = b
	}
	return b
}

// Usage returns the current state for key. Unknown keys report a full bucket.
func (rl *RateLimiter) Usage(key string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return Usage{Tokens: float64(rl.burst)}
	}
	return Usage{Tokens: b.tokens, Today: b.today}
}

// Prune drops keys idle for longer than idle and returns how many went.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for k, b := range rl.buckets {
		if now.Sub(b.last) > idle {
			delete(rl.buckets, k)
			n++
		}
	}
	return n
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "burst"
	Limit      int           // bucket capacity
	RetryAfter time.Duration // time until the next token
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "daily"
	Limit  int       // the limit that was exceeded
	Used   int       // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

// PruneRateLimits drops limiter state for contributors idle longer than
// idle. It is a no-op when rate limiting is off.
func (s *Server) PruneRateLimits(idle time.Duration) int {
	if s.rateLimiter == nil {
		return 0
	}
	return s.rateLimiter.Prune(idle)
}

// RunJanitor prunes idle limiter state every interval until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	if s.rateLimiter == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneRateLimits(idle); n > 0 {
				slog.Debug("Pruned idle rate limit buckets", "count", n)
			}
		}
	}
}
