package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/rollcall/internal/clock"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps buckets in process memory. Limits are per instance.
// Expired buckets are replaced when their key is touched again and removed
// by Sweep, which StartSweeper runs periodically.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	clock   clock.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMemoryLimiter(window time.Duration, clk clock.Clock) *MemoryLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		window:  window,
		clock:   clk,
		stopCh:  make(chan struct{}),
	}
}

func (l *MemoryLimiter) Consume(_ context.Context, key string, limit int) Result {
	limit = normalizeLimit(limit)
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[key] = b
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: b.resetAt}
	}

	if b.count < limit {
		b.count++
		return Result{Allowed: true, Limit: limit, Remaining: limit - b.count, ResetAt: b.resetAt}
	}

	return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: b.resetAt}
}

// Sweep deletes every bucket whose window has ended and reports how many
// were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartSweeper runs Sweep every interval until Stop is called.
func (l *MemoryLimiter) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

var _ Limiter = (*MemoryLimiter)(nil)
