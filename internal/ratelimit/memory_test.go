package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterDeniesAfterLimit(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	limiter := NewMemoryLimiter(time.Minute, clk)
	ctx := context.Background()

	var first Result
	for i := 0; i < 5; i++ {
		res := limiter.Consume(ctx, "orgs.create:10.0.0.1", 5)
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if i == 0 {
			first = res
		}
		assert.Equal(t, 5-(i+1), res.Remaining)
	}

	clk.Advance(10 * time.Second)
	denied := limiter.Consume(ctx, "orgs.create:10.0.0.1", 5)
	require.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)
	assert.True(t, denied.ResetAt.Equal(first.ResetAt), "denied call must not extend the window")
}

func TestMemoryLimiterStartsFreshWindowAfterReset(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	limiter := NewMemoryLimiter(time.Minute, clk)
	ctx := context.Background()

	limiter.Consume(ctx, "k", 1)
	require.False(t, limiter.Consume(ctx, "k", 1).Allowed)

	clk.Advance(time.Minute)
	res := limiter.Consume(ctx, "k", 1)
	require.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, res.ResetAt.Equal(clk.Now().Add(time.Minute)))
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute, clock.NewFakeClock(time.Now()))
	ctx := context.Background()

	require.True(t, limiter.Consume(ctx, "a", 1).Allowed)
	require.False(t, limiter.Consume(ctx, "a", 1).Allowed)
	require.True(t, limiter.Consume(ctx, "b", 1).Allowed)
}

func TestMemoryLimiterSweepRemovesExpiredBuckets(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	limiter := NewMemoryLimiter(time.Minute, clk)
	ctx := context.Background()

	limiter.Consume(ctx, "old", 3)
	clk.Advance(30 * time.Second)
	limiter.Consume(ctx, "new", 3)

	clk.Advance(45 * time.Second)
	removed := limiter.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, limiter.Len())
}

func TestMemoryLimiterConcurrentConsumers(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute, clock.NewFakeClock(time.Now()))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Consume(ctx, "shared", 20).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, allowed)
}

func TestMemoryLimiterStopIsIdempotent(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute, nil)
	limiter.StartSweeper(time.Millisecond)
	limiter.Stop()
	limiter.Stop()
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		resetAt time.Time
		want    int
	}{
		{name: "rounds up partial seconds", resetAt: now.Add(1500 * time.Millisecond), want: 2},
		{name: "whole seconds", resetAt: now.Add(30 * time.Second), want: 30},
		{name: "already elapsed", resetAt: now.Add(-time.Second), want: 1},
		{name: "exactly now", resetAt: now, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RetryAfterSeconds(tc.resetAt, now))
		})
	}
}

func TestLimitedErrorMatchesSentinel(t *testing.T) {
	err := &LimitedError{Key: "k", Limit: 5}
	assert.ErrorIs(t, err, ErrRateLimited)
}
