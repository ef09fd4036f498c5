// Package ratelimit implements a fixed-window request throttle keyed by an
// opaque string. The limiter is policy-free: callers pass the limit on every
// call and build their own keys, typically "{route}:{clientIP}".
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = 60 * time.Second

// Result is the outcome of a single Consume call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key inside fixed windows. Consume never fails;
// backends that can fail internally must decide an outcome themselves.
type Limiter interface {
	Consume(ctx context.Context, key string, limit int) Result
}

// ErrRateLimited matches any *LimitedError through errors.Is.
var ErrRateLimited = errors.New("rate limited")

// LimitedError is returned by route middleware when a key is over its limit.
type LimitedError struct {
	Key        string
	Limit      int
	ResetAt    time.Time
	RetryAfter int
}

func (e *LimitedError) Error() string {
	return "rate limit exceeded"
}

func (e *LimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds is the whole number of seconds until resetAt, rounded up.
// It never returns less than one so clients always back off.
func RetryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	return limit
}
