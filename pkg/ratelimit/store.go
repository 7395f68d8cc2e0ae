package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a consumption attempt.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of points left in the window after this
	// consumption. -1 signals a fail-open pass where the true count is
	// unknown.
	Remaining int64

	// MsBeforeNext is how many milliseconds until the caller may retry
	// after a denial. Zero when allowed.
	MsBeforeNext int64

	// ResetAt is when the current window (or block) ends.
	ResetAt time.Time
}

// RetryAfterSeconds converts MsBeforeNext to whole seconds for the
// Retry-After header, rounding up so callers never retry early.
func (r Result) RetryAfterSeconds() int {
	if r.MsBeforeNext <= 0 {
		return 0
	}
	return int((r.MsBeforeNext + 999) / 1000)
}

// Store holds bucket counters. Consumption for one key must be atomic
// under concurrent callers sharing that key. Implementations must be safe
// for concurrent use.
type Store interface {
	// Consume atomically takes cost points from the key's quota in the
	// given bucket. A denial is reported in the Result, not as an error;
	// a non-nil error means the store itself faulted and the caller
	// decides the fail-open policy.
	Consume(ctx context.Context, bucket Bucket, key string, cost int64) (Result, error)
}
