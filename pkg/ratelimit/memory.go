package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counter is the per-(bucket,key) window state.
type counter struct {
	count        int64
	windowStart  time.Time
	blockedUntil time.Time
}

// Memory is an in-process [Store] using fixed-window counters. Suitable
// for single-instance deployments and tests; replicas do not share state.
//
// Stale counters are swept lazily during consumption, bounding memory
// under a churning key population. Construct one per process and discard
// it at shutdown.
type Memory struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time

	// lastSweep bounds how often the lazy sweep runs.
	lastSweep time.Time
}

const sweepInterval = time.Minute

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Consume implements [Store] with a fixed window per (bucket, key) pair.
func (m *Memory) Consume(_ context.Context, bucket Bucket, key string, cost int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.maybeSweep(now)

	id := string(bucket.Name) + ":" + key
	c, ok := m.counters[id]
	if !ok {
		c = &counter{windowStart: now}
		m.counters[id] = c
	}

	// An active block denies outright; the window does not advance.
	if c.blockedUntil.After(now) {
		return Result{
			Allowed:      false,
			Remaining:    0,
			MsBeforeNext: c.blockedUntil.Sub(now).Milliseconds(),
			ResetAt:      c.blockedUntil,
		}, nil
	}

	// Window boundary: the counter resets atomically under the lock.
	if now.Sub(c.windowStart) >= bucket.Window {
		c.count = 0
		c.windowStart = now
	}

	windowEnd := c.windowStart.Add(bucket.Window)

	if c.count+cost > bucket.Points {
		resetAt := windowEnd
		if bucket.Block > 0 {
			c.blockedUntil = now.Add(bucket.Block)
			resetAt = c.blockedUntil
		}
		remaining := bucket.Points - c.count
		if remaining < 0 {
			remaining = 0
		}
		return Result{
			Allowed:      false,
			Remaining:    remaining,
			MsBeforeNext: resetAt.Sub(now).Milliseconds(),
			ResetAt:      resetAt,
		}, nil
	}

	c.count += cost
	return Result{
		Allowed:   true,
		Remaining: bucket.Points - c.count,
		ResetAt:   windowEnd,
	}, nil
}

// maybeSweep drops counters whose window and block have both lapsed.
// Called with the mutex held.
func (m *Memory) maybeSweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now

	for id, c := range m.counters {
		if c.blockedUntil.After(now) {
			continue
		}
		// Windows longer than the sweep horizon keep their counters.
		if now.Sub(c.windowStart) > 2*time.Hour {
			delete(m.counters, id)
		}
	}
}
