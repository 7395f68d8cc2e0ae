package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/assocregistry/gateway/pkg/audit"
)

// Limiter applies bucket quotas to requests, emits security events on
// denial and implements the fail-open policy for store faults.
//
// The limiter and its store are process-wide state with a process
// lifecycle: construct once at startup, access only through Check and
// PenalizeFailedAttempt.
type Limiter struct {
	store   Store
	buckets map[BucketName]Bucket
	sink    audit.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter builds a limiter. Nil buckets use [DefaultBuckets], a nil
// sink discards events and a nil logger falls back to [slog.Default].
func NewLimiter(store Store, buckets map[BucketName]Bucket, sink audit.Sink, logger *slog.Logger) *Limiter {
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	if sink == nil {
		sink = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:   store,
		buckets: buckets,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Check consumes one point from the named bucket for the request's
// derived key.
//
// An exhausted quota denies and emits a security event. A store fault
// fails open: the request is allowed with Remaining = -1 and the fault is
// logged as an internal error, never as a denial.
func (l *Limiter) Check(ctx context.Context, r *http.Request, principalID string, name BucketName) Result {
	return l.consumeKeyForRequest(ctx, KeyFor(principalID, r), name, 1)
}

// PenalizeFailedAttempt consumes extra points against the failed-auth
// bucket after an authentication failure, slowing credential stuffing.
// The failed-auth key is derived independently of the bucket used for
// the original request.
func (l *Limiter) PenalizeFailedAttempt(ctx context.Context, r *http.Request, points int64) {
	if points <= 0 {
		points = 1
	}
	key := KeyFor("", r)
	result := l.consumeKey(ctx, key, BucketFailedAuth, points)

	event := audit.NewSecurityEvent(l.now(), audit.EventFailedAuthPenalty, key)
	event.Details = map[string]string{
		"bucket": string(BucketFailedAuth),
		"points": strconv.FormatInt(points, 10),
	}
	if !result.Allowed {
		event.Details["exhausted"] = "true"
	}
	_ = l.sink.WriteEvent(ctx, event)
}

// IsBlocked reports whether the request's failed-auth key has exhausted
// its penalty bucket, without consuming points from any other bucket.
// The returned Result carries the retry timing for a blocked key. An
// unconfigured bucket or store fault fails open.
func (l *Limiter) IsBlocked(ctx context.Context, r *http.Request) (Result, bool) {
	bucket, ok := l.buckets[BucketFailedAuth]
	if !ok {
		return Result{Allowed: true, Remaining: -1}, false
	}
	result, err := l.store.Consume(ctx, bucket, KeyFor("", r), 0)
	if err != nil {
		return Result{Allowed: true, Remaining: -1}, false
	}
	return result, !result.Allowed
}

func (l *Limiter) consumeKeyForRequest(ctx context.Context, key string, name BucketName, cost int64) Result {
	result := l.consumeKey(ctx, key, name, cost)
	if !result.Allowed && result.Remaining >= 0 {
		event := audit.NewSecurityEvent(l.now(), audit.EventRateLimitExceeded, key)
		event.Details = map[string]string{
			"bucket":         string(name),
			"ms_before_next": strconv.FormatInt(result.MsBeforeNext, 10),
		}
		_ = l.sink.WriteEvent(ctx, event)
	}
	return result
}

// consumeKey applies the fail-open policy around the store.
func (l *Limiter) consumeKey(ctx context.Context, key string, name BucketName, cost int64) Result {
	bucket, ok := l.buckets[name]
	if !ok {
		// An unconfigured bucket is a wiring bug; do not block traffic
		// on it.
		l.logger.LogAttrs(ctx, slog.LevelError, "unconfigured rate limit bucket",
			slog.String("bucket", string(name)),
		)
		return Result{Allowed: true, Remaining: -1}
	}

	result, err := l.store.Consume(ctx, bucket, key, cost)
	if err != nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "rate limit store fault, failing open",
			slog.String("bucket", string(name)),
			slog.String("error", err.Error()),
		)
		return Result{Allowed: true, Remaining: -1}
	}
	return result
}

// BucketFor returns the configuration of the named bucket for response
// headers.
func (l *Limiter) BucketFor(name BucketName) (Bucket, bool) {
	b, ok := l.buckets[name]
	return b, ok
}
