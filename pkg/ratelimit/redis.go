package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// Cmdable is the narrow Redis surface the store uses. Satisfied by
// [*redis.Client]; tests substitute a stub or use a containerized
// instance.
type Cmdable interface {
	// IncrBy increments the integer value of a key.
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd

	// PExpire sets a millisecond expiration on a key.
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd

	// PTTL returns the remaining time to live of a key in milliseconds.
	PTTL(ctx context.Context, key string) *redis.DurationCmd

	// Set sets the string value of a key with an expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd

	// Exists returns the number of existing keys among those given.
	Exists(ctx context.Context, keys ...string) *redis.IntCmd

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) *redis.StatusCmd
}

// Compile-time check that *redis.Client satisfies Cmdable.
var _ Cmdable = (*redis.Client)(nil)

// Redis is a [Store] sharing counters across gateway replicas. Counters
// use a fixed window: the first consumption in a window creates the key
// with the window's TTL, so the window resets when the key expires.
type Redis struct {
	client Cmdable
}

var _ Store = (*Redis)(nil)

// NewRedis connects to Redis and verifies connectivity with a ping.
func NewRedis(ctx context.Context, cfg config.Redis) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"ratelimit: failed to connect to redis")
	}
	return NewRedisFromClient(client), nil
}

// NewRedisFromClient creates a store with a pre-existing client. Intended
// for tests.
func NewRedisFromClient(client Cmdable) *Redis {
	return &Redis{client: client}
}

// Consume implements [Store].
//
// A store error reports the fault to the caller, which applies the
// fail-open policy; Consume itself never decides to allow on fault.
func (r *Redis) Consume(ctx context.Context, bucket Bucket, key string, cost int64) (Result, error) {
	counterKey := "rl:" + string(bucket.Name) + ":" + key
	blockKey := "rl:block:" + string(bucket.Name) + ":" + key

	// An active block denies without touching the counter.
	if bucket.Block > 0 {
		blocked, err := r.client.Exists(ctx, blockKey).Result()
		if err != nil {
			return Result{}, wrapRedisError(err)
		}
		if blocked > 0 {
			ttl, err := r.client.PTTL(ctx, blockKey).Result()
			if err != nil {
				return Result{}, wrapRedisError(err)
			}
			return deniedResult(0, ttl), nil
		}
	}

	count, err := r.client.IncrBy(ctx, counterKey, cost).Result()
	if err != nil {
		return Result{}, wrapRedisError(err)
	}
	// First consumption in the window creates the key; give it the
	// window's lifetime. Subsequent increments inherit the TTL.
	if count == cost {
		if err := r.client.PExpire(ctx, counterKey, bucket.Window).Err(); err != nil {
			return Result{}, wrapRedisError(err)
		}
	}

	ttl, err := r.client.PTTL(ctx, counterKey).Result()
	if err != nil {
		return Result{}, wrapRedisError(err)
	}
	if ttl < 0 {
		// The key lost its TTL (a crash between INCR and PEXPIRE).
		// Reattach the window rather than leaving an immortal counter.
		if err := r.client.PExpire(ctx, counterKey, bucket.Window).Err(); err != nil {
			return Result{}, wrapRedisError(err)
		}
		ttl = bucket.Window
	}

	if count > bucket.Points {
		if bucket.Block > 0 {
			if err := r.client.Set(ctx, blockKey, 1, bucket.Block).Err(); err != nil {
				return Result{}, wrapRedisError(err)
			}
			return deniedResult(0, bucket.Block), nil
		}
		return deniedResult(0, ttl), nil
	}

	return Result{
		Allowed:   true,
		Remaining: bucket.Points - count,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Close releases the underlying client when it owns its connection.
func (r *Redis) Close() error {
	if closer, ok := r.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func deniedResult(remaining int64, wait time.Duration) Result {
	return Result{
		Allowed:      false,
		Remaining:    remaining,
		MsBeforeNext: wait.Milliseconds(),
		ResetAt:      time.Now().Add(wait),
	}
}

func wrapRedisError(err error) error {
	return gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
		"ratelimit: redis operation failed")
}
