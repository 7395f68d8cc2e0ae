// Package ratelimit enforces per-caller request quotas for the gateway.
//
// Quotas are organized into five independently configured buckets; each
// bucket grants a number of points per fixed window and can impose a block
// period once the points are exhausted. Consumption is keyed per caller:
// "user:<id>" when a principal was resolved upstream, "ip:<address>"
// otherwise. Keys are derived server-side and are never user-suppliable.
//
// Two [Store] implementations back the buckets: an in-process [Memory]
// store for single-instance deployments and tests, and a [Redis] store
// that shares counters across gateway replicas.
//
// The limiter fails open: when the backing store itself faults, the
// request is allowed through with Remaining = -1 and the fault is logged.
// Availability is prioritized over strict enforcement for infrastructure
// faults; an exhausted quota is not an infrastructure fault and always
// denies.
package ratelimit

import "time"

// BucketName identifies one of the configured quota buckets.
type BucketName string

// The five gateway buckets.
const (
	// BucketAPI covers general API traffic.
	BucketAPI BucketName = "api"

	// BucketAuth covers authentication endpoints (login, token refresh).
	BucketAuth BucketName = "auth"

	// BucketTokenIssuance covers machine-client token issuance.
	BucketTokenIssuance BucketName = "token_issuance"

	// BucketFailedAuth is the penalty bucket consumed after failed
	// authentication attempts, keyed independently of the bucket used for
	// the original request.
	BucketFailedAuth BucketName = "failed_auth"

	// BucketUpload covers document uploads.
	BucketUpload BucketName = "upload"
)

// Bucket is a named quota definition. Within a window the remaining
// points only decrease; the window resets atomically at its boundary.
type Bucket struct {
	// Name identifies the bucket.
	Name BucketName

	// Points is the number of points a key may consume per window.
	Points int64

	// Window is the fixed quota window.
	Window time.Duration

	// Block is how long a key stays blocked after exhausting its points.
	// Zero means no block beyond the current window.
	Block time.Duration
}

// DefaultBuckets returns the gateway's standard bucket configuration.
func DefaultBuckets() map[BucketName]Bucket {
	return map[BucketName]Bucket{
		BucketAPI: {
			Name:   BucketAPI,
			Points: 100,
			Window: time.Minute,
		},
		BucketAuth: {
			Name:   BucketAuth,
			Points: 10,
			Window: time.Minute,
			Block:  5 * time.Minute,
		},
		BucketTokenIssuance: {
			Name:   BucketTokenIssuance,
			Points: 5,
			Window: time.Minute,
			Block:  10 * time.Minute,
		},
		BucketFailedAuth: {
			Name:   BucketFailedAuth,
			Points: 5,
			Window: 15 * time.Minute,
			Block:  30 * time.Minute,
		},
		BucketUpload: {
			Name:   BucketUpload,
			Points: 20,
			Window: time.Hour,
		},
	}
}
