package middleware

import (
	"github.com/assocregistry/gateway/pkg/auth"
	"github.com/assocregistry/gateway/pkg/ratelimit"
	"github.com/assocregistry/gateway/pkg/tier"
)

// routeConfig holds the per-route gate configuration assembled from
// [RouteOption] values.
type routeConfig struct {
	roles       []auth.Role
	permissions []auth.Permission
	anyPerm     bool
	minTier     tier.Tier
	bucket      ratelimit.BucketName
}

func newRouteConfig(opts []RouteOption) routeConfig {
	rc := routeConfig{bucket: ratelimit.BucketAPI}
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}

// RouteOption configures the gates applied to one protected route.
type RouteOption func(*routeConfig)

// WithRequiredRoles requires the principal to hold at least one of the
// given roles.
func WithRequiredRoles(roles ...auth.Role) RouteOption {
	return func(rc *routeConfig) {
		rc.roles = append(rc.roles, roles...)
	}
}

// WithRequiredPermissions requires the principal to hold ALL of the given
// permissions.
func WithRequiredPermissions(perms ...auth.Permission) RouteOption {
	return func(rc *routeConfig) {
		rc.permissions = append(rc.permissions, perms...)
		rc.anyPerm = false
	}
}

// WithAnyPermission requires the principal to hold at least one of the
// given permissions.
func WithAnyPermission(perms ...auth.Permission) RouteOption {
	return func(rc *routeConfig) {
		rc.permissions = append(rc.permissions, perms...)
		rc.anyPerm = true
	}
}

// WithMinimumTier requires the target entity to be verified at the given
// tier or stronger. Admin-family principals bypass the comparison.
func WithMinimumTier(t tier.Tier) RouteOption {
	return func(rc *routeConfig) {
		rc.minTier = t
	}
}

// WithBucket selects the rate limit bucket the route consumes from
// instead of the default general API bucket.
func WithBucket(name ratelimit.BucketName) RouteOption {
	return func(rc *routeConfig) {
		rc.bucket = name
	}
}
