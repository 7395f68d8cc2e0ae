package auth

import "context"

// contextKey is an unexported type for context keys defined by this
// package, preventing collisions with keys from other packages.
type contextKey struct{}

// principalKey is the context key the authenticated principal is stored
// under.
var principalKey = contextKey{}

// WithPrincipal returns a context carrying the principal. The middleware
// chain attaches the principal exactly once, after normalization.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached to the context.
// The second return is false when no authentication middleware ran.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
