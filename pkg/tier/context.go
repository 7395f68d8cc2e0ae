package tier

import "context"

type contextKey struct{}

var infoKey = contextKey{}

// WithInfo returns a context carrying the granted verification state. The
// authorizer attaches it exactly once, on grant.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// InfoFromContext returns the verification state attached after a granted
// tier check. The second return is false when no tier check ran or the
// check was bypassed.
func InfoFromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(infoKey).(Info)
	return info, ok
}
