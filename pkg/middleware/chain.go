// Package middleware composes the gateway's request pipeline: bearer
// extraction, issuer dispatch, token validation, identity normalization,
// per-route RBAC and tier gates, and rate limiting. The chain
// short-circuits on the first failing stage; each request is judged
// exactly once.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/assocregistry/gateway/pkg/audit"
	"github.com/assocregistry/gateway/pkg/auth"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
	"github.com/assocregistry/gateway/pkg/ratelimit"
	"github.com/assocregistry/gateway/pkg/tier"
)

// defaultPenaltyPoints is consumed from the failed-auth bucket after each
// failed authentication attempt with a presented credential.
const defaultPenaltyPoints = 1

// ChainConfig wires the pipeline stages. All stage fields are required;
// Sink falls back to [audit.Discard], Logger to [slog.Default], and Realm
// to "association-registry".
type ChainConfig struct {
	Dispatcher *auth.Dispatcher
	Validator  *auth.Validator
	Normalizer *auth.Normalizer
	Authorizer *tier.Authorizer
	Limiter    *ratelimit.Limiter
	Sink       audit.Sink
	Realm      string
	Logger     *slog.Logger
}

// Chain is the per-request orchestrator. Build one at process start and
// wrap every protected route with [Chain.Protect].
type Chain struct {
	dispatcher *auth.Dispatcher
	validator  *auth.Validator
	normalizer *auth.Normalizer
	authorizer *tier.Authorizer
	limiter    *ratelimit.Limiter
	sink       audit.Sink
	realm      string
	logger     *slog.Logger
}

// NewChain builds the orchestrator from its wired stages.
func NewChain(cfg ChainConfig) *Chain {
	sink := cfg.Sink
	if sink == nil {
		sink = audit.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	realm := cfg.Realm
	if realm == "" {
		realm = "association-registry"
	}
	return &Chain{
		dispatcher: cfg.Dispatcher,
		validator:  cfg.Validator,
		normalizer: cfg.Normalizer,
		authorizer: cfg.Authorizer,
		limiter:    cfg.Limiter,
		sink:       sink,
		realm:      realm,
		logger:     logger,
	}
}

// Protect wraps next with the full pipeline. Options add per-route gates;
// with no options the route only requires a valid token and consumes from
// the general API bucket.
func (c *Chain) Protect(next http.Handler, opts ...RouteOption) http.Handler {
	rc := newRouteConfig(opts)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// A caller blocked for repeated failed attempts is refused
		// before any dispatch or signature work is spent on it.
		if result, blocked := c.limiter.IsBlocked(ctx, r); blocked {
			bucket, ok := c.limiter.BucketFor(ratelimit.BucketFailedAuth)
			writeRateLimited(w, bucket, ok, result)
			return
		}

		rawToken, err := bearerToken(r)
		if err != nil {
			// No credential was presented, so no penalty is taken.
			c.logAuthFailure(ctx, r, err)
			writeUnauthorized(w, c.realm, false)
			return
		}

		provider, err := c.dispatcher.Dispatch(rawToken)
		if err != nil {
			c.failAuth(ctx, w, r, err)
			return
		}

		claims, err := c.validator.Validate(ctx, rawToken, provider)
		if err != nil {
			c.failAuth(ctx, w, r, err)
			return
		}

		principal := c.normalizer.Normalize(ctx, claims)
		ctx = auth.WithPrincipal(ctx, principal)

		if err := checkRoles(principal, rc); err != nil {
			c.logDenial(ctx, r, principal, err)
			writeForbidden(w, err)
			return
		}
		if err := checkPermissions(principal, rc); err != nil {
			c.logDenial(ctx, r, principal, err)
			writeForbidden(w, err)
			return
		}

		if rc.minTier != 0 {
			decision, err := c.authorizer.Check(ctx, r, principal, rc.minTier)
			if err != nil {
				if gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier) ||
					gwerr.HasCode(err, gwerr.CodeAuthzEntityUnresolved) {
					c.logDenial(ctx, r, principal, err)
					writeForbidden(w, err)
					return
				}
				// A store fault is not an authorization outcome.
				c.logger.LogAttrs(ctx, slog.LevelError, "tier check failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeInternal(w)
				return
			}
			if decision.Info.Tier.Valid() {
				ctx = tier.WithInfo(ctx, decision.Info)
			}
		}

		result := c.limiter.Check(ctx, r, principal.Identifier(), rc.bucket)
		if !result.Allowed {
			bucket, ok := c.limiter.BucketFor(rc.bucket)
			writeRateLimited(w, bucket, ok, result)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// failAuth handles a failed attempt with a presented credential: the
// detailed cause goes to the server log, the failed-auth penalty bucket
// is consumed, and the client sees only the generic 401.
func (c *Chain) failAuth(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	c.logAuthFailure(ctx, r, err)
	if gwerr.HasCode(err, gwerr.CodeAuthUnknownIssuer) {
		event := audit.NewSecurityEvent(time.Now(), audit.EventUnknownIssuer, ratelimit.KeyFor("", r))
		event.Details = map[string]string{"path": r.URL.Path}
		if sinkErr := c.sink.WriteEvent(ctx, event); sinkErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "security event write failed",
				slog.String("error", sinkErr.Error()),
			)
		}
	}
	c.limiter.PenalizeFailedAttempt(ctx, r, defaultPenaltyPoints)
	writeUnauthorized(w, c.realm, true)
}

func (c *Chain) logAuthFailure(ctx context.Context, r *http.Request, err error) {
	c.logger.LogAttrs(ctx, slog.LevelWarn, "authentication failed",
		slog.String("path", r.URL.Path),
		slog.String("code", string(gwerr.GetCode(err))),
		slog.String("error", err.Error()),
	)
}

func (c *Chain) logDenial(ctx context.Context, r *http.Request, p *auth.Principal, err error) {
	c.logger.LogAttrs(ctx, slog.LevelWarn, "authorization denied",
		slog.String("path", r.URL.Path),
		slog.String("actor", p.Identifier()),
		slog.String("code", string(gwerr.GetCode(err))),
		slog.String("error", err.Error()),
	)
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", gwerr.New(gwerr.CodeAuthMissingCredential, "no authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", gwerr.New(gwerr.CodeAuthMissingCredential, "authorization header is not a bearer credential")
	}
	return strings.TrimSpace(token), nil
}

func checkRoles(p *auth.Principal, rc routeConfig) error {
	if len(rc.roles) == 0 {
		return nil
	}
	if p.HasAnyRole(rc.roles...) {
		return nil
	}
	names := make([]string, len(rc.roles))
	for i, role := range rc.roles {
		names[i] = role.String()
	}
	return gwerr.New(gwerr.CodeAuthzInsufficientRole, "caller holds none of the required roles").
		WithDetail("required_roles", names)
}

func checkPermissions(p *auth.Principal, rc routeConfig) error {
	if len(rc.permissions) == 0 {
		return nil
	}
	if rc.anyPerm {
		if p.HasAnyPermission(rc.permissions...) {
			return nil
		}
	} else if p.HasAllPermissions(rc.permissions...) {
		return nil
	}
	names := make([]string, len(rc.permissions))
	for i, perm := range rc.permissions {
		names[i] = string(perm)
	}
	return gwerr.New(gwerr.CodeAuthzInsufficientPermission, "caller lacks a required permission").
		WithDetail("required_permissions", names)
}
