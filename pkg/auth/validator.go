package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/assocregistry/gateway/pkg/auth"

// TokenClaims is the decoded payload of a validated token. It is
// transient: it exists only between validation and normalization and is
// never stored or attached to the request context.
type TokenClaims struct {
	// Provider tags which provider's validator accepted the token.
	Provider Provider

	// Issuer is the verified iss claim.
	Issuer string

	// Subject is the resolved subject identifier: the sub claim, or the
	// provider-specific oid claim when sub is absent. Never empty.
	Subject string

	// Audience is the aud claim as presented.
	Audience []string

	// ExpiresAt and IssuedAt bound the token's validity window.
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Raw holds the full claim map for provider-specific extension claims
	// consumed by the identity normalizer.
	Raw jwt.MapClaims
}

// providerRules is the per-provider verification configuration.
type providerRules struct {
	issuer    string
	audiences map[string]struct{}
}

// Validator verifies bearer tokens against a provider's signing keys and
// claim rules.
//
// Verification accepts RS256 signatures only; every other algorithm,
// including the unsigned "none", is rejected before key resolution. The
// issuer must match the provider's configured URL exactly. The audience
// is checked against a set of acceptable values rather than a single
// string, because the same logical client presents different historical
// audience formats (application-ID-URI and bare client id).
//
// A Validator never retries: each token is judged exactly once per
// request. Detailed failure causes are logged server-side; the HTTP layer
// collapses every validation failure to a generic 401 so callers cannot
// probe for the distinction between a bad signature, a wrong audience or
// an expired token.
type Validator struct {
	resolver  *KeyResolver
	providers map[Provider]providerRules
	leeway    time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

// validMethods restricts accepted signature algorithms to RS256.
var validMethods = []string{jwt.SigningMethodRS256.Alg()}

// NewValidator builds a validator for the enabled providers in cfg. A nil
// logger falls back to [slog.Default].
func NewValidator(cfg config.Gateway, resolver *KeyResolver, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	providers := make(map[Provider]providerRules, 2)
	if cfg.AzureAD.Enabled() {
		providers[ProviderAzureAD] = newProviderRules(cfg.AzureAD)
	}
	if cfg.Zitadel.Enabled() {
		providers[ProviderZitadel] = newProviderRules(cfg.Zitadel)
	}
	return &Validator{
		resolver:  resolver,
		providers: providers,
		leeway:    cfg.ClockSkew,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

func newProviderRules(p config.Provider) providerRules {
	audiences := make(map[string]struct{}, len(p.Audiences))
	for _, aud := range p.Audiences {
		audiences[aud] = struct{}{}
	}
	return providerRules{issuer: p.IssuerURL, audiences: audiences}
}

// Validate verifies the raw token against the given provider and returns
// its claims.
//
// Error codes returned (all collapse to 401 at the HTTP layer):
//   - [gwerr.CodeAuthMalformedCredential]: undecodable token
//   - [gwerr.CodeAuthInvalidSignature]: bad signature, wrong algorithm,
//     wrong issuer, or unresolvable signing key after a successful fetch
//   - [gwerr.CodeAuthExpiredToken]: outside the validity window
//   - [gwerr.CodeAuthAudienceMismatch]: audience matches none of the
//     accepted set
//   - [gwerr.CodeAuthMissingSubject]: no sub or oid claim
//   - [gwerr.CodeAuthKeyFetchFailure]: the signing key could not be
//     fetched
func (v *Validator) Validate(ctx context.Context, rawToken string, provider Provider) (*TokenClaims, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Validate",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("auth.provider", provider.String()))
	defer span.End()

	rules, ok := v.providers[provider]
	if !ok {
		err := gwerr.Newf(gwerr.CodeAuthUnknownIssuer,
			"auth: no validator configured for provider %q", provider)
		v.failValidation(ctx, span, provider, err)
		return nil, err
	}

	keyfunc := func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, gwerr.New(gwerr.CodeAuthInvalidSignature,
				"auth: token header carries no kid")
		}
		return v.resolver.ResolveKey(ctx, provider, kid)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, keyfunc,
		jwt.WithValidMethods(validMethods),
		jwt.WithIssuer(rules.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		classified := classifyParseError(err)
		v.failValidation(ctx, span, provider, classified)
		return nil, classified
	}

	audience, _ := claims.GetAudience()
	if !audienceAccepted(audience, rules.audiences) {
		err := gwerr.Newf(gwerr.CodeAuthAudienceMismatch,
			"auth: audience %v matches none of the accepted set", []string(audience))
		v.failValidation(ctx, span, provider, err)
		return nil, err
	}

	subject := subjectFrom(claims)
	if subject == "" {
		err := gwerr.New(gwerr.CodeAuthMissingSubject,
			"auth: token carries neither a sub nor an oid claim")
		v.failValidation(ctx, span, provider, err)
		return nil, err
	}

	issuer, _ := claims.GetIssuer()
	exp, _ := claims.GetExpirationTime()
	iat, _ := claims.GetIssuedAt()

	result := &TokenClaims{
		Provider: provider,
		Issuer:   issuer,
		Subject:  subject,
		Audience: audience,
		Raw:      claims,
	}
	if exp != nil {
		result.ExpiresAt = exp.Time
	}
	if iat != nil {
		result.IssuedAt = iat.Time
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// failValidation records the detailed failure server-side. The caller
// returns the typed error; the HTTP layer echoes only a generic 401.
func (v *Validator) failValidation(ctx context.Context, span trace.Span, provider Provider, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, gwerr.GetCode(err).String())
	v.logger.LogAttrs(ctx, slog.LevelWarn, "token validation failed",
		slog.String("provider", provider.String()),
		slog.String("code", gwerr.GetCode(err).String()),
		slog.String("error", err.Error()),
	)
}

// classifyParseError maps golang-jwt parse errors onto the gateway's
// taxonomy. Invalid signature, wrong algorithm and wrong issuer
// deliberately share one code: the distinction is visible in the wrapped
// cause for logs, but not in the classification a response could leak.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return gwerr.Wrap(err, gwerr.CodeAuthExpiredToken,
			"auth: token outside its validity window")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return gwerr.Wrap(err, gwerr.CodeAuthMalformedCredential,
			"auth: token cannot be decoded")
	case gwerr.HasCode(err, gwerr.CodeAuthKeyFetchFailure):
		return err
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return gwerr.Wrap(err, gwerr.CodeAuthInvalidSignature,
			"auth: issuer verification failed")
	default:
		return gwerr.Wrap(err, gwerr.CodeAuthInvalidSignature,
			"auth: signature verification failed")
	}
}

// audienceAccepted reports whether any presented audience value is in the
// accepted set.
func audienceAccepted(presented []string, accepted map[string]struct{}) bool {
	for _, aud := range presented {
		if _, ok := accepted[aud]; ok {
			return true
		}
	}
	return false
}

// subjectFrom resolves the subject identifier: the sub claim, falling back
// to the provider-specific oid object id.
func subjectFrom(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	if oid, ok := claims["oid"].(string); ok {
		return oid
	}
	return ""
}
