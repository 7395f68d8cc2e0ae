package config

import (
	"time"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// Gateway is the top-level configuration for the auth gateway. It covers
// the two identity providers, JWKS caching, the rate limit buckets, and
// the backing stores. Load it with [MustLoad]:
//
//	cfg := config.MustLoad[config.Gateway](
//	    config.New().WithEnvPrefix("GATEWAY").WithFile("gateway.yaml"),
//	)
type Gateway struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080" yaml:"listen_addr"`

	// Realm is the value placed in WWW-Authenticate challenge headers
	// on 401 responses.
	Realm string `env:"REALM" envDefault:"association-registry" yaml:"realm"`

	// AzureAD configures the Azure AD identity provider.
	AzureAD Provider `env:"AZUREAD" yaml:"azuread"`

	// Zitadel configures the Zitadel identity provider.
	Zitadel Provider `env:"ZITADEL" yaml:"zitadel"`

	// JWKSCacheTTL is how long resolved signing keys are cached before a
	// refetch is required. Defaults to 10 minutes.
	JWKSCacheTTL time.Duration `env:"JWKS_CACHE_TTL" envDefault:"10m" yaml:"jwks_cache_ttl"`

	// JWKSFetchPerMinute caps outbound JWKS requests per provider to
	// avoid hammering an identity provider during key rotation.
	// Defaults to 10.
	JWKSFetchPerMinute int `env:"JWKS_FETCH_PER_MINUTE" envDefault:"10" yaml:"jwks_fetch_per_minute"`

	// ClockSkew is the allowed clock difference between the gateway and
	// the token issuers. Defaults to 30 seconds.
	ClockSkew time.Duration `env:"CLOCK_SKEW" envDefault:"30s" yaml:"clock_skew"`

	// Redis configures the rate limit bucket store. When Addr is empty
	// the gateway falls back to the in-memory store.
	Redis Redis `env:"REDIS" yaml:"redis"`

	// Postgres configures the trusted entity/tier lookup store and the
	// audit decision sink.
	Postgres Postgres `env:"POSTGRES" yaml:"postgres"`
}

// Provider holds the validation settings for one external identity
// provider. Audiences is a SET: the same logical client may present
// different historical audience formats (application-ID-URI and bare
// client id), and a token is accepted when its audience matches any
// configured value.
type Provider struct {
	// IssuerURL is the exact issuer string expected in the iss claim.
	// Dispatch compares the unverified token's issuer against this value
	// with exact string equality.
	IssuerURL string `env:"ISSUER_URL" yaml:"issuer_url"`

	// JWKSURL is the provider's JWKS endpoint.
	JWKSURL string `env:"JWKS_URL" yaml:"jwks_url"`

	// Audiences is the set of accepted aud values, comma-separated in
	// env form (e.g. "api://1111-2222,1111-2222").
	Audiences []string `env:"AUDIENCES" yaml:"audiences"`
}

// Enabled reports whether the provider is configured. A provider with no
// issuer URL is skipped during dispatch.
func (p Provider) Enabled() bool {
	return p.IssuerURL != ""
}

// Redis holds connection settings for the rate limit store.
type Redis struct {
	Addr     string        `env:"ADDR" yaml:"addr"`
	Password string        `env:"PASSWORD" yaml:"password"`
	DB       int           `env:"DB" envDefault:"0" yaml:"db"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"3s" yaml:"timeout"`
}

// Postgres holds connection settings for the registry lookup store and
// the audit sink.
type Postgres struct {
	DSN            string        `env:"DSN" yaml:"dsn"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s" yaml:"connect_timeout"`
}

// Validate checks the configuration for logical correctness.
//
// Validation rules:
//   - At least one identity provider must be enabled
//   - An enabled provider must carry a JWKS URL and at least one audience
//   - JWKSCacheTTL and ClockSkew must be non-negative
//   - JWKSFetchPerMinute must be positive
func (g *Gateway) Validate() error {
	if !g.AzureAD.Enabled() && !g.Zitadel.Enabled() {
		return gwerr.New(gwerr.CodeValidation,
			"config: at least one identity provider must be configured")
	}

	for _, p := range []struct {
		name string
		cfg  Provider
	}{
		{"azuread", g.AzureAD},
		{"zitadel", g.Zitadel},
	} {
		if !p.cfg.Enabled() {
			continue
		}
		if p.cfg.JWKSURL == "" {
			return gwerr.Newf(gwerr.CodeValidation,
				"config: provider %s has no JWKS URL", p.name)
		}
		if len(p.cfg.Audiences) == 0 {
			return gwerr.Newf(gwerr.CodeValidation,
				"config: provider %s accepts no audiences", p.name)
		}
	}

	if g.JWKSCacheTTL < 0 {
		return gwerr.New(gwerr.CodeValidation, "config: JWKS cache TTL must be non-negative")
	}
	if g.ClockSkew < 0 {
		return gwerr.New(gwerr.CodeValidation, "config: clock skew must be non-negative")
	}
	if g.JWKSFetchPerMinute <= 0 {
		return gwerr.New(gwerr.CodeValidation, "config: JWKS fetch budget must be positive")
	}

	return nil
}
