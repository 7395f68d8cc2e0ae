package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// HTTPClient is the outbound HTTP surface the key resolver uses. Satisfied
// by [*http.Client]; tests substitute a stub.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxJWKSBody bounds the JWKS response size read into memory.
const maxJWKSBody = 1 << 20

// jwksDocument is the JSON shape of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// jwk is a single JSON Web Key. Only RSA signing keys are used.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// providerKeys is the cached key set for one provider.
type providerKeys struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// fetchBudget is a per-provider fixed-window counter limiting outbound
// JWKS fetches, so the gateway cannot hammer an identity provider during
// key rotation.
type fetchBudget struct {
	windowStart time.Time
	count       int
}

// KeyResolver resolves token signing keys from the configured providers'
// JWKS endpoints.
//
// Resolved keys are cached per provider. A cache entry is fresh for the
// configured TTL; an unknown kid triggers a refetch regardless of
// freshness, because key rotation publishes new kids before old ones
// expire. Concurrent cold fetches for the same provider are coalesced
// into one in-flight request; callers await the same result.
//
// The resolver owns process-wide mutable state with a process
// lifecycle: construct it once at startup and access it only through
// ResolveKey.
type KeyResolver struct {
	client HTTPClient
	urls   map[Provider]string
	ttl    time.Duration
	budget int
	now    func() time.Time

	mu      sync.RWMutex
	cache   map[Provider]*providerKeys
	budgets map[Provider]*fetchBudget

	group singleflight.Group
}

// NewKeyResolver builds a resolver for the enabled providers in cfg. A
// nil client falls back to http.DefaultClient.
func NewKeyResolver(cfg config.Gateway, client HTTPClient) *KeyResolver {
	if client == nil {
		client = http.DefaultClient
	}
	urls := make(map[Provider]string, 2)
	if cfg.AzureAD.Enabled() {
		urls[ProviderAzureAD] = cfg.AzureAD.JWKSURL
	}
	if cfg.Zitadel.Enabled() {
		urls[ProviderZitadel] = cfg.Zitadel.JWKSURL
	}
	return &KeyResolver{
		client:  client,
		urls:    urls,
		ttl:     cfg.JWKSCacheTTL,
		budget:  cfg.JWKSFetchPerMinute,
		now:     time.Now,
		cache:   make(map[Provider]*providerKeys),
		budgets: make(map[Provider]*fetchBudget),
	}
}

// ResolveKey returns the RSA public key for the given provider and kid.
//
// Error codes returned:
//   - [gwerr.CodeAuthKeyFetchFailure]: the JWKS endpoint is unreachable,
//     returned a bad response, or the fetch budget is exhausted and no
//     cached key exists
//   - [gwerr.CodeAuthInvalidSignature]: the provider's current key set
//     does not contain the kid
//
// Both are surfaced to the caller as a generic 401; the detail is logged
// server-side only.
func (r *KeyResolver) ResolveKey(ctx context.Context, provider Provider, kid string) (*rsa.PublicKey, error) {
	url, ok := r.urls[provider]
	if !ok {
		return nil, gwerr.Newf(gwerr.CodeAuthKeyFetchFailure,
			"auth: no JWKS endpoint configured for provider %q", provider)
	}

	if key, ok := r.cachedKey(provider, kid, true); ok {
		return key, nil
	}

	// Coalesce concurrent fetches per provider; every waiter gets the
	// result of the single in-flight request.
	_, err, _ := r.group.Do(string(provider), func() (any, error) {
		// A racing caller may have refreshed the cache while this one
		// waited on the flight group.
		if _, ok := r.cachedKey(provider, kid, true); ok {
			return nil, nil
		}
		if !r.consumeFetchBudget(provider) {
			return nil, gwerr.Newf(gwerr.CodeAuthKeyFetchFailure,
				"auth: JWKS fetch budget exhausted for provider %q", provider)
		}
		keys, fetchErr := r.fetch(ctx, url)
		if fetchErr != nil {
			return nil, fetchErr
		}
		r.mu.Lock()
		r.cache[provider] = &providerKeys{keys: keys, fetchedAt: r.now()}
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		// Budget exhaustion or a failed fetch: a stale cached key is
		// still better than rejecting every request until the window
		// resets.
		if key, ok := r.cachedKey(provider, kid, false); ok {
			return key, nil
		}
		if gwerr.HasCode(err, gwerr.CodeAuthKeyFetchFailure) {
			return nil, err
		}
		return nil, gwerr.Wrapf(err, gwerr.CodeAuthKeyFetchFailure,
			"auth: JWKS fetch failed for provider %q", provider)
	}

	if key, ok := r.cachedKey(provider, kid, false); ok {
		return key, nil
	}
	return nil, gwerr.Newf(gwerr.CodeAuthInvalidSignature,
		"auth: provider %q key set contains no key %q", provider, kid)
}

// cachedKey returns the cached key for the kid. With requireFresh, entries
// older than the TTL are ignored.
func (r *KeyResolver) cachedKey(provider Provider, kid string, requireFresh bool) (*rsa.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[provider]
	if !ok {
		return nil, false
	}
	if requireFresh && r.now().Sub(entry.fetchedAt) >= r.ttl {
		return nil, false
	}
	key, ok := entry.keys[kid]
	return key, ok
}

// consumeFetchBudget reserves one outbound fetch in the provider's current
// one-minute window, reporting false when the budget is exhausted.
func (r *KeyResolver) consumeFetchBudget(provider Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.budgets[provider]
	if !ok || now.Sub(b.windowStart) >= time.Minute {
		b = &fetchBudget{windowStart: now}
		r.budgets[provider] = b
	}
	if b.count >= r.budget {
		return false
	}
	b.count++
	return true
}

// fetch retrieves and parses the provider's JWKS document. Non-RSA keys
// and keys marked for encryption use are skipped.
func (r *KeyResolver) fetch(ctx context.Context, url string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeAuthKeyFetchFailure,
			"auth: failed to build JWKS request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeAuthKeyFetchFailure,
			"auth: JWKS endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, gwerr.Newf(gwerr.CodeAuthKeyFetchFailure,
			"auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeAuthKeyFetchFailure,
			"auth: failed to read JWKS response")
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeAuthKeyFetchFailure,
			"auth: failed to parse JWKS response")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, parseErr := parseRSAKey(k)
		if parseErr != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, gwerr.New(gwerr.CodeAuthKeyFetchFailure,
			"auth: JWKS response contains no usable RSA signing keys")
	}
	return keys, nil
}

// parseRSAKey converts the base64url modulus and exponent of a JWK into
// an rsa.PublicKey.
func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid exponent value %d", e)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
