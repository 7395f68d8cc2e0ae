package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assocregistry/gateway/internal/testutil"
	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

func resolverConfig(jwksURL string) config.Gateway {
	return config.Gateway{
		AzureAD: config.Provider{
			IssuerURL: azureIssuer,
			JWKSURL:   jwksURL,
			Audiences: []string{"registry-admin"},
		},
		JWKSCacheTTL:       10 * time.Minute,
		JWKSFetchPerMinute: 10,
	}
}

func TestKeyResolver_ResolvesAndCaches(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)
	r := NewKeyResolver(resolverConfig(srv.URL), nil)

	pub, err := r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, key.Key.Public(), pub)

	// Second resolution for the same kid is served from cache.
	_, err = r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits())
}

func TestKeyResolver_RefetchesOnUnknownKid(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)
	r := NewKeyResolver(resolverConfig(srv.URL), nil)

	_, err := r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.NoError(t, err)

	// A kid outside the published set triggers a refetch and then fails.
	_, err = r.ResolveKey(context.Background(), ProviderAzureAD, "kid-rotated")
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthInvalidSignature))
	assert.Equal(t, 2, srv.Hits())
}

func TestKeyResolver_CoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)
	r := NewKeyResolver(resolverConfig(srv.URL), nil)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	// 16 cold-cache callers share in-flight fetches; with coalescing the
	// endpoint sees far fewer requests than callers.
	assert.LessOrEqual(t, srv.Hits(), 2)
}

func TestKeyResolver_FetchBudget(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)

	cfg := resolverConfig(srv.URL)
	cfg.JWKSFetchPerMinute = 2
	r := NewKeyResolver(cfg, nil)

	// Each unknown kid forces a fresh fetch; the third exceeds the budget.
	for i, kid := range []string{"a", "b", "c"} {
		_, err := r.ResolveKey(context.Background(), ProviderAzureAD, kid)
		require.Error(t, err)
		if i < 2 {
			assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthInvalidSignature))
		} else {
			assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthKeyFetchFailure))
		}
	}
	assert.Equal(t, 2, srv.Hits())

	// Cached keys stay resolvable while the budget is exhausted.
	_, err := r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	assert.NoError(t, err)
}

func TestKeyResolver_EndpointFailure(t *testing.T) {
	t.Parallel()

	cfg := resolverConfig("http://127.0.0.1:1/jwks")
	r := NewKeyResolver(cfg, &http.Client{Timeout: 200 * time.Millisecond})

	_, err := r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthKeyFetchFailure))
}

func TestKeyResolver_UnconfiguredProvider(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)
	r := NewKeyResolver(resolverConfig(srv.URL), nil)

	_, err := r.ResolveKey(context.Background(), ProviderZitadel, "kid-1")
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthKeyFetchFailure))
}

func TestKeyResolver_TTLExpiryRefetches(t *testing.T) {
	t.Parallel()

	key := testutil.NewSigningKey(t, "kid-1")
	srv := testutil.NewJWKSServer(t, key)
	r := NewKeyResolver(resolverConfig(srv.URL), nil)

	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.NoError(t, err)
	require.Equal(t, 1, srv.Hits())

	// Advance past the TTL; the next resolution refetches. The budget
	// window also advances, so the fetch is permitted.
	now = now.Add(11 * time.Minute)
	_, err = r.ResolveKey(context.Background(), ProviderAzureAD, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits())
}
