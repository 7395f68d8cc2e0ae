package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_Category(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code Code
		want string
	}{
		{"validation", CodeValidation, "VAL"},
		{"authentication", CodeAuthInvalidSignature, "AUTH"},
		{"authorization", CodeAuthzInsufficientTier, "AUTHZ"},
		{"rate limit", CodeRateLimited, "RATE"},
		{"not found", CodeNotFound, "NF"},
		{"internal", CodeInternalDatabase, "INT"},
		{"unavailable", CodeUnavailableDependency, "UNAVAIL"},
		{"timeout", CodeTimeoutDependency, "TIMEOUT"},
		{"no underscore", Code("WEIRD"), "WEIRD"},
		{"empty", Code(""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.Category())
		})
	}
}

func TestCode_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "AUTH_006", CodeAuthAudienceMismatch.String())
	assert.Equal(t, "RATE_001", CodeRateLimited.String())
}

// Every authentication failure in the taxonomy must carry a distinct code
// so server-side logs can distinguish causes that clients cannot.
func TestAuthCodes_AreDistinct(t *testing.T) {
	t.Parallel()

	authCodes := []Code{
		CodeAuthMissingCredential,
		CodeAuthMalformedCredential,
		CodeAuthUnknownIssuer,
		CodeAuthInvalidSignature,
		CodeAuthExpiredToken,
		CodeAuthAudienceMismatch,
		CodeAuthMissingSubject,
		CodeAuthKeyFetchFailure,
	}

	seen := make(map[Code]struct{}, len(authCodes))
	for _, c := range authCodes {
		assert.Equal(t, "AUTH", c.Category(), "code %q should be in the AUTH category", c)
		_, dup := seen[c]
		assert.False(t, dup, "duplicate code %q", c)
		seen[c] = struct{}{}
	}
}
