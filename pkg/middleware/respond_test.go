package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
	"github.com/assocregistry/gateway/pkg/ratelimit"
)

func TestWriteUnauthorized_ChallengeHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeUnauthorized(rec, "registry", true)
	assert.Equal(t, `Bearer realm="registry", error="invalid_token"`,
		rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	writeUnauthorized(rec, "registry", false)
	assert.Equal(t, `Bearer realm="registry"`, rec.Header().Get("WWW-Authenticate"))
}

func TestWriteForbidden_CarriesDetails(t *testing.T) {
	t.Parallel()

	err := gwerr.New(gwerr.CodeAuthzInsufficientRole, "caller holds none of the required roles").
		WithDetail("required_roles", []string{"SystemAdmin"})

	rec := httptest.NewRecorder()
	writeForbidden(rec, err)

	assert.Equal(t, 403, rec.Code)
	assert.Contains(t, rec.Body.String(), "required_roles")
	assert.Contains(t, rec.Body.String(), "SystemAdmin")
}

func TestWriteRateLimited_ClampsFailOpenRemaining(t *testing.T) {
	t.Parallel()

	bucket := ratelimit.Bucket{Name: ratelimit.BucketAPI, Points: 100, Window: time.Minute}
	res := ratelimit.Result{Allowed: false, Remaining: -1, MsBeforeNext: 1500}

	rec := httptest.NewRecorder()
	writeRateLimited(rec, bucket, true, res)

	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
