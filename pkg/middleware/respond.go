package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
	"github.com/assocregistry/gateway/pkg/ratelimit"
)

// errorBody is the JSON shape of every denial response.
type errorBody struct {
	Error       string         `json:"error"`
	Description string         `json:"error_description,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeUnauthorized sends the generic 401. Every authentication failure
// collapses to this response regardless of the underlying cause; the
// cause is for server-side logs only, never the client.
func writeUnauthorized(w http.ResponseWriter, realm string, credentialPresented bool) {
	if credentialPresented {
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf("Bearer realm=%q, error=%q", realm, "invalid_token"))
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:       "invalid_token",
			Description: "the access token is invalid",
		})
		return
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", realm))
	writeJSON(w, http.StatusUnauthorized, errorBody{
		Error:       "unauthorized",
		Description: "authentication required",
	})
}

// writeForbidden sends a 403 naming the missing requirement. The caller
// is already authenticated, so the detail leaks nothing.
func writeForbidden(w http.ResponseWriter, err error) {
	body := errorBody{
		Error:       "forbidden",
		Description: "missing a required role, permission, or verification tier",
	}
	if e := gwerr.FromError(err); e != nil {
		if len(e.Details) > 0 {
			body.Details = e.Details
		}
		if e.Code == gwerr.CodeAuthzEntityUnresolved || e.Code == gwerr.CodeAuthzInsufficientTier {
			body.Description = "entity verification tier requirement not met"
		}
	}
	writeJSON(w, http.StatusForbidden, body)
}

// writeRateLimited sends a 429 with retry guidance headers.
func writeRateLimited(w http.ResponseWriter, bucket ratelimit.Bucket, haveBucket bool, res ratelimit.Result) {
	if haveBucket {
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(bucket.Points, 10))
	}
	remaining := res.Remaining
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !res.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	}
	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:       "rate_limited",
		Description: "request rate limit exceeded, retry later",
	})
}

// writeInternal sends a generic 500. Internal faults are never dressed up
// as authentication or authorization outcomes.
func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:       "internal_error",
		Description: "an internal error occurred",
	})
}
