package ratelimit

import (
	"net/http"
	"strings"
)

// clientAddressHeaders are consulted in order for the best-effort client
// address of an unauthenticated request.
var clientAddressHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
}

// KeyFor derives the rate-limit key for a request: "user:<id>" when a
// principal identifier was resolved upstream, else "ip:<address>" from
// proxy headers, falling back to the literal "unknown". The key is always
// derived server-side; no request field chooses its own key.
func KeyFor(principalID string, r *http.Request) string {
	if principalID != "" {
		return "user:" + principalID
	}
	return "ip:" + clientAddress(r)
}

// clientAddress returns the first present proxy-supplied client address.
// X-Forwarded-For may carry a chain; the first entry is the originating
// client.
func clientAddress(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	for _, header := range clientAddressHeaders {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}
		if first, _, found := strings.Cut(value, ","); found {
			value = strings.TrimSpace(first)
		}
		if value != "" {
			return value
		}
	}
	return "unknown"
}
