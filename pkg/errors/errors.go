// Package errors provides standardized error types and error handling
// utilities for the association-registry gateway. It defines the error
// categories the authentication and authorization pipeline produces, with
// machine-readable codes and helper functions for creating, wrapping, and
// inspecting errors.
//
// # Error Categories
//
// The package defines categories that map to the gateway's failure modes:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Missing, malformed, expired, or unverifiable tokens
//   - Authorization errors: Insufficient role, permission, or assurance tier
//   - RateLimit errors: Quota exceeded on a named bucket
//   - NotFound errors: Resource does not exist
//   - Internal errors: Unexpected system failures
//   - Unavailable errors: Upstream dependency temporarily unavailable
//   - Timeout errors: Operation exceeded time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_004") usable for
// tracking, alerting, and client-side handling. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short identifier and XXX is a numeric
// code.
//
// # Security Note
//
// Authentication error codes exist for server-side logging and metrics
// only. The HTTP layer collapses every AUTH_xxx code into a single generic
// 401 invalid_token response so that clients cannot probe for the precise
// failure reason. Authorization (AUTHZ_xxx) and rate limit (RATE_xxx)
// codes may be surfaced to callers, since those callers are already
// authenticated.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeAuthAudienceMismatch, "audience not accepted")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternal, "failed to write audit record")
//
// Check error category:
//
//	if errors.IsRateLimited(err) {
//	    // respond 429 with retry guidance
//	}
package errors
