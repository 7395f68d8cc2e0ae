package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, AUTHZ, RATE) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	RATE_xxx    - Rate limit errors (429 Too Many Requests)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Every one of these collapses to a generic invalid_token response at
	// the HTTP layer; the specific code appears only in server-side logs.

	// CodeAuthMissingCredential indicates no bearer token was presented.
	CodeAuthMissingCredential Code = "AUTH_001"

	// CodeAuthMalformedCredential indicates the token could not be decoded.
	CodeAuthMalformedCredential Code = "AUTH_002"

	// CodeAuthUnknownIssuer indicates the token's issuer matches no
	// configured identity provider.
	CodeAuthUnknownIssuer Code = "AUTH_003"

	// CodeAuthInvalidSignature indicates the token signature did not verify.
	CodeAuthInvalidSignature Code = "AUTH_004"

	// CodeAuthExpiredToken indicates the token is outside its validity window.
	CodeAuthExpiredToken Code = "AUTH_005"

	// CodeAuthAudienceMismatch indicates the token's audience matches none
	// of the accepted audience values for its provider.
	CodeAuthAudienceMismatch Code = "AUTH_006"

	// CodeAuthMissingSubject indicates the token carries no usable subject
	// identifier (neither sub nor a provider-specific object id).
	CodeAuthMissingSubject Code = "AUTH_007"

	// CodeAuthKeyFetchFailure indicates the signing key could not be
	// obtained from the provider's JWKS endpoint. Surfaced to callers as
	// a generic invalid-signature outcome; logged in full server-side.
	CodeAuthKeyFetchFailure Code = "AUTH_008"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// The authenticated caller lacks a required role, permission, or tier.

	// CodeAuthzInsufficientRole indicates a required role is missing.
	CodeAuthzInsufficientRole Code = "AUTHZ_001"

	// CodeAuthzInsufficientPermission indicates a required permission
	// is missing.
	CodeAuthzInsufficientPermission Code = "AUTHZ_002"

	// CodeAuthzInsufficientTier indicates the caller's authentication
	// assurance tier is weaker than the operation requires.
	CodeAuthzInsufficientTier Code = "AUTHZ_003"

	// CodeAuthzEntityUnresolved indicates no target entity could be
	// resolved for a tier check. Distinct from a tier denial.
	CodeAuthzEntityUnresolved Code = "AUTHZ_004"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// Rate limit errors (RATE_xxx) - HTTP 429

	// CodeRateLimited indicates a quota bucket was exhausted for the
	// caller's rate limit key.
	CodeRateLimited Code = "RATE_001"

	// Internal errors (INT_xxx) - HTTP 500
	// Genuine internal faults. Never used to represent a security
	// decision, and never masked by one.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDependency indicates a call to a dependency timed out.
	CodeTimeoutDependency Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "AUTH",
// "RATE").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
