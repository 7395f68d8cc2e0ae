package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeAuthMissingSubject, "token carries no subject")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
// Use this for creating errors with dynamic content in the message.
//
// Example:
//
//	err := errors.Newf(errors.CodeAuthUnknownIssuer, "issuer %q is not configured", iss)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	key, err := resolver.Resolve(ctx, kid)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeAuthKeyFetchFailure, "signing key unavailable")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
// This is a convenience function equivalent to New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// Unauthorized creates a new generic authentication error. Use the
// specific CodeAuth* codes where the failure reason is known; this
// constructor exists for credential extraction failures.
//
// Example:
//
//	err := errors.Unauthorized("missing bearer token")
func Unauthorized(message string) *Error {
	return New(CodeAuthMissingCredential, message)
}

// Forbidden creates a new generic authorization error.
// Use this when the authenticated caller lacks permission for an action.
//
// Example:
//
//	err := errors.Forbidden("permission view-audit-logs required")
func Forbidden(message string) *Error {
	return New(CodeAuthzInsufficientPermission, message)
}

// RateLimited creates a new rate limit error carrying retry timing in
// its details. retryAfterSeconds is the number of whole seconds until
// the caller's quota window resets.
//
// Example:
//
//	err := errors.RateLimited("auth bucket exhausted", 42)
func RateLimited(message string, retryAfterSeconds int) *Error {
	return New(CodeRateLimited, message).WithDetail("retry_after", retryAfterSeconds)
}

// Internal creates a new internal error.
// Use this for unexpected system failures that should not expose details
// to users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf creates a new internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable creates a new service unavailable error.
// Use this when a dependency (identity provider, store) is temporarily
// unavailable.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts a standard error to an Error.
// If the error is already an *Error, it is returned as-is.
// Otherwise, it is wrapped as an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
