// Package audit records authorization decisions and security events to an
// external sink.
//
// Two record kinds flow through this package. A [Decision] is the outcome
// of a tier or role check: who asked, for what, and whether it was granted.
// A [SecurityEvent] flags traffic-level anomalies such as exceeded rate
// limits or failed-authentication penalties, kept distinct from ordinary
// request logs so security tooling can consume them separately.
//
// Audit writes never participate in the request outcome. The request path
// hands records to an [AsyncSink], which buffers them and writes from a
// background worker; when the buffer is full, records are dropped and the
// drop is counted, never blocking a request. A sink failure is an internal
// fault and is never surfaced as an authentication or authorization error.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Decision is an append-only audit record of a single authorization check.
// Records are written to the sink and never read back by the gateway.
type Decision struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// Actor identifies the principal the decision was made for: the
	// subject identifier, or the client id for machine principals.
	Actor string `json:"actor"`

	// Resource is the entity the check was scoped to, when one was
	// resolved.
	Resource string `json:"resource,omitempty"`

	// Action names the gated operation, typically "METHOD /path".
	Action string `json:"action"`

	// Granted reports the outcome.
	Granted bool `json:"granted"`

	// Reason explains a denial, or the grant basis (such as an admin
	// bypass). Empty for a plain grant.
	Reason string `json:"reason,omitempty"`

	// UserTier and RequiredTier record the compared assurance levels for
	// tier decisions. Zero when the decision was not tier-based or the
	// caller's tier was never resolved.
	UserTier     int `json:"user_tier,omitempty"`
	RequiredTier int `json:"required_tier,omitempty"`
}

// NewDecision creates a Decision with a fresh id and the given timestamp.
func NewDecision(now time.Time, actor, action string, granted bool) Decision {
	return Decision{
		ID:        uuid.NewString(),
		Timestamp: now,
		Actor:     actor,
		Action:    action,
		Granted:   granted,
	}
}

// EventKind classifies a security event.
type EventKind string

// Security event kinds.
const (
	// EventRateLimitExceeded is emitted when a caller exhausts a rate
	// limit bucket.
	EventRateLimitExceeded EventKind = "rate_limit_exceeded"

	// EventFailedAuthPenalty is emitted when extra points are consumed
	// against the failed-auth bucket after an authentication failure.
	EventFailedAuthPenalty EventKind = "failed_auth_penalty"

	// EventUnknownIssuer is emitted when a token names an issuer no
	// configured provider matches.
	EventUnknownIssuer EventKind = "unknown_issuer"
)

// SecurityEvent is a traffic-level security signal, distinct from request
// logs and from authorization decisions.
type SecurityEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Kind classifies the event.
	Kind EventKind `json:"kind"`

	// Key is the rate-limit key or other subject the event concerns.
	Key string `json:"key,omitempty"`

	// Details carries event-specific attributes (bucket name, points
	// consumed, source address).
	Details map[string]string `json:"details,omitempty"`
}

// NewSecurityEvent creates a SecurityEvent with a fresh id.
func NewSecurityEvent(now time.Time, kind EventKind, key string) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: now,
		Kind:      kind,
		Key:       key,
	}
}

// Sink accepts audit records. Implementations must be safe for concurrent
// use.
type Sink interface {
	// WriteDecision records an authorization decision.
	WriteDecision(ctx context.Context, d Decision) error

	// WriteEvent records a security event.
	WriteEvent(ctx context.Context, e SecurityEvent) error
}

// Discard is a Sink that drops every record. Useful in tests and as a
// default when auditing is not configured.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) WriteDecision(context.Context, Decision) error   { return nil }
func (discardSink) WriteEvent(context.Context, SecurityEvent) error { return nil }
