package auth

import "slices"

// Principal is the canonical authenticated identity for a request. It is
// built once by the identity normalizer after successful token validation
// and treated as immutable for the rest of the request.
//
// Scoping identifiers (PartyID) originate exclusively from the validated
// token and server-side lookups. Handlers must scope data access to
// [Principal.PartyID] and never to caller-supplied request parameters; a
// well-formed entity id in a query string is still untrusted input.
type Principal struct {
	// Subject is the stable subject identifier from the validated token.
	// Never empty for an authenticated principal.
	Subject string

	// Email is the display email for interactive principals. Empty for
	// machine principals.
	Email string

	// Roles is the principal's role set: parsed application roles for
	// interactive tokens, scope-derived roles for machine tokens.
	Roles []Role

	// IsM2M marks a machine-to-machine principal authenticated via
	// client credentials.
	IsM2M bool

	// ClientID is the OAuth client identifier for machine principals.
	ClientID string

	// PartyID is the legal entity the principal belongs to. For machine
	// principals it is resolved by server-side lookup keyed on ClientID;
	// for interactive principals it comes from a token claim. Empty when
	// no entity could be established.
	PartyID string

	// Provider tags which identity provider issued the token.
	Provider Provider
}

// Authenticated reports whether the principal carries a resolved identity.
// The zero Principal is unauthenticated and fails every role and
// permission check.
func (p *Principal) Authenticated() bool {
	return p != nil && p.Subject != ""
}

// Identifier returns the best identifier for audit records and rate-limit
// keys: the client id for machine principals, else the subject.
func (p *Principal) Identifier() string {
	if p == nil {
		return ""
	}
	if p.IsM2M && p.ClientID != "" {
		return p.ClientID
	}
	return p.Subject
}

// HasRole reports whether the principal holds the exact role.
func (p *Principal) HasRole(role Role) bool {
	if !p.Authenticated() {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// HasAnyRole reports whether the principal holds at least one of the
// given roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	if !p.Authenticated() {
		return false
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds any admin-family role.
func (p *Principal) IsAdmin() bool {
	if !p.Authenticated() {
		return false
	}
	for _, r := range p.Roles {
		if r.Admin() {
			return true
		}
	}
	return false
}
