// Package store provides access to the association registry's backing data
// for the authorization path: machine-client ownership resolution and
// entity verification (tier) status.
//
// The gateway never exposes the registry schema; consumers depend on the
// two lookup operations only:
//
//   - ResolvePartyID maps an OAuth client identifier to the legal entity
//     that owns it. Machine principals carry no entity claim of their own,
//     so this lookup establishes which entity's data a machine token may
//     touch.
//   - GetTierInfo returns the entity's current verification state: the
//     assurance tier, how it was established, and when re-verification
//     falls due.
//
// Two implementations are provided. [Postgres] is the production store,
// backed by a pgx connection pool with OpenTelemetry tracing on every
// query. [Memory] is a fixture store for tests and local development.
//
// A missing row is a [gwerr.CodeNotFound] error in both implementations;
// callers translate absence into the appropriate authorization outcome.
package store

import (
	"context"

	"github.com/assocregistry/gateway/pkg/tier"
)

// EntityResolver maps a machine client identifier to the party (legal
// entity) that registered it.
type EntityResolver interface {
	// ResolvePartyID returns the party id owning the given OAuth client id.
	// Returns a [gwerr.CodeNotFound] error when no registration exists.
	ResolvePartyID(ctx context.Context, clientID string) (string, error)
}

// TierReader reads an entity's verification status.
type TierReader interface {
	// GetTierInfo returns the verification state for the given party id.
	// Returns a [gwerr.CodeNotFound] error when the entity has no recorded
	// verification.
	GetTierInfo(ctx context.Context, partyID string) (tier.Info, error)
}

// Registry combines the lookup operations the gateway needs. Both
// [*Postgres] and [*Memory] satisfy it.
type Registry interface {
	EntityResolver
	TierReader
}
