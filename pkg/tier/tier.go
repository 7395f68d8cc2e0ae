// Package tier implements authentication-assurance tier authorization for
// the association registry gateway.
//
// A tier expresses how strongly a member's identity was verified. Tiers are
// ordered: a LOWER numeric value means STRONGER assurance. Tier 1 is
// eHerkenning-grade verification, tier 3 is email-only. A caller verified at
// tier N may perform any operation requiring tier N or weaker, so the grant
// condition is a plain numeric comparison:
//
//	userTier <= requiredTier
//
// Principals holding an admin-family role bypass tier checks entirely;
// administrative access is governed by RBAC, not by member verification
// level.
//
// Every tier decision, granted or denied, is recorded to the audit sink.
// Audit writes are fire-and-forget and never affect the request outcome.
package tier

import (
	"fmt"
	"time"
)

// Tier is an ordered authentication-assurance level. Lower numeric value
// means stronger identity verification.
type Tier int

// Assurance tiers, strongest first.
const (
	// Tier1 is the strongest assurance level (eHerkenning-equivalent
	// verification of the legal entity).
	Tier1 Tier = 1

	// Tier2 is intermediate assurance (bank-mediated identity such as iDIN).
	Tier2 Tier = 2

	// Tier3 is the weakest assurance level (email-only verification).
	Tier3 Tier = 3
)

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= Tier1 && t <= Tier3
}

// Satisfies reports whether a caller verified at tier t may perform an
// operation requiring the given tier. Lower value = stronger assurance,
// so the comparison is numeric.
func (t Tier) Satisfies(required Tier) bool {
	return t <= required
}

// String returns a human-readable representation such as "tier-1".
func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier-invalid(%d)", int(t))
	}
	return fmt.Sprintf("tier-%d", int(t))
}

// ParseTier converts a stored integer into a [Tier], rejecting values
// outside the defined range. Store rows are untrusted input here: a
// corrupted or future-valued tier must not silently satisfy a check.
func ParseTier(v int) (Tier, error) {
	t := Tier(v)
	if !t.Valid() {
		return 0, fmt.Errorf("tier: value %d outside defined range [1,3]", v)
	}
	return t, nil
}

// VerificationMethod identifies how an entity's identity was verified.
type VerificationMethod string

// Known verification methods, strongest first.
const (
	MethodEHerkenning VerificationMethod = "eherkenning"
	MethodIDIN        VerificationMethod = "idin"
	MethodEmail       VerificationMethod = "email"
)

// Info describes an entity's current verification state as recorded in the
// registry store. It is attached to the request context after a granted
// tier check so downstream handlers can surface re-verification prompts.
type Info struct {
	// Tier is the assurance level the entity is currently verified at.
	Tier Tier

	// Method is the verification mechanism that established the tier.
	Method VerificationMethod

	// VerifiedAt is when the verification was last completed.
	VerifiedAt time.Time

	// ReverificationDue is when the entity must re-verify to retain its
	// tier. Zero means no re-verification is scheduled.
	ReverificationDue time.Time
}

// ReverificationOverdue reports whether the entity's scheduled
// re-verification deadline has passed as of now.
func (i Info) ReverificationOverdue(now time.Time) bool {
	return !i.ReverificationDue.IsZero() && now.After(i.ReverificationDue)
}
