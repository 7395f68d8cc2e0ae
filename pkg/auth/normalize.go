package auth

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// EntityResolver maps a machine client identifier to its owning party id.
// The registry store satisfies this.
type EntityResolver interface {
	ResolvePartyID(ctx context.Context, clientID string) (string, error)
}

// projectRolesClaim is Zitadel's nested project-roles claim: a map of
// role name to the organizations it was granted in.
const projectRolesClaim = "urn:zitadel:iam:org:project:roles"

// standardScopes are OIDC protocol scopes that never represent a machine
// capability and are excluded from scope-derived roles.
var standardScopes = map[string]struct{}{
	"openid":         {},
	"profile":        {},
	"email":          {},
	"offline_access": {},
}

// emailClaims are the interactive email sources, in priority order.
var emailClaims = []string{"email", "preferred_username", "upn"}

// Normalizer converts validated provider-specific claims into a canonical
// [Principal].
//
// For machine principals the owning entity is resolved by a server-side
// lookup keyed on the token's client identifier. It is never taken from a
// request field: a client-supplied entity id, however well-formed, does
// not establish ownership.
type Normalizer struct {
	resolver EntityResolver
	logger   *slog.Logger
}

// NewNormalizer builds a normalizer. A nil logger falls back to
// [slog.Default].
func NewNormalizer(resolver EntityResolver, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{resolver: resolver, logger: logger}
}

// Normalize builds the request principal from validated claims.
//
// Interactive tokens take their roles from the application-roles claim
// and the keys of the project-roles claim, parsed against the closed
// platform set, and their email from the first present of email,
// preferred_username and upn.
//
// Machine tokens take their roles from the union of non-standard scopes
// and the keys of the nested project-roles claim. Their party id comes
// from the registry lookup; a client with no registration yields a
// principal without an entity, which downstream entity-scoped checks
// reject.
//
// Normalize itself never fails: a validated token always yields an
// authenticated principal. Lookup faults degrade to an entity-less
// principal and are logged.
func (n *Normalizer) Normalize(ctx context.Context, claims *TokenClaims) *Principal {
	p := &Principal{
		Subject:  claims.Subject,
		Provider: claims.Provider,
		ClientID: clientIDFrom(claims),
	}
	p.IsM2M = isMachineToken(claims, p.ClientID)

	if p.IsM2M {
		p.Roles = machineRoles(claims)
		p.PartyID = n.resolveParty(ctx, p.ClientID)
		return p
	}

	p.Email = emailFrom(claims)
	p.Roles = interactiveRoles(claims)
	p.PartyID = partyClaimFrom(claims)
	return p
}

// resolveParty looks up the owning party for a machine client. Absence and
// store faults both yield an empty party id; the latter is logged as an
// internal fault, not an authentication failure.
func (n *Normalizer) resolveParty(ctx context.Context, clientID string) string {
	if clientID == "" || n.resolver == nil {
		return ""
	}
	partyID, err := n.resolver.ResolvePartyID(ctx, clientID)
	if err != nil {
		if !gwerr.HasCode(err, gwerr.CodeNotFound) {
			n.logger.LogAttrs(ctx, slog.LevelError, "party resolution failed",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return partyID
}

// isMachineToken reports whether the token was issued via client
// credentials. A machine token identifies a client and carries no
// interactive user marker.
func isMachineToken(claims *TokenClaims, clientID string) bool {
	if clientID == "" {
		return false
	}
	for _, claim := range emailClaims {
		if s, ok := claims.Raw[claim].(string); ok && s != "" {
			return false
		}
	}
	return true
}

// clientIDFrom reads the client identifier: client_id (Zitadel), falling
// back to azp and the legacy appid (AzureAD).
func clientIDFrom(claims *TokenClaims) string {
	for _, claim := range []string{"client_id", "azp", "appid"} {
		if s, ok := claims.Raw[claim].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// emailFrom returns the first present email-family claim.
func emailFrom(claims *TokenClaims) string {
	for _, claim := range emailClaims {
		if s, ok := claims.Raw[claim].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// partyClaimFrom reads the interactive principal's entity claim.
func partyClaimFrom(claims *TokenClaims) string {
	for _, claim := range []string{"partyId", "legalEntityId"} {
		if s, ok := claims.Raw[claim].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// interactiveRoles parses the union of the application-roles claim and
// the keys of the project-roles claim against the closed platform set.
// AzureAD grants arrive in "roles", Zitadel grants as project-role keys;
// a token may carry either or both. Unknown values map to
// RoleUnrecognized, once.
func interactiveRoles(claims *TokenClaims) []Role {
	seen := make(map[Role]struct{})
	var roles []Role
	add := func(s string) {
		role := ParseRole(s)
		if _, dup := seen[role]; dup {
			return
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}

	if raw, ok := claims.Raw["roles"].([]any); ok {
		for _, entry := range raw {
			if s, ok := entry.(string); ok {
				add(s)
			}
		}
	}

	if projectRoles, ok := claims.Raw[projectRolesClaim].(map[string]any); ok {
		names := make([]string, 0, len(projectRoles))
		for name := range projectRoles {
			if name != "" {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(name)
		}
	}

	return roles
}

// machineRoles derives the role set for a machine principal: non-standard
// scopes plus the keys of the project-roles claim map, deduplicated and
// sorted for stable audit output.
func machineRoles(claims *TokenClaims) []Role {
	seen := make(map[string]struct{})

	if scope, ok := claims.Raw["scope"].(string); ok {
		for _, s := range strings.Fields(scope) {
			if _, standard := standardScopes[s]; standard {
				continue
			}
			seen[s] = struct{}{}
		}
	}

	if projectRoles, ok := claims.Raw[projectRolesClaim].(map[string]any); ok {
		for name := range projectRoles {
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	roles := make([]Role, len(names))
	for i, name := range names {
		roles[i] = Role(name)
	}
	return roles
}
