package tier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/assocregistry/gateway/pkg/audit"
	"github.com/assocregistry/gateway/pkg/auth"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// ReasonNoEntity is the denial reason when no entity id could be resolved
// from the request or the principal. It is distinct from an authorization
// denial: the check could not even name its subject.
const ReasonNoEntity = "TIER_AUTH_NO_ENTITY"

// Store reads an entity's verification state. The registry store
// satisfies this.
type Store interface {
	GetTierInfo(ctx context.Context, partyID string) (Info, error)
}

// Decision is the outcome of a tier check.
type Decision struct {
	// Granted reports whether the operation may proceed.
	Granted bool

	// UserTier is the entity's verified tier. Zero when it was never
	// resolved (admin bypass, unresolved entity).
	UserTier Tier

	// EntityID is the entity the check was scoped to, when resolved.
	EntityID string

	// DenialReason explains a denial, or names the grant basis for a
	// bypass.
	DenialReason string

	// Info is the full verification state on a tier-compared grant.
	Info Info
}

// entityIDShapes match path segments that look like entity identifiers:
// party-prefixed ids and bare UUIDs.
var entityIDShapes = []*regexp.Regexp{
	regexp.MustCompile(`^party-[A-Za-z0-9_-]+$`),
	regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
}

// entityIDFields are the query and body field names an entity id may
// arrive under.
var entityIDFields = []string{"entityId", "partyId", "legalEntityId"}

// maxBodyPeek bounds how much of a request body is read when looking for
// an entity id field.
const maxBodyPeek = 64 << 10

// Authorizer performs tier checks. A check is read-only over the tiers:
// it never advances an entity's verification state.
//
// Every decision, granted or denied, is recorded to the audit sink. The
// sink write is best-effort: wrap the sink in an [audit.AsyncSink] so it
// can never fail or delay the request.
type Authorizer struct {
	store  Store
	sink   audit.Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthorizer builds an authorizer. A nil sink discards decisions and a
// nil logger falls back to [slog.Default].
func NewAuthorizer(store Store, sink audit.Sink, logger *slog.Logger) *Authorizer {
	if sink == nil {
		sink = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{
		store:  store,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Check authorizes the request against the required tier.
//
// The target entity is resolved with a fixed precedence, first match
// wins: a path segment shaped like an entity id, a query parameter, a
// parsed JSON body field, and finally the principal's own entity. The
// resolved id names the subject of the TIER check only; data scoping
// downstream still uses the principal's entity exclusively.
//
// Admin-family principals bypass the tier comparison entirely. For
// everyone else the grant condition is userTier <= requiredTier. An
// unresolvable entity denies with [ReasonNoEntity]; an entity without a
// verification record denies as insufficient.
//
// Error codes returned:
//   - [gwerr.CodeAuthzEntityUnresolved]: no entity id could be resolved
//   - [gwerr.CodeAuthzInsufficientTier]: the entity's tier does not
//     satisfy the requirement
//   - [gwerr.CodeInternalDatabase] (and other internal codes): the tier
//     store faulted; this is an internal fault, never a 403
func (a *Authorizer) Check(ctx context.Context, r *http.Request, p *auth.Principal, required Tier) (Decision, error) {
	action := r.Method + " " + r.URL.Path

	if p.IsAdmin() {
		d := Decision{Granted: true, DenialReason: "admin bypass"}
		a.record(ctx, p, action, d, required)
		return d, nil
	}

	entityID := resolveEntityID(r, p)
	if entityID == "" {
		d := Decision{Granted: false, DenialReason: ReasonNoEntity}
		a.record(ctx, p, action, d, required)
		return d, gwerr.New(gwerr.CodeAuthzEntityUnresolved,
			"tier: no entity id resolvable from request or principal")
	}

	info, err := a.store.GetTierInfo(ctx, entityID)
	if err != nil {
		if gwerr.HasCode(err, gwerr.CodeNotFound) {
			d := Decision{Granted: false, EntityID: entityID, DenialReason: "entity has no verification record"}
			a.record(ctx, p, action, d, required)
			return d, gwerr.Newf(gwerr.CodeAuthzInsufficientTier,
				"tier: entity %q has no verification record", entityID)
		}
		// Store faults stay internal; they are not authorization
		// outcomes and must not surface as 403.
		return Decision{}, err
	}

	d := Decision{
		UserTier: info.Tier,
		EntityID: entityID,
		Info:     info,
	}
	if info.Tier.Satisfies(required) {
		d.Granted = true
	} else {
		d.DenialReason = "verification tier insufficient"
	}
	a.record(ctx, p, action, d, required)

	if !d.Granted {
		return d, gwerr.Newf(gwerr.CodeAuthzInsufficientTier,
			"tier: %s does not satisfy required %s", info.Tier, required)
	}
	return d, nil
}

// record writes the audit decision. Exactly one record per check.
func (a *Authorizer) record(ctx context.Context, p *auth.Principal, action string, d Decision, required Tier) {
	rec := audit.NewDecision(a.now(), p.Identifier(), action, d.Granted)
	rec.Resource = d.EntityID
	rec.Reason = d.DenialReason
	rec.UserTier = int(d.UserTier)
	rec.RequiredTier = int(required)
	if err := a.sink.WriteDecision(ctx, rec); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "audit decision write failed",
			slog.String("error", err.Error()),
		)
	}
}

// resolveEntityID applies the resolution precedence. First match wins.
func resolveEntityID(r *http.Request, p *auth.Principal) string {
	if id := entityIDFromPath(r.URL.Path); id != "" {
		return id
	}
	if id := entityIDFromQuery(r); id != "" {
		return id
	}
	if id := entityIDFromBody(r); id != "" {
		return id
	}
	if p != nil {
		return p.PartyID
	}
	return ""
}

func entityIDFromPath(path string) string {
	for _, segment := range strings.Split(path, "/") {
		for _, shape := range entityIDShapes {
			if shape.MatchString(segment) {
				return segment
			}
		}
	}
	return ""
}

func entityIDFromQuery(r *http.Request) string {
	query := r.URL.Query()
	for _, field := range entityIDFields {
		if v := query.Get(field); v != "" {
			return v
		}
	}
	return ""
}

// entityIDFromBody peeks at a JSON body for an entity id field, restoring
// the body so downstream handlers can still read it.
func entityIDFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return ""
	}

	original := r.Body
	data, err := io.ReadAll(io.LimitReader(original, maxBodyPeek))
	// Restore the consumed prefix so downstream handlers see the full
	// body.
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), original), original}
	if err != nil {
		return ""
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	for _, field := range entityIDFields {
		if v, ok := body[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
