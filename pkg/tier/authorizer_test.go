package tier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assocregistry/gateway/pkg/audit"
	"github.com/assocregistry/gateway/pkg/auth"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type stubStore struct {
	mu    sync.Mutex
	tiers map[string]Info
	err   error
	calls int
}

func (s *stubStore) GetTierInfo(_ context.Context, partyID string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Info{}, s.err
	}
	info, ok := s.tiers[partyID]
	if !ok {
		return Info{}, gwerr.Newf(gwerr.CodeNotFound, "no verification for %q", partyID)
	}
	return info, nil
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []audit.Decision
	events    []audit.SecurityEvent
}

func (s *recordingSink) WriteDecision(_ context.Context, d audit.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *recordingSink) WriteEvent(_ context.Context, e audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func memberPrincipal(partyID string) *auth.Principal {
	return &auth.Principal{
		Subject: "user-123",
		Email:   "member@example.com",
		Roles:   []auth.Role{auth.RoleMemberUser},
		PartyID: partyID,
	}
}

func newTestAuthorizer(store Store) (*Authorizer, *recordingSink) {
	sink := &recordingSink{}
	a := NewAuthorizer(store, sink, testLogger())
	return a, sink
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// Grant and denial
// ---------------------------------------------------------------------------

func TestAuthorizer_Check_Granted(t *testing.T) {
	t.Parallel()

	verifiedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := &stubStore{tiers: map[string]Info{
		"party-42": {Tier: Tier1, Method: MethodEHerkenning, VerifiedAt: verifiedAt},
	}}
	a, sink := newTestAuthorizer(store)

	r := httptest.NewRequest("GET", "/members", nil)
	d, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier2)

	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, Tier1, d.UserTier)
	assert.Equal(t, "party-42", d.EntityID)
	assert.Equal(t, MethodEHerkenning, d.Info.Method)

	require.Len(t, sink.decisions, 1)
	rec := sink.decisions[0]
	assert.True(t, rec.Granted)
	assert.Equal(t, "party-42", rec.Resource)
	assert.Equal(t, 1, rec.UserTier)
	assert.Equal(t, 2, rec.RequiredTier)
}

func TestAuthorizer_Check_InsufficientTierWritesOneRecord(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{
		"party-42": {Tier: Tier2, Method: MethodIDIN},
	}}
	a, sink := newTestAuthorizer(store)

	r := httptest.NewRequest("POST", "/entities", nil)
	d, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier1)

	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier))
	assert.False(t, d.Granted)
	assert.Equal(t, Tier2, d.UserTier)

	require.Len(t, sink.decisions, 1, "exactly one audit record per check")
	rec := sink.decisions[0]
	assert.False(t, rec.Granted)
	assert.Equal(t, "verification tier insufficient", rec.Reason)
	assert.Equal(t, "user-123", rec.Actor)
	assert.Equal(t, "POST /entities", rec.Action)
	assert.Equal(t, 2, rec.UserTier)
	assert.Equal(t, 1, rec.RequiredTier)
}

func TestAuthorizer_Check_ExactTierMatchGranted(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{
		"party-42": {Tier: Tier3, Method: MethodEmail},
	}}
	a, _ := newTestAuthorizer(store)

	r := httptest.NewRequest("GET", "/members", nil)
	d, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier3)

	require.NoError(t, err)
	assert.True(t, d.Granted)
}

// ---------------------------------------------------------------------------
// Admin bypass
// ---------------------------------------------------------------------------

func TestAuthorizer_Check_AdminBypass(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	a, sink := newTestAuthorizer(store)

	for _, role := range []auth.Role{auth.RoleSystemAdmin, auth.RoleAssociationAdmin} {
		p := &auth.Principal{Subject: "admin-1", Roles: []auth.Role{role}}
		r := httptest.NewRequest("DELETE", "/entities/party-42", nil)

		d, err := a.Check(context.Background(), r, p, Tier1)

		require.NoError(t, err, "role %s", role)
		assert.True(t, d.Granted)
		assert.Equal(t, "admin bypass", d.DenialReason)
	}

	assert.Zero(t, store.calls, "bypass must not hit the tier store")
	require.Len(t, sink.decisions, 2, "bypasses are still audited")
	assert.True(t, sink.decisions[0].Granted)
}

func TestAuthorizer_Check_MemberAdminIsNotBypassed(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{
		"party-42": {Tier: Tier2, Method: MethodIDIN},
	}}
	a, _ := newTestAuthorizer(store)

	p := &auth.Principal{
		Subject: "member-admin-1",
		Roles:   []auth.Role{auth.RoleMemberAdmin},
		PartyID: "party-42",
	}
	r := httptest.NewRequest("POST", "/entities", nil)

	_, err := a.Check(context.Background(), r, p, Tier1)

	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier))
	assert.Equal(t, 1, store.calls)
}

// ---------------------------------------------------------------------------
// Entity resolution precedence
// ---------------------------------------------------------------------------

func TestAuthorizer_EntityResolutionPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
		principalID string
		wantEntity  string
	}{
		{
			name:        "path segment with party prefix",
			target:      "/entities/party-77/documents",
			principalID: "party-42",
			wantEntity:  "party-77",
		},
		{
			name:        "path segment shaped like a uuid",
			target:      "/entities/5aa41f2d-14b9-4c5c-9e47-1f2f9f3b8a01",
			principalID: "party-42",
			wantEntity:  "5aa41f2d-14b9-4c5c-9e47-1f2f9f3b8a01",
		},
		{
			name:        "path beats query",
			target:      "/entities/party-77?entityId=party-88",
			principalID: "party-42",
			wantEntity:  "party-77",
		},
		{
			name:        "query parameter entityId",
			target:      "/documents?entityId=party-88",
			principalID: "party-42",
			wantEntity:  "party-88",
		},
		{
			name:        "query parameter legalEntityId",
			target:      "/documents?legalEntityId=party-88",
			principalID: "party-42",
			wantEntity:  "party-88",
		},
		{
			name:        "json body field",
			target:      "/documents",
			body:        `{"entityId":"party-99","title":"statutes"}`,
			contentType: "application/json",
			principalID: "party-42",
			wantEntity:  "party-99",
		},
		{
			name:        "query beats body",
			target:      "/documents?partyId=party-88",
			body:        `{"entityId":"party-99"}`,
			contentType: "application/json",
			principalID: "party-42",
			wantEntity:  "party-88",
		},
		{
			name:        "non-json body is not inspected",
			target:      "/documents",
			body:        `entityId=party-99`,
			contentType: "application/x-www-form-urlencoded",
			principalID: "party-42",
			wantEntity:  "party-42",
		},
		{
			name:        "principal fallback",
			target:      "/members",
			principalID: "party-42",
			wantEntity:  "party-42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &stubStore{tiers: map[string]Info{
				tt.wantEntity: {Tier: Tier1, Method: MethodEHerkenning},
			}}
			a, _ := newTestAuthorizer(store)

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			r := httptest.NewRequest("POST", tt.target, body)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			d, err := a.Check(context.Background(), r, memberPrincipal(tt.principalID), Tier2)

			require.NoError(t, err)
			assert.Equal(t, tt.wantEntity, d.EntityID)
		})
	}
}

func TestAuthorizer_BodyRestoredAfterPeek(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{
		"party-99": {Tier: Tier1, Method: MethodEHerkenning},
	}}
	a, _ := newTestAuthorizer(store)

	payload := `{"entityId":"party-99","title":"statutes"}`
	r := httptest.NewRequest("POST", "/documents", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")

	_, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier2)
	require.NoError(t, err)

	remaining, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(remaining), "downstream handlers must see the full body")
}

// ---------------------------------------------------------------------------
// No entity, no record, store faults
// ---------------------------------------------------------------------------

func TestAuthorizer_Check_NoEntityResolvable(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	a, sink := newTestAuthorizer(store)

	// Principal without a party, nothing in the request either.
	p := memberPrincipal("")
	r := httptest.NewRequest("GET", "/members", nil)

	d, err := a.Check(context.Background(), r, p, Tier2)

	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthzEntityUnresolved))
	assert.False(t, gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier),
		"unresolvable entity is not a tier denial")
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonNoEntity, d.DenialReason)
	assert.Zero(t, store.calls)

	require.Len(t, sink.decisions, 1)
	assert.Equal(t, ReasonNoEntity, sink.decisions[0].Reason)
}

func TestAuthorizer_Check_NoVerificationRecord(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{}}
	a, sink := newTestAuthorizer(store)

	r := httptest.NewRequest("GET", "/members", nil)
	d, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier3)

	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier))
	assert.False(t, d.Granted)

	require.Len(t, sink.decisions, 1)
	assert.Equal(t, "entity has no verification record", sink.decisions[0].Reason)
}

func TestAuthorizer_Check_StoreFaultIsInternal(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: gwerr.New(gwerr.CodeInternalDatabase, "connection reset")}
	a, sink := newTestAuthorizer(store)

	r := httptest.NewRequest("GET", "/members", nil)
	_, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier2)

	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalDatabase))
	assert.False(t, gwerr.HasCode(err, gwerr.CodeAuthzInsufficientTier),
		"store faults must not become authorization denials")
	assert.Empty(t, sink.decisions, "a fault is not a decision")
}

func TestAuthorizer_Check_SinkFailureDoesNotAffectOutcome(t *testing.T) {
	t.Parallel()

	store := &stubStore{tiers: map[string]Info{
		"party-42": {Tier: Tier1, Method: MethodEHerkenning},
	}}
	a := NewAuthorizer(store, failingSink{}, testLogger())

	r := httptest.NewRequest("GET", "/members", nil)
	d, err := a.Check(context.Background(), r, memberPrincipal("party-42"), Tier2)

	require.NoError(t, err)
	assert.True(t, d.Granted)
}

type failingSink struct{}

func (failingSink) WriteDecision(context.Context, audit.Decision) error {
	return errors.New("sink down")
}

func (failingSink) WriteEvent(context.Context, audit.SecurityEvent) error {
	return errors.New("sink down")
}

// ---------------------------------------------------------------------------
// Context propagation
// ---------------------------------------------------------------------------

func TestInfoContext_RoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := InfoFromContext(context.Background())
	assert.False(t, ok)

	info := Info{Tier: Tier2, Method: MethodIDIN}
	ctx := WithInfo(context.Background(), info)

	got, ok := InfoFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, info, got)
}
