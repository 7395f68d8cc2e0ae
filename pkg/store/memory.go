package store

import (
	"context"
	"sync"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
	"github.com/assocregistry/gateway/pkg/tier"
)

// Memory is an in-memory registry store for tests and local development.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	parties map[string]string    // client id -> party id
	tiers   map[string]tier.Info // party id -> verification state
}

// Compile-time interface compliance checks.
var (
	_ EntityResolver = (*Memory)(nil)
	_ TierReader     = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		parties: make(map[string]string),
		tiers:   make(map[string]tier.Info),
	}
}

// RegisterClient records a client-id to party-id ownership mapping.
func (m *Memory) RegisterClient(clientID, partyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parties[clientID] = partyID
}

// SetTierInfo records a party's verification state.
func (m *Memory) SetTierInfo(partyID string, info tier.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[partyID] = info
}

// ResolvePartyID returns the party id owning the given client id.
func (m *Memory) ResolvePartyID(_ context.Context, clientID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partyID, ok := m.parties[clientID]
	if !ok {
		return "", gwerr.Newf(gwerr.CodeNotFound,
			"store: no party registered for client %q", clientID)
	}
	return partyID, nil
}

// GetTierInfo returns the verification state for the given party id.
func (m *Memory) GetTierInfo(_ context.Context, partyID string) (tier.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.tiers[partyID]
	if !ok {
		return tier.Info{}, gwerr.Newf(gwerr.CodeNotFound,
			"store: no verification record for party %q", partyID)
	}
	return info, nil
}
