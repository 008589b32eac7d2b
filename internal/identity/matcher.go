package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrUnresolvableRecord means a record carries neither a provider ID nor a
// usable display name. Callers skip the record and log it; fabricating an
// identity from nothing would poison the canonical store.
var ErrUnresolvableRecord = errors.New("record has no provider ID and no usable name")

// Store is the durable keyed collection of canonical identities the matcher
// reads and writes. Implementations must make Upsert atomic per
// (provider, external ID) pair: concurrent resolution of the same record
// must not create two identities.
type Store interface {
	// FindByProviderID returns the identity claiming (provider, externalID),
	// or nil when none does.
	FindByProviderID(ctx context.Context, provider, externalID string) (*Identity, error)

	// FindByNormalizedName returns identities of the given kind sharing a
	// normalized name. More than one result means a common-name collision.
	FindByNormalizedName(ctx context.Context, kind Kind, normalizedName string) ([]*Identity, error)

	// Upsert persists the identity and its provider mappings, returning the
	// stored row. A conflicting (provider, external ID) claim resolves to
	// the existing owner rather than creating a duplicate.
	Upsert(ctx context.Context, id *Identity) (*Identity, error)
}

// Matcher resolves raw provider records to canonical identities. Strategies
// run in a fixed priority order and the first success wins: exact provider
// IDs are authoritative and are never overridden by name heuristics.
type Matcher struct {
	store Store
}

// NewMatcher creates a matcher over the given identity store.
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// strategy attempts one matching approach. matched=false with a nil error
// means "no opinion, try the next strategy".
type strategy func(ctx context.Context, kind Kind, rec Record) (*Identity, bool, error)

// Resolve maps rec to exactly one canonical identity, creating one when
// nothing matches. Resolving the same record twice yields the same identity.
func (m *Matcher) Resolve(ctx context.Context, kind Kind, rec Record) (*Identity, error) {
	if rec.ExternalID == "" && NormalizeName(rec.DisplayName) == "" {
		return nil, fmt.Errorf("%w (provider=%s)", ErrUnresolvableRecord, rec.Provider)
	}

	strategies := []strategy{
		m.matchExactProviderID,
		m.matchCrossProviderID,
		m.matchNormalizedName,
	}

	for _, s := range strategies {
		id, matched, err := s(ctx, kind, rec)
		if err != nil {
			return nil, err
		}
		if matched {
			return m.adopt(ctx, id, rec)
		}
	}

	return m.create(ctx, kind, rec)
}

// matchExactProviderID looks for an identity already claiming the record's
// own (provider, external ID) pair. Step 1: always wins.
func (m *Matcher) matchExactProviderID(ctx context.Context, kind Kind, rec Record) (*Identity, bool, error) {
	if rec.ExternalID == "" {
		return nil, false, nil
	}
	id, err := m.store.FindByProviderID(ctx, rec.Provider, rec.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("exact-id lookup: %w", err)
	}
	if id == nil {
		return nil, false, nil
	}
	return id, true, nil
}

// matchCrossProviderID tries any other-provider IDs the payload carried.
// A hit backfills the record's own provider mapping onto that identity.
func (m *Matcher) matchCrossProviderID(ctx context.Context, kind Kind, rec Record) (*Identity, bool, error) {
	for provider, externalID := range rec.CrossIDs {
		if provider == rec.Provider || externalID == "" {
			continue
		}
		id, err := m.store.FindByProviderID(ctx, provider, externalID)
		if err != nil {
			return nil, false, fmt.Errorf("cross-provider lookup (%s): %w", provider, err)
		}
		if id != nil {
			return id, true, nil
		}
	}
	return nil, false, nil
}

// matchNormalizedName matches on the normalized display name, using the team
// code to break ties between players who share a name.
func (m *Matcher) matchNormalizedName(ctx context.Context, kind Kind, rec Record) (*Identity, bool, error) {
	norm := NormalizeName(rec.DisplayName)
	if norm == "" {
		return nil, false, nil
	}

	candidates, err := m.store.FindByNormalizedName(ctx, kind, norm)
	if err != nil {
		return nil, false, fmt.Errorf("name lookup: %w", err)
	}

	switch len(candidates) {
	case 0:
		return nil, false, nil
	case 1:
		return candidates[0], true, nil
	}

	// Collision: disambiguate players by team code.
	if kind == KindPlayer && rec.TeamCode != "" {
		code := NormalizeTeamCode(rec.TeamCode)
		for _, c := range candidates {
			if NormalizeTeamCode(c.TeamCode) == code {
				return c, true, nil
			}
		}
	}

	// Ambiguous and undisambiguated: refuse the match rather than guess.
	log.Printf("[matcher] ambiguous name %q (%d candidates, kind=%s) - falling through to create",
		norm, len(candidates), kind)
	return nil, false, nil
}

// adopt attaches any newly observed provider IDs to a matched identity and
// refreshes its last-seen timestamp.
func (m *Matcher) adopt(ctx context.Context, id *Identity, rec Record) (*Identity, error) {
	id.AddProviderID(rec.Provider, rec.ExternalID)
	for provider, externalID := range rec.CrossIDs {
		id.AddProviderID(provider, externalID)
	}
	if id.TeamCode == "" && rec.TeamCode != "" {
		id.TeamCode = NormalizeTeamCode(rec.TeamCode)
	}
	id.LastSeen = time.Now()

	stored, err := m.store.Upsert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("updating identity %s: %w", id.ID, err)
	}
	return stored, nil
}

// create mints a new canonical identity seeded with the one known mapping.
func (m *Matcher) create(ctx context.Context, kind Kind, rec Record) (*Identity, error) {
	id := New(kind, rec.DisplayName, NormalizeTeamCode(rec.TeamCode))
	id.AddProviderID(rec.Provider, rec.ExternalID)
	for provider, externalID := range rec.CrossIDs {
		id.AddProviderID(provider, externalID)
	}

	stored, err := m.store.Upsert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("creating identity for %s record: %w", rec.Provider, err)
	}

	log.Printf("[matcher] created %s identity %s (%s via %s)", kind, stored.ID, stored.DisplayName, rec.Provider)
	return stored, nil
}
