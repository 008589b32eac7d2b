package identity

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two entity classes providers disagree about.
type Kind string

const (
	KindPlayer Kind = "player"
	KindGame   Kind = "game"
)

// Known provider names. Each has its own ID space.
const (
	ProviderStats      = "statsapi"
	ProviderOdds       = "oddsapi"
	ProviderScoreboard = "scoreboard"
)

// Identity is the single internal representation of a real-world player or
// game, unifying every provider's ID for it. Identities are append-only:
// new provider mappings are added as they are observed, never removed.
type Identity struct {
	ID             string            `json:"identity_id" db:"identity_id"`
	Kind           Kind              `json:"kind" db:"kind"`
	DisplayName    string            `json:"display_name" db:"display_name"`
	NormalizedName string            `json:"normalized_name" db:"normalized_name"`
	TeamCode       string            `json:"team_code,omitempty" db:"team_code"`
	ProviderIDs    map[string]string `json:"provider_ids" db:"-"`
	LastSeen       time.Time         `json:"last_seen" db:"last_seen"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// New creates a fresh identity seeded from a single provider observation.
func New(kind Kind, displayName, teamCode string) *Identity {
	return &Identity{
		ID:             uuid.NewString(),
		Kind:           kind,
		DisplayName:    displayName,
		NormalizedName: NormalizeName(displayName),
		TeamCode:       teamCode,
		ProviderIDs:    make(map[string]string),
		LastSeen:       time.Now(),
		CreatedAt:      time.Now(),
	}
}

// HasProvider reports whether this identity already claims an ID for provider.
func (id *Identity) HasProvider(provider string) bool {
	_, ok := id.ProviderIDs[provider]
	return ok
}

// AddProviderID records a provider mapping. Existing mappings are never
// overwritten: exact provider IDs are authoritative once claimed.
func (id *Identity) AddProviderID(provider, externalID string) bool {
	if externalID == "" {
		return false
	}
	if _, ok := id.ProviderIDs[provider]; ok {
		return false
	}
	if id.ProviderIDs == nil {
		id.ProviderIDs = make(map[string]string)
	}
	id.ProviderIDs[provider] = externalID
	return true
}

// Record is the normalized intermediate shape every provider adapter emits.
// At minimum it carries an optional provider-specific ID and an optional
// display name; either alone is enough for resolution to attempt a match.
type Record struct {
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	TeamCode    string `json:"team_code,omitempty"`

	// CrossIDs holds IDs for other providers that this payload happened to
	// carry (e.g. an odds payload embedding the stats provider's player ID).
	CrossIDs map[string]string `json:"cross_ids,omitempty"`
}
