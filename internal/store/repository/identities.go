package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// IdentityRepository handles canonical identity data access. It implements
// identity.Store.
type IdentityRepository struct {
	db *store.Database
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(db *store.Database) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindByProviderID returns the identity claiming (provider, externalID), or
// nil when none does.
func (r *IdentityRepository) FindByProviderID(ctx context.Context, provider, externalID string) (*identity.Identity, error) {
	query := `
		SELECT i.identity_id, i.kind, i.display_name, i.normalized_name, i.team_code,
			i.last_seen, i.created_at
		FROM identities i
		INNER JOIN identity_providers ip ON ip.identity_id = i.identity_id
		WHERE ip.provider = $1 AND ip.external_id = $2
	`

	id := &identity.Identity{}
	err := r.db.DB().QueryRowContext(ctx, query, provider, externalID).Scan(
		&id.ID, &id.Kind, &id.DisplayName, &id.NormalizedName, &id.TeamCode,
		&id.LastSeen, &id.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity by provider ID: %w", err)
	}

	if err := r.loadProviderIDs(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

// FindByNormalizedName returns identities of the given kind sharing a
// normalized name.
func (r *IdentityRepository) FindByNormalizedName(ctx context.Context, kind identity.Kind, normalizedName string) ([]*identity.Identity, error) {
	query := `
		SELECT identity_id, kind, display_name, normalized_name, team_code,
			last_seen, created_at
		FROM identities
		WHERE kind = $1 AND normalized_name = $2
		ORDER BY created_at
	`

	rows, err := r.db.DB().QueryContext(ctx, query, kind, normalizedName)
	if err != nil {
		return nil, fmt.Errorf("querying identities by name: %w", err)
	}
	defer rows.Close()

	var ids []*identity.Identity
	for rows.Next() {
		id := &identity.Identity{}
		err := rows.Scan(
			&id.ID, &id.Kind, &id.DisplayName, &id.NormalizedName, &id.TeamCode,
			&id.LastSeen, &id.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := r.loadProviderIDs(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// GetByID returns one identity by its internal ID.
func (r *IdentityRepository) GetByID(ctx context.Context, identityID string) (*identity.Identity, error) {
	query := `
		SELECT identity_id, kind, display_name, normalized_name, team_code,
			last_seen, created_at
		FROM identities
		WHERE identity_id = $1
	`

	id := &identity.Identity{}
	err := r.db.DB().QueryRowContext(ctx, query, identityID).Scan(
		&id.ID, &id.Kind, &id.DisplayName, &id.NormalizedName, &id.TeamCode,
		&id.LastSeen, &id.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}

	if err := r.loadProviderIDs(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

// Search returns identities whose display name matches the query
// (case-insensitive partial match).
func (r *IdentityRepository) Search(ctx context.Context, kind identity.Kind, name string) ([]*identity.Identity, error) {
	query := `
		SELECT identity_id, kind, display_name, normalized_name, team_code,
			last_seen, created_at
		FROM identities
		WHERE kind = $1 AND display_name ILIKE $2
		ORDER BY display_name
		LIMIT 50
	`

	rows, err := r.db.DB().QueryContext(ctx, query, kind, "%"+name+"%")
	if err != nil {
		return nil, fmt.Errorf("searching identities: %w", err)
	}
	defer rows.Close()

	var ids []*identity.Identity
	for rows.Next() {
		id := &identity.Identity{}
		err := rows.Scan(
			&id.ID, &id.Kind, &id.DisplayName, &id.NormalizedName, &id.TeamCode,
			&id.LastSeen, &id.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert persists the identity and its provider mappings atomically. The
// UNIQUE (provider, external_id) constraint is the serialization point for
// concurrent creation: if another writer already claimed one of this
// identity's mappings, the whole transaction rolls back and the existing
// owner is returned instead of creating a duplicate.
func (r *IdentityRepository) Upsert(ctx context.Context, id *identity.Identity) (*identity.Identity, error) {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO identities (identity_id, kind, display_name, normalized_name, team_code, last_seen)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			normalized_name = EXCLUDED.normalized_name,
			team_code = CASE WHEN identities.team_code = '' THEN EXCLUDED.team_code ELSE identities.team_code END,
			last_seen = NOW()
	`
	if _, err := tx.ExecContext(ctx, query,
		id.ID, id.Kind, id.DisplayName, id.NormalizedName, id.TeamCode,
	); err != nil {
		return nil, fmt.Errorf("upserting identity: %w", err)
	}

	for provider, externalID := range id.ProviderIDs {
		// The no-op DO UPDATE makes RETURNING yield the owning identity on
		// conflict, so a lost race is detected in the same statement.
		var owner string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO identity_providers (identity_id, provider, external_id)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (provider, external_id) DO UPDATE SET external_id = EXCLUDED.external_id
			 RETURNING identity_id`,
			id.ID, provider, externalID,
		).Scan(&owner)
		if err != nil {
			return nil, fmt.Errorf("inserting provider mapping: %w", err)
		}
		if owner != id.ID {
			// Another identity already claims this pair. Exact provider IDs
			// are authoritative: abandon our write and resolve to the owner.
			tx.Rollback()
			return r.GetByID(ctx, owner)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}

	return r.GetByID(ctx, id.ID)
}

// loadProviderIDs populates the identity's provider mapping.
func (r *IdentityRepository) loadProviderIDs(ctx context.Context, id *identity.Identity) error {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT provider, external_id FROM identity_providers WHERE identity_id = $1`, id.ID,
	)
	if err != nil {
		return fmt.Errorf("loading provider mappings: %w", err)
	}
	defer rows.Close()

	id.ProviderIDs = make(map[string]string)
	for rows.Next() {
		var provider, externalID string
		if err := rows.Scan(&provider, &externalID); err != nil {
			return fmt.Errorf("scanning provider mapping: %w", err)
		}
		id.ProviderIDs[provider] = externalID
	}
	return rows.Err()
}
