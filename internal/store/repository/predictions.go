package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// PredictionRepository handles prediction data access.
type PredictionRepository struct {
	db *store.Database
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db *store.Database) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `id, player_identity_id, game_identity_id, stat_type,
	predicted_value, line, bookmaker, confidence, call, outcome, created_at, resolved_at`

// Upsert inserts a prediction, or merges into the existing row when the
// (player, game, stat type) tuple is already taken. A fresher bookmaker line
// overwrites the stored one; an already-resolved prediction is never
// reopened or re-priced.
func (r *PredictionRepository) Upsert(ctx context.Context, p *store.Prediction) error {
	query := `
		INSERT INTO predictions (player_identity_id, game_identity_id, stat_type,
			predicted_value, line, bookmaker, confidence, call)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (player_identity_id, game_identity_id, stat_type) DO UPDATE SET
			predicted_value = EXCLUDED.predicted_value,
			line = EXCLUDED.line,
			bookmaker = EXCLUDED.bookmaker,
			confidence = EXCLUDED.confidence,
			call = EXCLUDED.call
		WHERE predictions.outcome = 'unresolved'
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		p.PlayerIdentityID, p.GameIdentityID, p.StatType,
		p.PredictedValue, p.Line, p.Bookmaker, p.Confidence, p.Call,
	).Scan(&p.ID)

	if err == sql.ErrNoRows {
		// Conflict with a resolved row: the WHERE clause suppressed the
		// update. The stored prediction stands.
		return nil
	}
	if err != nil {
		return fmt.Errorf("upserting prediction: %w", err)
	}

	return nil
}

// GetByGame returns all predictions for a game.
func (r *PredictionRepository) GetByGame(ctx context.Context, gameIdentityID string) ([]*store.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE game_identity_id = $1 ORDER BY created_at`

	rows, err := r.db.DB().QueryContext(ctx, query, gameIdentityID)
	if err != nil {
		return nil, fmt.Errorf("querying predictions by game: %w", err)
	}
	defer rows.Close()

	return r.scanPredictions(rows)
}

// GetByPlayer returns all predictions for a player.
func (r *PredictionRepository) GetByPlayer(ctx context.Context, playerIdentityID string) ([]*store.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE player_identity_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.DB().QueryContext(ctx, query, playerIdentityID)
	if err != nil {
		return nil, fmt.Errorf("querying predictions by player: %w", err)
	}
	defer rows.Close()

	return r.scanPredictions(rows)
}

// GetUnresolvedByGame returns the still-pending predictions for a game.
func (r *PredictionRepository) GetUnresolvedByGame(ctx context.Context, gameIdentityID string) ([]*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE game_identity_id = $1 AND outcome = 'unresolved'
		ORDER BY created_at
	`

	rows, err := r.db.DB().QueryContext(ctx, query, gameIdentityID)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved predictions: %w", err)
	}
	defer rows.Close()

	return r.scanPredictions(rows)
}

// GetUnresolvedBefore returns pending predictions created before the cutoff,
// for staleness reporting.
func (r *PredictionRepository) GetUnresolvedBefore(ctx context.Context, cutoff time.Time) ([]*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE outcome = 'unresolved' AND created_at < $1
		ORDER BY created_at
	`

	rows, err := r.db.DB().QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying stale predictions: %w", err)
	}
	defer rows.Close()

	return r.scanPredictions(rows)
}

// GetResolvedInWindow returns resolved predictions created within the last
// windowDays, for accuracy aggregation.
func (r *PredictionRepository) GetResolvedInWindow(ctx context.Context, windowDays int) ([]*store.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE outcome <> 'unresolved' AND created_at >= $1
		ORDER BY created_at
	`

	since := time.Now().AddDate(0, 0, -windowDays)
	rows, err := r.db.DB().QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("querying resolved predictions: %w", err)
	}
	defer rows.Close()

	return r.scanPredictions(rows)
}

// MarkOutcome writes a terminal outcome exactly once. A prediction that is
// already resolved is left untouched; re-resolution is a no-op, not an error.
func (r *PredictionRepository) MarkOutcome(ctx context.Context, predictionID int64, outcome string) (bool, error) {
	query := `
		UPDATE predictions
		SET outcome = $2, resolved_at = NOW()
		WHERE id = $1 AND outcome = 'unresolved'
	`

	res, err := r.db.DB().ExecContext(ctx, query, predictionID, outcome)
	if err != nil {
		return false, fmt.Errorf("marking prediction outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByGame bulk-deletes a game's predictions ahead of a full re-sync.
func (r *PredictionRepository) DeleteByGame(ctx context.Context, gameIdentityID string) (int64, error) {
	res, err := r.db.DB().ExecContext(ctx,
		`DELETE FROM predictions WHERE game_identity_id = $1`, gameIdentityID)
	if err != nil {
		return 0, fmt.Errorf("deleting predictions for game: %w", err)
	}
	return res.RowsAffected()
}

// scanPredictions is a helper to scan multiple prediction rows.
func (r *PredictionRepository) scanPredictions(rows *sql.Rows) ([]*store.Prediction, error) {
	var predictions []*store.Prediction
	for rows.Next() {
		p := &store.Prediction{}
		err := rows.Scan(
			&p.ID, &p.PlayerIdentityID, &p.GameIdentityID, &p.StatType,
			&p.PredictedValue, &p.Line, &p.Bookmaker, &p.Confidence, &p.Call,
			&p.Outcome, &p.CreatedAt, &p.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}
