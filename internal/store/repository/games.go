package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// GameRepository handles game data access.
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `identity_id, home_team, away_team, tipoff, status, season_year,
	home_score, away_score, venue, created_at, updated_at`

// GetByID finds a game by its canonical identity ID.
func (r *GameRepository) GetByID(ctx context.Context, identityID string) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE identity_id = $1`

	game := &store.Game{}
	err := r.db.DB().QueryRowContext(ctx, query, identityID).Scan(
		&game.IdentityID, &game.HomeTeam, &game.AwayTeam, &game.Tipoff, &game.Status,
		&game.SeasonYear, &game.HomeScore, &game.AwayScore, &game.Venue,
		&game.CreatedAt, &game.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}

	return game, nil
}

// GetByDate returns all games whose tipoff falls on the given calendar day.
func (r *GameRepository) GetByDate(ctx context.Context, date time.Time) ([]*store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE tipoff >= $1 AND tipoff < $2
		ORDER BY tipoff
	`

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	rows, err := r.db.DB().QueryContext(ctx, query, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("querying games by date: %w", err)
	}
	defer rows.Close()

	return r.scanGames(rows)
}

// GetByStatus returns all games with the given status.
func (r *GameRepository) GetByStatus(ctx context.Context, status string) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE status = $1 ORDER BY tipoff`

	rows, err := r.db.DB().QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("querying games by status: %w", err)
	}
	defer rows.Close()

	return r.scanGames(rows)
}

// statusRankCase builds a SQL CASE ranking the given status column in the
// monotonic transition order, mirroring store.StatusRank.
func statusRankCase(col string) string {
	return fmt.Sprintf("CASE %s WHEN '%s' THEN %d WHEN '%s' THEN %d WHEN '%s' THEN %d ELSE -1 END",
		col,
		store.StatusScheduled, store.StatusRank(store.StatusScheduled),
		store.StatusInProgress, store.StatusRank(store.StatusInProgress),
		store.StatusFinal, store.StatusRank(store.StatusFinal),
	)
}

// advancesGuard is true when the incoming row's status is at or past the
// stored one. Evaluated inside the upsert so the monotonic check cannot be
// defeated by two writers interleaving a read and a write.
var advancesGuard = statusRankCase("EXCLUDED.status") + " >= " + statusRankCase("games.status")

// Upsert inserts or updates a game. The status and scores only move forward:
// the statement itself keeps the stored values when the incoming row would
// regress the status, so concurrent upserts cannot walk a final game back.
// A regression observed up front is logged as a data-quality warning.
func (r *GameRepository) Upsert(ctx context.Context, game *store.Game) error {
	existing, err := r.GetByID(ctx, game.IdentityID)
	if err != nil {
		return err
	}
	if existing != nil && !store.ValidTransition(existing.Status, game.Status) {
		log.Printf("[games] data-quality warning: %v (%s -> %s) for game %s",
			store.ErrInvalidStateTransition, existing.Status, game.Status, game.IdentityID)
		game.Status = existing.Status
		game.HomeScore = existing.HomeScore
		game.AwayScore = existing.AwayScore
	}

	query := `
		INSERT INTO games (identity_id, home_team, away_team, tipoff, status, season_year,
			home_score, away_score, venue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identity_id) DO UPDATE SET
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			tipoff = EXCLUDED.tipoff,
			status = CASE WHEN ` + advancesGuard + ` THEN EXCLUDED.status ELSE games.status END,
			season_year = EXCLUDED.season_year,
			home_score = CASE WHEN ` + advancesGuard + ` THEN EXCLUDED.home_score ELSE games.home_score END,
			away_score = CASE WHEN ` + advancesGuard + ` THEN EXCLUDED.away_score ELSE games.away_score END,
			venue = EXCLUDED.venue,
			updated_at = NOW()
	`

	_, err = r.db.DB().ExecContext(ctx, query,
		game.IdentityID, game.HomeTeam, game.AwayTeam, game.Tipoff, game.Status,
		game.SeasonYear, game.HomeScore, game.AwayScore, game.Venue,
	)
	if err != nil {
		return fmt.Errorf("upserting game: %w", err)
	}

	return nil
}

// GetUnresolvedFinalGames returns final games that still carry unresolved
// predictions, for the resolution sweep.
func (r *GameRepository) GetUnresolvedFinalGames(ctx context.Context) ([]*store.Game, error) {
	query := `
		SELECT DISTINCT g.identity_id, g.home_team, g.away_team, g.tipoff, g.status,
			g.season_year, g.home_score, g.away_score, g.venue, g.created_at, g.updated_at
		FROM games g
		INNER JOIN predictions p ON p.game_identity_id = g.identity_id
		WHERE g.status = 'final' AND p.outcome = 'unresolved'
		ORDER BY g.tipoff
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved final games: %w", err)
	}
	defer rows.Close()

	return r.scanGames(rows)
}

// scanGames is a helper to scan multiple game rows.
func (r *GameRepository) scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game := &store.Game{}
		err := rows.Scan(
			&game.IdentityID, &game.HomeTeam, &game.AwayTeam, &game.Tipoff, &game.Status,
			&game.SeasonYear, &game.HomeScore, &game.AwayScore, &game.Venue,
			&game.CreatedAt, &game.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}
