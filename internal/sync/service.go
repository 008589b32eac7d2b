// Package sync runs the ingestion jobs: pull provider payloads, resolve
// records to canonical identities, and persist the normalized result.
// Jobs absorb quota and upstream failures themselves; a degraded provider
// yields stale or empty data, never an error to the caller.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/cache"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/predictions"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/quota"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// GameStore is the slice of the game repository sync jobs need.
type GameStore interface {
	GetByID(ctx context.Context, identityID string) (*store.Game, error)
	Upsert(ctx context.Context, game *store.Game) error
	GetUnresolvedFinalGames(ctx context.Context) ([]*store.Game, error)
}

// PredictionStore is the slice of the prediction repository sync jobs need.
type PredictionStore interface {
	Upsert(ctx context.Context, p *store.Prediction) error
}

// IdentityReader looks up identities persisted by the matcher.
type IdentityReader interface {
	GetByID(ctx context.Context, identityID string) (*identity.Identity, error)
	FindByProviderID(ctx context.Context, provider, externalID string) (*identity.Identity, error)
}

// Scorer turns a bookmaker prop line into a directional call. The model
// behind it is opaque to the sync layer.
type Scorer interface {
	Score(line providers.PropLine) (predicted float64, call string, confidence float64, ok bool)
}

// GameEventPublisher announces a game's transition to final so downstream
// consumers can react before the settlement sweep catches up.
type GameEventPublisher interface {
	PublishGameFinal(ctx context.Context, g *store.Game) error
}

// Service wires the provider adapters through the matcher into the store.
type Service struct {
	players       providers.PlayerSource
	schedule      providers.ScheduleSource
	statsSchedule providers.ScheduleSource
	odds          providers.OddsSource
	stats         providers.StatsSource

	matcher     *identity.Matcher
	identities  IdentityReader
	games       GameStore
	predictions PredictionStore
	resolver    *predictions.Resolver
	scorer      Scorer
	gameEvents  GameEventPublisher

	memCache  *cache.Memory
	snapshots *cache.Redis

	seasonYear string
}

// Config carries the service dependencies. Snapshots and GameEvents may be
// nil when Redis is not configured.
type Config struct {
	Players providers.PlayerSource
	// Schedule is the scoreboard source game rows come from.
	Schedule providers.ScheduleSource
	// StatsSchedule is the stats provider's game list. The settlement sweep
	// resolves it on demand to backfill stats-provider event IDs onto game
	// identities the scoreboard and odds adapters created.
	StatsSchedule providers.ScheduleSource
	Odds          providers.OddsSource
	Stats         providers.StatsSource

	Matcher     *identity.Matcher
	Identities  IdentityReader
	Games       GameStore
	Predictions PredictionStore
	Resolver    *predictions.Resolver
	Scorer      Scorer
	GameEvents  GameEventPublisher

	MemCache  *cache.Memory
	Snapshots *cache.Redis

	SeasonYear string
}

// NewService creates the sync service.
func NewService(cfg Config) *Service {
	return &Service{
		players:       cfg.Players,
		schedule:      cfg.Schedule,
		statsSchedule: cfg.StatsSchedule,
		odds:          cfg.Odds,
		stats:         cfg.Stats,
		matcher:       cfg.Matcher,
		identities:    cfg.Identities,
		games:         cfg.Games,
		predictions:   cfg.Predictions,
		resolver:      cfg.Resolver,
		scorer:        cfg.Scorer,
		gameEvents:    cfg.GameEvents,
		memCache:      cfg.MemCache,
		snapshots:     cfg.Snapshots,
		seasonYear:    cfg.SeasonYear,
	}
}

// RosterResult summarizes one roster sync.
type RosterResult struct {
	Fetched  int    `json:"fetched"`
	Resolved int    `json:"resolved"`
	Skipped  int    `json:"skipped"`
	Degraded bool   `json:"degraded"`
	Source   string `json:"source"`
}

// SyncRosters pulls the stats provider's active players and resolves each
// one to a canonical player identity.
func (s *Service) SyncRosters(ctx context.Context) (*RosterResult, error) {
	result := &RosterResult{Source: "live"}

	records, err := s.players.FetchPlayers(ctx)
	if err != nil {
		if !recoverable(err) {
			return nil, fmt.Errorf("fetching players: %w", err)
		}
		records = s.staleRosters(ctx, err)
		result.Degraded = true
		result.Source = "stale"
		if records == nil {
			result.Source = "empty"
			return result, nil
		}
	}

	result.Fetched = len(records)
	for _, rec := range records {
		if _, err := s.matcher.Resolve(ctx, identity.KindPlayer, rec); err != nil {
			if errors.Is(err, identity.ErrUnresolvableRecord) {
				log.Printf("[sync] skipping unresolvable player record %s/%s: %v", rec.Provider, rec.ExternalID, err)
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("resolving player %s/%s: %w", rec.Provider, rec.ExternalID, err)
		}
		result.Resolved++
	}

	if !result.Degraded {
		s.snapshot(ctx, "rosters", records)
	}
	return result, nil
}

// ScheduleResult summarizes one schedule sync.
type ScheduleResult struct {
	Fetched  int  `json:"fetched"`
	Upserted int  `json:"upserted"`
	Skipped  int  `json:"skipped"`
	Degraded bool `json:"degraded"`
}

// SyncSchedule pulls the scoreboard for a date and upserts game rows.
// Status regressions are rejected inside the game repository, so a stale
// scoreboard page cannot walk a final game back to in-progress.
func (s *Service) SyncSchedule(ctx context.Context, date time.Time) (*ScheduleResult, error) {
	result := &ScheduleResult{}

	games, err := s.schedule.FetchSchedule(ctx, date)
	if err != nil {
		if !recoverable(err) {
			return nil, fmt.Errorf("fetching schedule: %w", err)
		}
		log.Printf("[sync] schedule fetch degraded: %v", err)
		result.Degraded = true
		return result, nil
	}
	result.Fetched = len(games)

	for _, rec := range games {
		if err := s.upsertGame(ctx, rec); err != nil {
			if errors.Is(err, identity.ErrUnresolvableRecord) {
				log.Printf("[sync] skipping unresolvable game record %s/%s: %v", rec.Provider, rec.ExternalID, err)
				result.Skipped++
				continue
			}
			return result, err
		}
		result.Upserted++
	}
	return result, nil
}

// OddsResult summarizes one odds sync.
type OddsResult struct {
	Events      int  `json:"events"`
	Predictions int  `json:"predictions"`
	Skipped     int  `json:"skipped"`
	Degraded    bool `json:"degraded"`
}

// SyncOdds pulls the odds provider's event list, then each event's player
// prop lines, and upserts one prediction per (player, game, stat) tuple.
// The prediction repository merges re-observed lines into the existing
// unresolved row, so line moves overwrite rather than duplicate.
func (s *Service) SyncOdds(ctx context.Context) (*OddsResult, error) {
	result := &OddsResult{}

	events, err := s.odds.FetchEvents(ctx)
	if err != nil {
		if !recoverable(err) {
			return nil, fmt.Errorf("fetching odds events: %w", err)
		}
		log.Printf("[sync] odds event fetch degraded: %v", err)
		result.Degraded = true
		return result, nil
	}
	result.Events = len(events)

	for _, event := range events {
		gameIdent, err := s.resolveGame(ctx, event)
		if err != nil {
			if errors.Is(err, identity.ErrUnresolvableRecord) {
				log.Printf("[sync] skipping unresolvable odds event %s: %v", event.ExternalID, err)
				result.Skipped++
				continue
			}
			return result, err
		}

		payload, err := s.odds.FetchOdds(ctx, event.ExternalID)
		if err != nil {
			if recoverable(err) {
				// One starved event should not stop the rest of the slate.
				log.Printf("[sync] odds fetch degraded for event %s: %v", event.ExternalID, err)
				result.Degraded = true
				continue
			}
			return result, fmt.Errorf("fetching odds for event %s: %w", event.ExternalID, err)
		}

		n, skipped, err := s.ingestPropLines(ctx, gameIdent.ID, payload)
		result.Predictions += n
		result.Skipped += skipped
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) ingestPropLines(ctx context.Context, gameIdentityID string, payload *providers.RawOddsPayload) (int, int, error) {
	var upserted, skipped int
	for _, line := range payload.Lines {
		rec := identity.Record{
			Provider:    identity.ProviderOdds,
			ExternalID:  line.PlayerID,
			DisplayName: line.PlayerName,
			TeamCode:    line.TeamCode,
		}
		playerIdent, err := s.matcher.Resolve(ctx, identity.KindPlayer, rec)
		if err != nil {
			if errors.Is(err, identity.ErrUnresolvableRecord) {
				log.Printf("[sync] skipping prop line for unresolvable player %q: %v", line.PlayerName, err)
				skipped++
				continue
			}
			return upserted, skipped, fmt.Errorf("resolving prop player %q: %w", line.PlayerName, err)
		}

		predicted, call, confidence, ok := s.scorer.Score(line)
		if !ok {
			skipped++
			continue
		}

		p := &store.Prediction{
			PlayerIdentityID: playerIdent.ID,
			GameIdentityID:   gameIdentityID,
			StatType:         line.StatType,
			PredictedValue:   predicted,
			Line:             line.Line,
			Bookmaker:        payload.Bookmaker,
			Confidence:       confidence,
			Call:             call,
			Outcome:          store.OutcomeUnresolved,
		}
		if err := s.predictions.Upsert(ctx, p); err != nil {
			return upserted, skipped, fmt.Errorf("upserting prediction for %s/%s: %w", playerIdent.ID, line.StatType, err)
		}
		upserted++
	}
	return upserted, skipped, nil
}

// ResolutionResult summarizes one settlement sweep.
type ResolutionResult struct {
	GamesChecked int                      `json:"games_checked"`
	Settled      []predictions.Resolution `json:"settled"`
	Skipped      int                      `json:"skipped"`
}

// ResolveFinishedGames settles predictions for every final game that still
// has unresolved predictions. Games whose stats mapping or box score is
// unavailable are skipped and retried on the next sweep.
func (s *Service) ResolveFinishedGames(ctx context.Context) (*ResolutionResult, error) {
	games, err := s.games.GetUnresolvedFinalGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading final games: %w", err)
	}

	result := &ResolutionResult{GamesChecked: len(games)}
	for _, game := range games {
		settled, err := s.ResolveGame(ctx, game)
		if err != nil {
			if recoverable(err) {
				log.Printf("[sync] stats fetch degraded for game %s, deferring settlement: %v", game.IdentityID, err)
				result.Skipped++
				continue
			}
			return result, err
		}
		if settled == nil {
			result.Skipped++
			continue
		}
		result.Settled = append(result.Settled, settled...)
	}
	return result, nil
}

// ResolveGame settles one game's unresolved predictions. A game identity
// created from the odds or scoreboard feed has no stats-provider event ID at
// first; ResolveGame backfills it from the stats provider's game list for
// the tipoff date. It returns nil settlements (without error) when the
// mapping still cannot be established; settlement retries on a later sweep.
func (s *Service) ResolveGame(ctx context.Context, game *store.Game) ([]predictions.Resolution, error) {
	gameIdentityID := game.IdentityID

	ident, err := s.identities.GetByID(ctx, gameIdentityID)
	if err != nil {
		return nil, fmt.Errorf("loading game identity %s: %w", gameIdentityID, err)
	}
	if ident == nil {
		return nil, fmt.Errorf("game identity %s not found", gameIdentityID)
	}

	statsEventID, ok := ident.ProviderIDs[identity.ProviderStats]
	if !ok {
		ident, err = s.backfillStatsMapping(ctx, game)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			statsEventID, ok = ident.ProviderIDs[identity.ProviderStats]
		}
		if !ok {
			log.Printf("[sync] game %s has no stats-provider mapping, deferring settlement", gameIdentityID)
			return nil, nil
		}
	}

	byExternal, err := s.stats.FetchGameStats(ctx, statsEventID)
	if err != nil {
		return nil, err
	}

	// Re-key the box score from stats-provider player IDs to identity IDs.
	actuals := make(map[string]map[string]float64, len(byExternal))
	for externalID, statLine := range byExternal {
		playerIdent, err := s.identities.FindByProviderID(ctx, identity.ProviderStats, externalID)
		if err != nil {
			return nil, fmt.Errorf("looking up player %s: %w", externalID, err)
		}
		if playerIdent == nil {
			log.Printf("[sync] box score references unknown player %s, skipping their lines", externalID)
			continue
		}
		actuals[playerIdent.ID] = statLine
	}

	return s.resolver.ResolvePendingForGame(ctx, gameIdentityID, actuals)
}

// backfillStatsMapping resolves the stats provider's game list for the
// game's tipoff date through the matcher. The shared matchup naming lets the
// name strategy land each stats-provider game on the identity the scoreboard
// or odds feed already created, attaching the stats event ID to it. Returns
// the refreshed identity, or nil when the mapping could not be established.
func (s *Service) backfillStatsMapping(ctx context.Context, game *store.Game) (*identity.Identity, error) {
	if s.statsSchedule == nil {
		return nil, nil
	}

	records, err := s.statsSchedule.FetchSchedule(ctx, game.Tipoff)
	if err != nil {
		if recoverable(err) {
			log.Printf("[sync] stats game list degraded, deferring backfill for %s: %v", game.IdentityID, err)
			return nil, nil
		}
		return nil, err
	}

	for _, rec := range records {
		if _, err := s.resolveGame(ctx, rec); err != nil {
			if errors.Is(err, identity.ErrUnresolvableRecord) {
				log.Printf("[sync] skipping unresolvable stats game record %s/%s: %v", rec.Provider, rec.ExternalID, err)
				continue
			}
			return nil, err
		}
	}

	ident, err := s.identities.GetByID(ctx, game.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("reloading game identity %s: %w", game.IdentityID, err)
	}
	return ident, nil
}

func (s *Service) upsertGame(ctx context.Context, rec providers.GameRecord) error {
	ident, err := s.resolveGame(ctx, rec)
	if err != nil {
		return err
	}

	game := &store.Game{
		IdentityID: ident.ID,
		HomeTeam:   rec.HomeTeam,
		AwayTeam:   rec.AwayTeam,
		Tipoff:     rec.Tipoff,
		Status:     rec.Status,
		SeasonYear: s.seasonYear,
	}
	if rec.SeasonYear != "" {
		game.SeasonYear = rec.SeasonYear
	}
	if rec.HomeScore != nil {
		game.HomeScore.Valid = true
		game.HomeScore.Int32 = int32(*rec.HomeScore)
	}
	if rec.AwayScore != nil {
		game.AwayScore.Valid = true
		game.AwayScore.Int32 = int32(*rec.AwayScore)
	}

	prior, err := s.games.GetByID(ctx, ident.ID)
	if err != nil {
		return fmt.Errorf("loading game %s: %w", ident.ID, err)
	}

	if err := s.games.Upsert(ctx, game); err != nil {
		return fmt.Errorf("upserting game %s: %w", ident.ID, err)
	}

	// Announce the transition to final exactly once. A publish failure is
	// logged, not fatal: the settlement sweep does not depend on the stream.
	if s.gameEvents != nil && game.Status == store.StatusFinal &&
		(prior == nil || prior.Status != store.StatusFinal) {
		if err := s.gameEvents.PublishGameFinal(ctx, game); err != nil {
			log.Printf("[sync] game-final publish failed for %s: %v", ident.ID, err)
		}
	}
	return nil
}

func (s *Service) resolveGame(ctx context.Context, rec providers.GameRecord) (*identity.Identity, error) {
	r := rec.Record
	if r.DisplayName == "" && rec.AwayTeam != "" && rec.HomeTeam != "" {
		r.DisplayName = providers.MatchupName(rec.AwayTeam, rec.HomeTeam)
	}
	if r.TeamCode == "" {
		r.TeamCode = rec.HomeTeam
	}
	return s.matcher.Resolve(ctx, identity.KindGame, r)
}

// staleRosters serves the last known roster payload after a degraded fetch:
// the expired in-memory entry first, then the Redis snapshot.
func (s *Service) staleRosters(ctx context.Context, cause error) []identity.Record {
	log.Printf("[sync] roster fetch degraded, serving stale data: %v", cause)

	key := cache.Key(identity.ProviderStats, "players")
	if v, ok := s.memCache.GetStale(key); ok {
		if records, ok := v.([]identity.Record); ok {
			return records
		}
	}

	if s.snapshots != nil {
		var records []identity.Record
		found, err := s.snapshots.GetSnapshot(ctx, "rosters", &records)
		if err != nil {
			log.Printf("[sync] roster snapshot read failed: %v", err)
			return nil
		}
		if found {
			return records
		}
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context, key string, v interface{}) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SetSnapshot(ctx, key, v, 7*24*time.Hour); err != nil {
		log.Printf("[sync] snapshot write failed for %s: %v", key, err)
	}
}

// recoverable reports whether an error is a quota or upstream failure the
// sync job absorbs instead of propagating.
func recoverable(err error) bool {
	return errors.Is(err, quota.ErrQuotaExceeded) || errors.Is(err, quota.ErrUpstreamUnavailable)
}
