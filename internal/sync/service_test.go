package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/cache"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/predictions"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/quota"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// identityStore is an in-memory identity.Store plus IdentityReader.
type identityStore struct {
	byID       map[string]*identity.Identity
	byProvider map[string]string
}

func newIdentityStore() *identityStore {
	return &identityStore{
		byID:       make(map[string]*identity.Identity),
		byProvider: make(map[string]string),
	}
}

func provKey(provider, externalID string) string {
	return provider + "/" + externalID
}

func (s *identityStore) FindByProviderID(ctx context.Context, provider, externalID string) (*identity.Identity, error) {
	if id, ok := s.byProvider[provKey(provider, externalID)]; ok {
		return s.byID[id], nil
	}
	return nil, nil
}

func (s *identityStore) FindByNormalizedName(ctx context.Context, kind identity.Kind, normalizedName string) ([]*identity.Identity, error) {
	var out []*identity.Identity
	for _, id := range s.byID {
		if id.Kind == kind && id.NormalizedName == normalizedName {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *identityStore) GetByID(ctx context.Context, identityID string) (*identity.Identity, error) {
	return s.byID[identityID], nil
}

func (s *identityStore) Upsert(ctx context.Context, id *identity.Identity) (*identity.Identity, error) {
	for provider, externalID := range id.ProviderIDs {
		if owner, ok := s.byProvider[provKey(provider, externalID)]; ok && owner != id.ID {
			return s.byID[owner], nil
		}
	}
	s.byID[id.ID] = id
	for provider, externalID := range id.ProviderIDs {
		s.byProvider[provKey(provider, externalID)] = id.ID
	}
	return id, nil
}

type gameStore struct {
	games map[string]*store.Game
}

func newGameStore() *gameStore {
	return &gameStore{games: make(map[string]*store.Game)}
}

func (s *gameStore) GetByID(ctx context.Context, identityID string) (*store.Game, error) {
	return s.games[identityID], nil
}

func (s *gameStore) Upsert(ctx context.Context, game *store.Game) error {
	s.games[game.IdentityID] = game
	return nil
}

func (s *gameStore) GetUnresolvedFinalGames(ctx context.Context) ([]*store.Game, error) {
	var out []*store.Game
	for _, g := range s.games {
		if g.Status == store.StatusFinal {
			out = append(out, g)
		}
	}
	return out, nil
}

// predictionStore backs both the sync upsert path and the resolver.
type predictionStore struct {
	nextID int64
	rows   map[string]*store.Prediction
}

func newPredictionStore() *predictionStore {
	return &predictionStore{rows: make(map[string]*store.Prediction)}
}

func tupleKey(p *store.Prediction) string {
	return p.PlayerIdentityID + "/" + p.GameIdentityID + "/" + p.StatType
}

func (s *predictionStore) Upsert(ctx context.Context, p *store.Prediction) error {
	if existing, ok := s.rows[tupleKey(p)]; ok {
		if existing.Outcome == store.OutcomeUnresolved {
			existing.Line = p.Line
			existing.PredictedValue = p.PredictedValue
			existing.Call = p.Call
			existing.Bookmaker = p.Bookmaker
			existing.Confidence = p.Confidence
		}
		return nil
	}
	s.nextID++
	cp := *p
	cp.ID = s.nextID
	cp.Outcome = store.OutcomeUnresolved
	s.rows[tupleKey(p)] = &cp
	return nil
}

func (s *predictionStore) GetUnresolvedByGame(ctx context.Context, gameIdentityID string) ([]*store.Prediction, error) {
	var out []*store.Prediction
	for _, p := range s.rows {
		if p.GameIdentityID == gameIdentityID && p.Outcome == store.OutcomeUnresolved {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *predictionStore) GetResolvedInWindow(ctx context.Context, windowDays int) ([]*store.Prediction, error) {
	return nil, nil
}

func (s *predictionStore) MarkOutcome(ctx context.Context, predictionID int64, outcome string) (bool, error) {
	for _, p := range s.rows {
		if p.ID == predictionID && p.Outcome == store.OutcomeUnresolved {
			p.Outcome = outcome
			return true, nil
		}
	}
	return false, nil
}

type fakePlayers struct {
	records []identity.Record
	err     error
}

func (f *fakePlayers) Name() string { return identity.ProviderStats }

func (f *fakePlayers) FetchPlayers(ctx context.Context) ([]identity.Record, error) {
	return f.records, f.err
}

type fakeSchedule struct {
	provider string
	games    []providers.GameRecord
	err      error
}

func (f *fakeSchedule) Name() string {
	if f.provider != "" {
		return f.provider
	}
	return identity.ProviderScoreboard
}

func (f *fakeSchedule) FetchSchedule(ctx context.Context, date time.Time) ([]providers.GameRecord, error) {
	return f.games, f.err
}

type fakeGameEvents struct {
	published []string
}

func (f *fakeGameEvents) PublishGameFinal(ctx context.Context, g *store.Game) error {
	f.published = append(f.published, g.IdentityID)
	return nil
}

type fakeOdds struct {
	events   []providers.GameRecord
	payloads map[string]*providers.RawOddsPayload
	errs     map[string]error
}

func (f *fakeOdds) Name() string { return identity.ProviderOdds }

func (f *fakeOdds) FetchEvents(ctx context.Context) ([]providers.GameRecord, error) {
	return f.events, nil
}

func (f *fakeOdds) FetchOdds(ctx context.Context, eventID string) (*providers.RawOddsPayload, error) {
	if err, ok := f.errs[eventID]; ok {
		return nil, err
	}
	if p, ok := f.payloads[eventID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no payload for %s", eventID)
}

type fakeStats struct {
	byEvent map[string]map[string]map[string]float64
	err     error
}

func (f *fakeStats) Name() string { return identity.ProviderStats }

func (f *fakeStats) FetchGameStats(ctx context.Context, eventID string) (map[string]map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEvent[eventID], nil
}

func newTestService(ids *identityStore, games *gameStore, preds *predictionStore) (*Service, *cache.Memory) {
	memCache := cache.NewMemory()
	matcher := identity.NewMatcher(ids)
	resolver := predictions.NewResolver(preds, nil)
	svc := NewService(Config{
		Matcher:     matcher,
		Identities:  ids,
		Games:       games,
		Predictions: preds,
		Resolver:    resolver,
		Scorer:      MarketScorer{},
		MemCache:    memCache,
		SeasonYear:  "2026",
	})
	return svc, memCache
}

func TestSyncRostersResolvesAndSkips(t *testing.T) {
	ids := newIdentityStore()
	svc, _ := newTestService(ids, newGameStore(), newPredictionStore())
	svc.players = &fakePlayers{records: []identity.Record{
		{Provider: identity.ProviderStats, ExternalID: "1628369", DisplayName: "Jayson Tatum", TeamCode: "BOS"},
		{Provider: identity.ProviderStats, ExternalID: "1627759", DisplayName: "Jaylen Brown", TeamCode: "BOS"},
		{Provider: identity.ProviderStats}, // no ID, no name
	}}

	result, err := svc.SyncRosters(context.Background())
	if err != nil {
		t.Fatalf("SyncRosters: %v", err)
	}
	if result.Resolved != 2 {
		t.Errorf("expected 2 resolved, got %d", result.Resolved)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Skipped)
	}
	if len(ids.byID) != 2 {
		t.Errorf("expected 2 identities, got %d", len(ids.byID))
	}
}

func TestSyncRostersServesStaleOnQuotaExhaustion(t *testing.T) {
	ids := newIdentityStore()
	svc, memCache := newTestService(ids, newGameStore(), newPredictionStore())
	svc.players = &fakePlayers{err: quota.ErrQuotaExceeded}

	// An expired entry is still servable during an outage.
	key := cache.Key(identity.ProviderStats, "players")
	memCache.Set(key, []identity.Record{
		{Provider: identity.ProviderStats, ExternalID: "1628369", DisplayName: "Jayson Tatum", TeamCode: "BOS"},
	}, 0)

	result, err := svc.SyncRosters(context.Background())
	if err != nil {
		t.Fatalf("SyncRosters: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if result.Source != "stale" {
		t.Errorf("expected stale source, got %q", result.Source)
	}
	if result.Resolved != 1 {
		t.Errorf("expected 1 resolved from stale data, got %d", result.Resolved)
	}
}

func TestSyncRostersEmptyWhenNothingCached(t *testing.T) {
	svc, _ := newTestService(newIdentityStore(), newGameStore(), newPredictionStore())
	svc.players = &fakePlayers{err: quota.ErrUpstreamUnavailable}

	result, err := svc.SyncRosters(context.Background())
	if err != nil {
		t.Fatalf("degraded fetch must not error: %v", err)
	}
	if result.Source != "empty" {
		t.Errorf("expected empty source, got %q", result.Source)
	}
	if result.Resolved != 0 {
		t.Errorf("expected nothing resolved, got %d", result.Resolved)
	}
}

func TestSyncScheduleUpsertsGames(t *testing.T) {
	games := newGameStore()
	svc, _ := newTestService(newIdentityStore(), games, newPredictionStore())
	hs, as := 104, 112
	svc.schedule = &fakeSchedule{games: []providers.GameRecord{
		{
			Record:    identity.Record{Provider: identity.ProviderScoreboard, ExternalID: "sb-1"},
			HomeTeam:  "NYK", AwayTeam: "BOS",
			Tipoff:    time.Now(),
			Status:    store.StatusFinal,
			HomeScore: &hs, AwayScore: &as,
		},
		{
			Record:   identity.Record{Provider: identity.ProviderScoreboard, ExternalID: "sb-2"},
			HomeTeam: "DEN", AwayTeam: "LAL",
			Tipoff:   time.Now(),
			Status:   store.StatusScheduled,
		},
	}}

	result, err := svc.SyncSchedule(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SyncSchedule: %v", err)
	}
	if result.Upserted != 2 {
		t.Fatalf("expected 2 upserted, got %d", result.Upserted)
	}

	var finals int
	for _, g := range games.games {
		if g.Status == store.StatusFinal {
			finals++
			if !g.HomeScore.Valid || g.HomeScore.Int32 != 104 {
				t.Errorf("expected home score 104, got %+v", g.HomeScore)
			}
		}
	}
	if finals != 1 {
		t.Errorf("expected 1 final game, got %d", finals)
	}
}

func TestSyncOddsCreatesAndMergesPredictions(t *testing.T) {
	preds := newPredictionStore()
	svc, _ := newTestService(newIdentityStore(), newGameStore(), preds)
	payload := &providers.RawOddsPayload{
		EventID:   "ev-1",
		Bookmaker: "draftkings",
		Lines: []providers.PropLine{
			{PlayerName: "Jayson Tatum", PlayerID: "odds-1", TeamCode: "BOS", StatType: store.StatPoints, Line: 25.5, OverPrice: -130, UnderPrice: 110},
			{PlayerName: "Jaylen Brown", PlayerID: "odds-2", TeamCode: "BOS", StatType: store.StatRebounds, Line: 6.5, OverPrice: 100, UnderPrice: -120},
		},
	}
	svc.odds = &fakeOdds{
		events: []providers.GameRecord{
			{Record: identity.Record{Provider: identity.ProviderOdds, ExternalID: "ev-1"}, HomeTeam: "NYK", AwayTeam: "BOS"},
		},
		payloads: map[string]*providers.RawOddsPayload{"ev-1": payload},
	}

	result, err := svc.SyncOdds(context.Background())
	if err != nil {
		t.Fatalf("SyncOdds: %v", err)
	}
	if result.Predictions != 2 {
		t.Fatalf("expected 2 predictions, got %d", result.Predictions)
	}
	if len(preds.rows) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(preds.rows))
	}

	// A moved line overwrites the unresolved row instead of duplicating it.
	payload.Lines[0].Line = 26.5
	if _, err := svc.SyncOdds(context.Background()); err != nil {
		t.Fatalf("second SyncOdds: %v", err)
	}
	if len(preds.rows) != 2 {
		t.Fatalf("line move duplicated a prediction: %d rows", len(preds.rows))
	}
	for _, p := range preds.rows {
		if p.StatType == store.StatPoints && p.Line != 26.5 {
			t.Errorf("expected merged line 26.5, got %v", p.Line)
		}
	}
}

func TestSyncOddsSkipsDegradedEvent(t *testing.T) {
	svc, _ := newTestService(newIdentityStore(), newGameStore(), newPredictionStore())
	svc.odds = &fakeOdds{
		events: []providers.GameRecord{
			{Record: identity.Record{Provider: identity.ProviderOdds, ExternalID: "ev-dead"}, HomeTeam: "NYK", AwayTeam: "BOS"},
		},
		errs: map[string]error{"ev-dead": quota.ErrUpstreamUnavailable},
	}

	result, err := svc.SyncOdds(context.Background())
	if err != nil {
		t.Fatalf("degraded event must not error the sweep: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if result.Predictions != 0 {
		t.Errorf("expected no predictions, got %d", result.Predictions)
	}
}

func TestResolveFinishedGamesSettlesPredictions(t *testing.T) {
	ids := newIdentityStore()
	games := newGameStore()
	preds := newPredictionStore()
	svc, _ := newTestService(ids, games, preds)

	// Player known to both providers, game carrying a stats mapping.
	player := identity.New(identity.KindPlayer, "Jayson Tatum", "BOS")
	player.ProviderIDs[identity.ProviderStats] = "1628369"
	if _, err := ids.Upsert(context.Background(), player); err != nil {
		t.Fatal(err)
	}
	game := identity.New(identity.KindGame, "BOS @ NYK", "NYK")
	game.ProviderIDs[identity.ProviderStats] = "stats-game-9"
	if _, err := ids.Upsert(context.Background(), game); err != nil {
		t.Fatal(err)
	}

	games.games[game.ID] = &store.Game{IdentityID: game.ID, Status: store.StatusFinal}
	if err := preds.Upsert(context.Background(), &store.Prediction{
		PlayerIdentityID: player.ID,
		GameIdentityID:   game.ID,
		StatType:         store.StatPoints,
		Line:             25.5,
		Call:             store.CallOver,
	}); err != nil {
		t.Fatal(err)
	}

	svc.stats = &fakeStats{byEvent: map[string]map[string]map[string]float64{
		"stats-game-9": {"1628369": {store.StatPoints: 30}},
	}}

	result, err := svc.ResolveFinishedGames(context.Background())
	if err != nil {
		t.Fatalf("ResolveFinishedGames: %v", err)
	}
	if len(result.Settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(result.Settled))
	}
	if result.Settled[0].Outcome != store.OutcomeCorrect {
		t.Errorf("over 25.5 with 30 actual should be correct, got %q", result.Settled[0].Outcome)
	}

	// Second sweep finds nothing left to settle.
	again, err := svc.ResolveFinishedGames(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(again.Settled) != 0 {
		t.Errorf("second sweep should settle nothing, got %d", len(again.Settled))
	}
}

func TestResolveFinishedGamesDefersWithoutStatsMapping(t *testing.T) {
	ids := newIdentityStore()
	games := newGameStore()
	svc, _ := newTestService(ids, games, newPredictionStore())

	game := identity.New(identity.KindGame, "BOS @ NYK", "NYK")
	if _, err := ids.Upsert(context.Background(), game); err != nil {
		t.Fatal(err)
	}
	games.games[game.ID] = &store.Game{IdentityID: game.ID, Status: store.StatusFinal}
	svc.stats = &fakeStats{}

	result, err := svc.ResolveFinishedGames(context.Background())
	if err != nil {
		t.Fatalf("ResolveFinishedGames: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("expected game deferred, got skipped=%d", result.Skipped)
	}
}

func TestOddsAndScoreboardShareGameIdentity(t *testing.T) {
	ids := newIdentityStore()
	games := newGameStore()
	preds := newPredictionStore()
	svc, _ := newTestService(ids, games, preds)

	// The scoreboard sees the matchup first and creates the game row.
	svc.schedule = &fakeSchedule{games: []providers.GameRecord{
		{
			Record: identity.Record{
				Provider:    identity.ProviderScoreboard,
				ExternalID:  "sb-1",
				DisplayName: providers.MatchupName("Boston Celtics", "New York Knicks"),
			},
			HomeTeam: "NYK", AwayTeam: "BOS",
			Tipoff: time.Now(),
			Status: store.StatusScheduled,
		},
	}}
	if _, err := svc.SyncSchedule(context.Background(), time.Now()); err != nil {
		t.Fatalf("SyncSchedule: %v", err)
	}

	// The odds provider names the same matchup with its own event ID.
	svc.odds = &fakeOdds{
		events: []providers.GameRecord{
			{
				Record: identity.Record{
					Provider:    identity.ProviderOdds,
					ExternalID:  "ev-1",
					DisplayName: providers.MatchupName("Boston Celtics", "New York Knicks"),
				},
				HomeTeam: "New York Knicks", AwayTeam: "Boston Celtics",
			},
		},
		payloads: map[string]*providers.RawOddsPayload{"ev-1": {
			EventID:   "ev-1",
			Bookmaker: "draftkings",
			Lines: []providers.PropLine{
				{PlayerName: "Jayson Tatum", PlayerID: "odds-1", TeamCode: "BOS", StatType: store.StatPoints, Line: 25.5, OverPrice: -130, UnderPrice: 110},
			},
		}},
	}
	if _, err := svc.SyncOdds(context.Background()); err != nil {
		t.Fatalf("SyncOdds: %v", err)
	}

	var gameIdents []*identity.Identity
	for _, id := range ids.byID {
		if id.Kind == identity.KindGame {
			gameIdents = append(gameIdents, id)
		}
	}
	if len(gameIdents) != 1 {
		t.Fatalf("expected 1 game identity shared across providers, got %d", len(gameIdents))
	}
	ident := gameIdents[0]
	if ident.ProviderIDs[identity.ProviderScoreboard] != "sb-1" {
		t.Errorf("missing scoreboard mapping: %v", ident.ProviderIDs)
	}
	if ident.ProviderIDs[identity.ProviderOdds] != "ev-1" {
		t.Errorf("missing odds mapping: %v", ident.ProviderIDs)
	}

	// The prediction must key to the same identity the game row uses, or the
	// settlement join would never see it.
	if _, ok := games.games[ident.ID]; !ok {
		t.Fatalf("game row not keyed to shared identity %s", ident.ID)
	}
	for _, p := range preds.rows {
		if p.GameIdentityID != ident.ID {
			t.Errorf("prediction keyed to %s, want %s", p.GameIdentityID, ident.ID)
		}
	}
}

func TestSettlementBackfillsStatsMapping(t *testing.T) {
	ids := newIdentityStore()
	games := newGameStore()
	preds := newPredictionStore()
	svc, _ := newTestService(ids, games, preds)

	player := identity.New(identity.KindPlayer, "Jayson Tatum", "BOS")
	player.ProviderIDs[identity.ProviderStats] = "1628369"
	if _, err := ids.Upsert(context.Background(), player); err != nil {
		t.Fatal(err)
	}

	// Game identity created by the scoreboard: no stats-provider event ID.
	game := identity.New(identity.KindGame, providers.MatchupName("Boston Celtics", "New York Knicks"), "NYK")
	game.ProviderIDs[identity.ProviderScoreboard] = "sb-1"
	if _, err := ids.Upsert(context.Background(), game); err != nil {
		t.Fatal(err)
	}
	games.games[game.ID] = &store.Game{IdentityID: game.ID, Status: store.StatusFinal, Tipoff: time.Now()}
	if err := preds.Upsert(context.Background(), &store.Prediction{
		PlayerIdentityID: player.ID,
		GameIdentityID:   game.ID,
		StatType:         store.StatPoints,
		Line:             25.5,
		Call:             store.CallOver,
	}); err != nil {
		t.Fatal(err)
	}

	// The stats provider lists the same matchup under its own game ID.
	svc.statsSchedule = &fakeSchedule{provider: identity.ProviderStats, games: []providers.GameRecord{
		{
			Record: identity.Record{
				Provider:    identity.ProviderStats,
				ExternalID:  "stats-game-9",
				DisplayName: providers.MatchupName("Boston Celtics", "New York Knicks"),
			},
			HomeTeam: "NYK", AwayTeam: "BOS",
			Status: store.StatusFinal,
		},
	}}
	svc.stats = &fakeStats{byEvent: map[string]map[string]map[string]float64{
		"stats-game-9": {"1628369": {store.StatPoints: 30}},
	}}

	result, err := svc.ResolveFinishedGames(context.Background())
	if err != nil {
		t.Fatalf("ResolveFinishedGames: %v", err)
	}
	if len(result.Settled) != 1 {
		t.Fatalf("expected 1 settlement after backfill, got %d (skipped %d)", len(result.Settled), result.Skipped)
	}
	if got := ids.byID[game.ID].ProviderIDs[identity.ProviderStats]; got != "stats-game-9" {
		t.Errorf("stats mapping not backfilled, got %q", got)
	}
}

func TestSyncSchedulePublishesGameFinalOnce(t *testing.T) {
	games := newGameStore()
	events := &fakeGameEvents{}
	svc, _ := newTestService(newIdentityStore(), games, newPredictionStore())
	svc.gameEvents = events

	rec := providers.GameRecord{
		Record:   identity.Record{Provider: identity.ProviderScoreboard, ExternalID: "sb-1"},
		HomeTeam: "NYK", AwayTeam: "BOS",
		Tipoff: time.Now(),
		Status: store.StatusScheduled,
	}
	svc.schedule = &fakeSchedule{games: []providers.GameRecord{rec}}
	if _, err := svc.SyncSchedule(context.Background(), time.Now()); err != nil {
		t.Fatalf("SyncSchedule: %v", err)
	}
	if len(events.published) != 0 {
		t.Fatalf("scheduled game must not publish, got %d events", len(events.published))
	}

	hs, as := 104, 112
	rec.Status = store.StatusFinal
	rec.HomeScore, rec.AwayScore = &hs, &as
	svc.schedule = &fakeSchedule{games: []providers.GameRecord{rec}}
	if _, err := svc.SyncSchedule(context.Background(), time.Now()); err != nil {
		t.Fatalf("second SyncSchedule: %v", err)
	}
	if len(events.published) != 1 {
		t.Fatalf("expected 1 game-final event, got %d", len(events.published))
	}

	// Re-observing the final game must not publish again.
	if _, err := svc.SyncSchedule(context.Background(), time.Now()); err != nil {
		t.Fatalf("third SyncSchedule: %v", err)
	}
	if len(events.published) != 1 {
		t.Errorf("re-observed final game published again: %d events", len(events.published))
	}
}

func TestMarketScorer(t *testing.T) {
	tests := []struct {
		name string
		line providers.PropLine
		call string
		ok   bool
	}{
		{"juiced over", providers.PropLine{Line: 25.5, OverPrice: -130, UnderPrice: 110}, store.CallOver, true},
		{"juiced under", providers.PropLine{Line: 6.5, OverPrice: 100, UnderPrice: -120}, store.CallUnder, true},
		{"even pricing", providers.PropLine{Line: 5.5, OverPrice: -110, UnderPrice: -110}, "", false},
		{"missing price", providers.PropLine{Line: 5.5, OverPrice: -110}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, call, confidence, ok := MarketScorer{}.Score(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if call != tt.call {
				t.Errorf("call = %q, want %q", call, tt.call)
			}
			if confidence <= 0.5 || confidence > 1 {
				t.Errorf("confidence out of range: %v", confidence)
			}
		})
	}
}
