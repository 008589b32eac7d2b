// Package providers defines the common intermediate shapes every upstream
// adapter normalizes into. Adapters are format translators: they own their
// provider's URLs, payload quirks, and cache TTL policy, and emit these
// types for the sync layer to resolve and persist.
package providers

import (
	"context"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
)

// MatchupName builds the display name for a game record. Every adapter
// must build game names through it: the normalized-name matching strategy
// can only merge the same game across providers when they all spell the
// matchup the same way.
func MatchupName(awayTeam, homeTeam string) string {
	return awayTeam + " at " + homeTeam
}

// GameRecord is a normalized schedule/scoreboard row. The embedded identity
// record carries the provider's event ID and a matchup display name.
type GameRecord struct {
	identity.Record

	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	Tipoff     time.Time `json:"tipoff"`
	Status     string    `json:"status"` // scheduled | in_progress | final
	SeasonYear string    `json:"season_year"`
	HomeScore  *int      `json:"home_score,omitempty"`
	AwayScore  *int      `json:"away_score,omitempty"`
}

// PropLine is one bookmaker player-prop offer inside an odds payload.
type PropLine struct {
	PlayerName string  `json:"player_name"`
	PlayerID   string  `json:"player_id,omitempty"` // odds provider's own ID, often absent
	TeamCode   string  `json:"team_code,omitempty"`
	StatType   string  `json:"stat_type"`
	Line       float64 `json:"line"`
	OverPrice  int     `json:"over_price"`
	UnderPrice int     `json:"under_price"`
}

// RawOddsPayload is the normalized odds snapshot for one event.
type RawOddsPayload struct {
	EventID   string     `json:"event_id"`
	Bookmaker string     `json:"bookmaker"`
	Lines     []PropLine `json:"lines"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// PlayerSource lists players known to a provider.
type PlayerSource interface {
	Name() string
	FetchPlayers(ctx context.Context) ([]identity.Record, error)
}

// ScheduleSource lists games for a date.
type ScheduleSource interface {
	Name() string
	FetchSchedule(ctx context.Context, date time.Time) ([]GameRecord, error)
}

// OddsSource lists the odds provider's events and fetches bookmaker prop
// lines per event.
type OddsSource interface {
	Name() string
	FetchEvents(ctx context.Context) ([]GameRecord, error)
	FetchOdds(ctx context.Context, eventID string) (*RawOddsPayload, error)
}

// StatsSource fetches final per-player statistic values for one event,
// keyed by the provider's player ID. The resolution sweep consumes these.
type StatsSource interface {
	Name() string
	FetchGameStats(ctx context.Context, eventID string) (map[string]map[string]float64, error)
}
