// Package statsapi adapts the stats provider. Its free tier allows roughly
// 500 requests a month, so everything it fetches is cached hard: rosters for
// a day, box scores until the game is long over.
package statsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/cache"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/quota"
)

const (
	// DefaultBaseURL is the stats provider's API root.
	DefaultBaseURL = "https://api.balldontlie.io/v1"

	// RosterTTL is how long a fetched roster stays fresh. Rosters move on
	// trade deadlines, not minutes.
	RosterTTL = 24 * time.Hour

	// GamesTTL covers a day's game list, which only changes as games tip off
	// and finish.
	GamesTTL = time.Hour

	// BoxScoreTTL covers a finished game's statistics.
	BoxScoreTTL = 6 * time.Hour
)

// Client handles stats provider API requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	guard      *quota.Guard
	cache      *cache.Memory
}

// NewClient creates a stats provider client. A ~500/month allowance works
// out to one call every ninety minutes or so; the guard paces calls well
// inside that and the cache absorbs the rest.
func NewClient(baseURL, apiKey string, memCache *cache.Memory) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		guard: quota.NewGuard("statsapi", 10*time.Second, 3),
		cache: memCache,
	}
}

// Name returns the provider name used in identity mappings.
func (c *Client) Name() string {
	return identity.ProviderStats
}

// Guard exposes the quota guard for status reporting.
func (c *Client) Guard() *quota.Guard {
	return c.guard
}

// playerPayload mirrors the provider's player list response.
type playerPayload struct {
	Data []struct {
		ID        int    `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Team      struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"team"`
	} `json:"data"`
	Meta struct {
		NextCursor int `json:"next_cursor"`
	} `json:"meta"`
}

// FetchPlayers returns the active player list as normalized records.
func (c *Client) FetchPlayers(ctx context.Context) ([]identity.Record, error) {
	key := cache.Key(c.Name(), "players")

	v, err := c.cache.GetOrFetch(key, RosterTTL, func() (interface{}, error) {
		return c.fetchAllPlayers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]identity.Record), nil
}

// fetchAllPlayers walks the provider's cursor pagination.
func (c *Client) fetchAllPlayers(ctx context.Context) ([]identity.Record, error) {
	var records []identity.Record
	cursor := 0

	for {
		url := fmt.Sprintf("%s/players/active?per_page=100", c.baseURL)
		if cursor > 0 {
			url = fmt.Sprintf("%s&cursor=%d", url, cursor)
		}

		var payload playerPayload
		if err := c.getJSON(ctx, url, &payload); err != nil {
			return nil, err
		}

		for _, p := range payload.Data {
			records = append(records, identity.Record{
				Provider:    c.Name(),
				ExternalID:  fmt.Sprintf("%d", p.ID),
				DisplayName: p.FirstName + " " + p.LastName,
				TeamCode:    p.Team.Abbreviation,
			})
		}

		if payload.Meta.NextCursor == 0 {
			break
		}
		cursor = payload.Meta.NextCursor
	}

	return records, nil
}

// gamesPayload mirrors the provider's game list response.
type gamesPayload struct {
	Data []struct {
		ID     int    `json:"id"`
		Date   string `json:"date"`
		Status string `json:"status"`
		Season int    `json:"season"`
		Home   struct {
			FullName     string `json:"full_name"`
			Abbreviation string `json:"abbreviation"`
		} `json:"home_team"`
		Visitor struct {
			FullName     string `json:"full_name"`
			Abbreviation string `json:"abbreviation"`
		} `json:"visitor_team"`
		HomeScore    int `json:"home_team_score"`
		VisitorScore int `json:"visitor_team_score"`
	} `json:"data"`
	Meta struct {
		NextCursor int `json:"next_cursor"`
	} `json:"meta"`
}

// FetchSchedule returns the provider's games for a date as normalized
// records. The record's display name uses the shared matchup convention so
// the matcher merges these games with the ones the odds and scoreboard
// adapters already created, backfilling the stats-provider event ID the
// settlement sweep needs.
func (c *Client) FetchSchedule(ctx context.Context, date time.Time) ([]providers.GameRecord, error) {
	day := date.Format("2006-01-02")
	key := cache.Key(c.Name(), "games", "date="+day)

	v, err := c.cache.GetOrFetch(key, GamesTTL, func() (interface{}, error) {
		url := fmt.Sprintf("%s/games?dates[]=%s&per_page=100", c.baseURL, day)

		var payload gamesPayload
		if err := c.getJSON(ctx, url, &payload); err != nil {
			return nil, err
		}

		records := make([]providers.GameRecord, 0, len(payload.Data))
		for _, g := range payload.Data {
			rec := providers.GameRecord{
				Record: identity.Record{
					Provider:    c.Name(),
					ExternalID:  fmt.Sprintf("%d", g.ID),
					DisplayName: providers.MatchupName(g.Visitor.FullName, g.Home.FullName),
					TeamCode:    g.Home.Abbreviation,
				},
				HomeTeam: g.Home.Abbreviation,
				AwayTeam: g.Visitor.Abbreviation,
				Tipoff:   date,
				Status:   gameStatus(g.Status),
			}
			if g.Season > 0 {
				rec.SeasonYear = fmt.Sprintf("%d", g.Season)
			}
			if rec.Status != "scheduled" {
				hs, vs := g.HomeScore, g.VisitorScore
				rec.HomeScore = &hs
				rec.AwayScore = &vs
			}
			records = append(records, rec)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]providers.GameRecord), nil
}

// gameStatus maps the provider's status strings ("Final", "3rd Qtr",
// "Halftime", or an ISO tipoff timestamp for upcoming games) onto ours.
func gameStatus(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "final") {
		return "final"
	}
	if s == "" {
		return "scheduled"
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return "scheduled"
	}
	return "in_progress"
}

// statsPayload mirrors the provider's per-game stats response.
type statsPayload struct {
	Data []struct {
		Player struct {
			ID int `json:"id"`
		} `json:"player"`
		Points   float64 `json:"pts"`
		Rebounds float64 `json:"reb"`
		Assists  float64 `json:"ast"`
		Threes   float64 `json:"fg3m"`
	} `json:"data"`
}

// FetchGameStats returns final statistic values for every player in a game,
// keyed by the stats provider's player ID then stat type.
func (c *Client) FetchGameStats(ctx context.Context, eventID string) (map[string]map[string]float64, error) {
	key := cache.Key(c.Name(), "game_stats", "game="+eventID)

	v, err := c.cache.GetOrFetch(key, BoxScoreTTL, func() (interface{}, error) {
		url := fmt.Sprintf("%s/stats?game_ids[]=%s&per_page=100", c.baseURL, eventID)

		var payload statsPayload
		if err := c.getJSON(ctx, url, &payload); err != nil {
			return nil, err
		}

		stats := make(map[string]map[string]float64, len(payload.Data))
		for _, row := range payload.Data {
			playerID := fmt.Sprintf("%d", row.Player.ID)
			stats[playerID] = map[string]float64{
				"points":   row.Points,
				"rebounds": row.Rebounds,
				"assists":  row.Assists,
				"threes":   row.Threes,
			}
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]map[string]float64), nil
}

// getJSON performs one guarded GET and decodes the response.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	res, err := c.guard.Do(ctx, func(ctx context.Context) (*quota.Result, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", quota.ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: stats provider returned %d", quota.ErrUpstreamUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", quota.ErrUpstreamUnavailable, err)
		}

		return &quota.Result{
			Body:      body,
			Remaining: quota.ParseRemaining(resp.Header),
		}, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(res.Body, target); err != nil {
		return fmt.Errorf("decoding stats response: %w", err)
	}
	return nil
}
