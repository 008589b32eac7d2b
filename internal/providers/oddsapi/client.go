// Package oddsapi adapts the betting-odds provider. It is the tightest
// quota in the system (the paid tier meters every market request), so the
// guard watches the provider's x-requests-remaining header and the cache
// keeps odds for minutes, not seconds.
package oddsapi

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
	// DefaultBaseURL is the odds provider's API root.
	DefaultBaseURL = "https://api.the-odds-api.com/v4"

	sportKey = "basketball_nba"

	// EventOddsTTL covers game-level live odds.
	EventOddsTTL = 10 * time.Minute

	// PropOddsTTL covers player-prop lines, which books reprice fastest.
	PropOddsTTL = 5 * time.Minute
)

// propMarkets are the player-prop market keys requested per event, and the
// internal stat type each maps to.
var propMarkets = map[string]string{
	"player_points":   "points",
	"player_rebounds": "rebounds",
	"player_assists":  "assists",
	"player_threes":   "threes",
}

// Client handles odds provider API requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	guard      *quota.Guard
	cache      *cache.Memory
}

// NewClient creates an odds provider client.
func NewClient(baseURL, apiKey string, memCache *cache.Memory) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		guard: quota.NewGuard("oddsapi", 5*time.Second, 2),
		cache: memCache,
	}
}

// Name returns the provider name used in identity mappings.
func (c *Client) Name() string {
	return identity.ProviderOdds
}

// Guard exposes the quota guard for status reporting.
func (c *Client) Guard() *quota.Guard {
	return c.guard
}

// eventOddsPayload mirrors the provider's event odds response.
type eventOddsPayload struct {
	ID         string `json:"id"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name        string  `json:"name"`        // "Over" | "Under"
				Description string  `json:"description"` // player display name
				Price       int     `json:"price"`
				Point       float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchOdds returns the player-prop lines for one event, normalized to one
// PropLine per (player, stat type) with both prices attached.
func (c *Client) FetchOdds(ctx context.Context, eventID string) (*providers.RawOddsPayload, error) {
	key := cache.Key(c.Name(), "props", "event="+eventID)

	v, err := c.cache.GetOrFetch(key, PropOddsTTL, func() (interface{}, error) {
		markets := make([]string, 0, len(propMarkets))
		for m := range propMarkets {
			markets = append(markets, m)
		}
		url := fmt.Sprintf("%s/sports/%s/events/%s/odds?apiKey=%s&regions=us&oddsFormat=american&markets=%s",
			c.baseURL, sportKey, eventID, c.apiKey, strings.Join(markets, ","))

		var payload eventOddsPayload
		if err := c.getJSON(ctx, url, &payload); err != nil {
			return nil, err
		}

		return normalizeEventOdds(eventID, &payload), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*providers.RawOddsPayload), nil
}

// normalizeEventOdds flattens the bookmaker/market/outcome tree into prop
// lines. The first bookmaker carrying a market wins; this is a line source,
// not an odds comparison engine.
func normalizeEventOdds(eventID string, payload *eventOddsPayload) *providers.RawOddsPayload {
	out := &providers.RawOddsPayload{
		EventID:   eventID,
		FetchedAt: time.Now(),
	}

	type lineKey struct {
		player string
		stat   string
	}
	seen := make(map[lineKey]*providers.PropLine)

	for _, book := range payload.Bookmakers {
		for _, market := range book.Markets {
			statType, ok := propMarkets[market.Key]
			if !ok {
				continue
			}
			for _, o := range market.Outcomes {
				k := lineKey{player: o.Description, stat: statType}
				line, ok := seen[k]
				if !ok {
					line = &providers.PropLine{
						PlayerName: o.Description,
						StatType:   statType,
						Line:       o.Point,
					}
					seen[k] = line
				}
				switch o.Name {
				case "Over":
					line.OverPrice = o.Price
					line.Line = o.Point
				case "Under":
					line.UnderPrice = o.Price
				}
			}
		}
		if len(seen) > 0 {
			out.Bookmaker = book.Key
			break // first bookmaker with prop markets wins
		}
	}

	for _, line := range seen {
		out.Lines = append(out.Lines, *line)
	}
	return out
}

// eventListPayload mirrors the provider's event list response.
type eventListPayload []struct {
	ID           string    `json:"id"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

// FetchEvents lists the provider's upcoming events so odds syncs can map
// provider event IDs onto canonical games.
func (c *Client) FetchEvents(ctx context.Context) ([]providers.GameRecord, error) {
	key := cache.Key(c.Name(), "events")

	v, err := c.cache.GetOrFetch(key, EventOddsTTL, func() (interface{}, error) {
		url := fmt.Sprintf("%s/sports/%s/events?apiKey=%s", c.baseURL, sportKey, c.apiKey)

		var payload eventListPayload
		if err := c.getJSON(ctx, url, &payload); err != nil {
			return nil, err
		}

		records := make([]providers.GameRecord, 0, len(payload))
		for _, e := range payload {
			records = append(records, providers.GameRecord{
				Record: identity.Record{
					Provider:    c.Name(),
					ExternalID:  e.ID,
					DisplayName: providers.MatchupName(e.AwayTeam, e.HomeTeam),
				},
				HomeTeam: e.HomeTeam,
				AwayTeam: e.AwayTeam,
				Tipoff:   e.CommenceTime,
				Status:   "scheduled",
			})
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]providers.GameRecord), nil
}

// getJSON performs one guarded GET and decodes the response.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	res, err := c.guard.Do(ctx, func(ctx context.Context) (*quota.Result, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", quota.ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: odds provider returned %d", quota.ErrUpstreamUnavailable, resp.StatusCode)
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
		return fmt.Errorf("decoding odds response: %w", err)
	}
	return nil
}
