// Package scoreboard adapts the scoreboard provider, a plain HTML page with
// one row per game. It has no metered quota, but it is still fetched through
// the cache so a burst of sync jobs hits the page once.
package scoreboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/cache"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/quota"
)

const (
	// DefaultBaseURL is the scoreboard page root.
	DefaultBaseURL = "https://scores.example-sports.net/nba"

	// ScheduleTTL is how long a fetched day's schedule stays fresh.
	// Schedules shift rarely; live statuses ride the same page, so an hour
	// is the compromise between freshness and politeness.
	ScheduleTTL = time.Hour
)

// Client fetches and parses the scoreboard page.
type Client struct {
	baseURL    string
	httpClient *http.Client
	guard      *quota.Guard
	cache      *cache.Memory
	seasonYear string
}

// NewClient creates a scoreboard client.
func NewClient(baseURL, seasonYear string, memCache *cache.Memory) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		guard:      quota.NewGuard("scoreboard", 2*time.Second, 5),
		cache:      memCache,
		seasonYear: seasonYear,
	}
}

// Name returns the provider name used in identity mappings.
func (c *Client) Name() string {
	return identity.ProviderScoreboard
}

// FetchSchedule returns the games listed for a date.
func (c *Client) FetchSchedule(ctx context.Context, date time.Time) ([]providers.GameRecord, error) {
	dateStr := date.Format("2006-01-02")
	key := cache.Key(c.Name(), "schedule", "date="+dateStr)

	v, err := c.cache.GetOrFetch(key, ScheduleTTL, func() (interface{}, error) {
		url := fmt.Sprintf("%s/scoreboard?date=%s", c.baseURL, dateStr)

		doc, err := c.fetchDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		return ParseScoreboard(doc, c.seasonYear, date)
	})
	if err != nil {
		return nil, err
	}
	return v.([]providers.GameRecord), nil
}

// fetchDocument performs one guarded GET and parses the HTML.
func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	res, err := c.guard.Do(ctx, func(ctx context.Context) (*quota.Result, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; propwatch/1.0)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", quota.ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: scoreboard returned %d", quota.ErrUpstreamUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading scoreboard body: %w", err)
		}

		// Scoreboard sends no quota headers.
		return &quota.Result{Body: body, Remaining: -1}, nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing scoreboard HTML: %w", err)
	}
	return doc, nil
}
