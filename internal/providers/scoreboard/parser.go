package scoreboard

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/identity"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
)

// ParseScoreboard extracts the day's games from a scoreboard document.
// It tries the structured game-row layout first and falls back to the
// legacy table layout the page still serves on some dates.
func ParseScoreboard(doc *goquery.Document, seasonYear string, date time.Time) ([]providers.GameRecord, error) {
	var games []providers.GameRecord

	// Strategy 1: modern game-row cards.
	doc.Find("div.game-row").Each(func(i int, s *goquery.Selection) {
		if game, ok := parseGameRow(s, seasonYear, date); ok {
			games = append(games, game)
		}
	})

	// Strategy 2: legacy table rows.
	if len(games) == 0 {
		doc.Find("table.scoreboard tr.game").Each(func(i int, s *goquery.Selection) {
			if game, ok := parseLegacyRow(s, seasonYear, date); ok {
				games = append(games, game)
			}
		})
	}

	if len(games) == 0 {
		log.Printf("[scoreboard] no games parsed for %s", date.Format("2006-01-02"))
	}
	return games, nil
}

func parseGameRow(s *goquery.Selection, seasonYear string, date time.Time) (providers.GameRecord, bool) {
	gameID, _ := s.Attr("data-game-id")
	away := strings.TrimSpace(s.Find("span.away-team").Text())
	home := strings.TrimSpace(s.Find("span.home-team").Text())
	if home == "" || away == "" {
		return providers.GameRecord{}, false
	}

	status, tipoff := parseStatus(strings.TrimSpace(s.Find("span.game-status").Text()), date)

	game := providers.GameRecord{
		Record: identity.Record{
			Provider:    identity.ProviderScoreboard,
			ExternalID:  gameID,
			DisplayName: providers.MatchupName(away, home),
		},
		HomeTeam:   identity.NormalizeTeamCode(home),
		AwayTeam:   identity.NormalizeTeamCode(away),
		Tipoff:     tipoff,
		Status:     status,
		SeasonYear: seasonYear,
	}

	if status != "scheduled" {
		if v, err := strconv.Atoi(strings.TrimSpace(s.Find("span.home-score").Text())); err == nil {
			game.HomeScore = &v
		}
		if v, err := strconv.Atoi(strings.TrimSpace(s.Find("span.away-score").Text())); err == nil {
			game.AwayScore = &v
		}
	}
	return game, true
}

func parseLegacyRow(s *goquery.Selection, seasonYear string, date time.Time) (providers.GameRecord, bool) {
	cells := s.Find("td")
	if cells.Length() < 3 {
		return providers.GameRecord{}, false
	}

	away := strings.TrimSpace(cells.Eq(0).Text())
	home := strings.TrimSpace(cells.Eq(1).Text())
	if home == "" || away == "" {
		return providers.GameRecord{}, false
	}

	status, tipoff := parseStatus(strings.TrimSpace(cells.Eq(2).Text()), date)

	game := providers.GameRecord{
		Record: identity.Record{
			Provider:    identity.ProviderScoreboard,
			DisplayName: providers.MatchupName(away, home),
		},
		HomeTeam:   identity.NormalizeTeamCode(home),
		AwayTeam:   identity.NormalizeTeamCode(away),
		Tipoff:     tipoff,
		Status:     status,
		SeasonYear: seasonYear,
	}

	if cells.Length() >= 5 && status != "scheduled" {
		if v, err := strconv.Atoi(strings.TrimSpace(cells.Eq(3).Text())); err == nil {
			game.AwayScore = &v
		}
		if v, err := strconv.Atoi(strings.TrimSpace(cells.Eq(4).Text())); err == nil {
			game.HomeScore = &v
		}
	}
	return game, true
}

// parseStatus maps the status cell text to a game status plus a tipoff time.
// Statuses look like "7:30 PM ET", "Q3 4:12", "Halftime", or "Final".
func parseStatus(text string, date time.Time) (string, time.Time) {
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "final"):
		return "final", date
	case strings.HasPrefix(lower, "q"),
		strings.HasPrefix(lower, "ot"),
		strings.Contains(lower, "half"):
		return "in_progress", date
	}

	// Scheduled games carry a local tipoff time.
	clean := strings.TrimSuffix(strings.TrimSpace(text), " ET")
	if t, err := time.Parse("3:04 PM", clean); err == nil {
		tipoff := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
		return "scheduled", tipoff
	}
	return "scheduled", date
}
