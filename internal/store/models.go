package store

import (
	"database/sql"
	"errors"
	"time"
)

// Game status values. Transitions are monotonic: scheduled -> in_progress ->
// final. A regression observed from a provider is a data-quality error.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
)

// statusRank orders game statuses for transition checks.
var statusRank = map[string]int{
	StatusScheduled:  0,
	StatusInProgress: 1,
	StatusFinal:      2,
}

// ErrInvalidStateTransition marks a game status regression. The transition
// is rejected and logged as a data-quality warning; stored state is left
// unchanged.
var ErrInvalidStateTransition = errors.New("invalid game status transition")

// ErrDuplicatePrediction marks a violation of the one-prediction-per
// (player, game, stat type) invariant. Inserts recover by merging into the
// existing row, so callers normally never see it.
var ErrDuplicatePrediction = errors.New("prediction already exists for player/game/stat")

// StatusRank returns a status's position in the transition order, or -1 for
// an unknown status. The game repository embeds the same ranking in its
// upsert statement so the monotonic check holds under concurrent writers.
func StatusRank(status string) int {
	r, ok := statusRank[status]
	if !ok {
		return -1
	}
	return r
}

// ValidTransition reports whether a game may move from to next.
func ValidTransition(from, next string) bool {
	fr := StatusRank(from)
	nr := StatusRank(next)
	return fr >= 0 && nr >= fr
}

// Game is one scheduled or played contest, keyed by its canonical identity.
// Provider-specific event IDs live in the identity's provider mappings.
type Game struct {
	IdentityID string         `json:"identity_id" db:"identity_id"`
	HomeTeam   string         `json:"home_team" db:"home_team"`
	AwayTeam   string         `json:"away_team" db:"away_team"`
	Tipoff     time.Time      `json:"tipoff" db:"tipoff"`
	Status     string         `json:"status" db:"status"`
	SeasonYear string         `json:"season_year" db:"season_year"`
	HomeScore  sql.NullInt32  `json:"home_score,omitempty" db:"home_score"`
	AwayScore  sql.NullInt32  `json:"away_score,omitempty" db:"away_score"`
	Venue      sql.NullString `json:"venue,omitempty" db:"venue"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Prediction stat types.
const (
	StatPoints   = "points"
	StatRebounds = "rebounds"
	StatAssists  = "assists"
	StatThrees   = "threes"
)

// Directional calls.
const (
	CallOver  = "OVER"
	CallUnder = "UNDER"
)

// Prediction outcomes.
const (
	OutcomeUnresolved = "unresolved"
	OutcomeCorrect    = "correct"
	OutcomeIncorrect  = "incorrect"
)

// Prediction is a forecast tied to one player, one game, and one statistic.
// At most one row exists per (player, game, stat type); newer bookmaker
// lines overwrite the stored line rather than versioning it.
type Prediction struct {
	ID               int64        `json:"id" db:"id"`
	PlayerIdentityID string       `json:"player_identity_id" db:"player_identity_id"`
	GameIdentityID   string       `json:"game_identity_id" db:"game_identity_id"`
	StatType         string       `json:"stat_type" db:"stat_type"`
	PredictedValue   float64      `json:"predicted_value" db:"predicted_value"`
	Line             float64      `json:"line" db:"line"`
	Bookmaker        string       `json:"bookmaker" db:"bookmaker"`
	Confidence       float64      `json:"confidence" db:"confidence"`
	Call             string       `json:"call" db:"call"`
	Outcome          string       `json:"outcome" db:"outcome"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	ResolvedAt       sql.NullTime `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Resolved reports whether the prediction has reached a terminal outcome.
func (p *Prediction) Resolved() bool {
	return p.Outcome != OutcomeUnresolved
}
