// Package predictions settles stored prop predictions against final box
// score stats and aggregates accuracy over a rolling window.
package predictions

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// PredictionStore is the slice of the prediction repository the resolver needs.
type PredictionStore interface {
	GetUnresolvedByGame(ctx context.Context, gameIdentityID string) ([]*store.Prediction, error)
	GetResolvedInWindow(ctx context.Context, windowDays int) ([]*store.Prediction, error)
	MarkOutcome(ctx context.Context, predictionID int64, outcome string) (bool, error)
}

// Publisher receives settled predictions for fan-out. Implementations must
// not block settlement on delivery failure.
type Publisher interface {
	PublishResolution(ctx context.Context, p *store.Prediction) error
}

// Resolution is the settlement record for one prediction.
type Resolution struct {
	PredictionID int64   `json:"prediction_id"`
	StatType     string  `json:"stat_type"`
	Call         string  `json:"call"`
	Line         float64 `json:"line"`
	Actual       float64 `json:"actual"`
	Outcome      string  `json:"outcome"`
}

// Resolver settles predictions once their game goes final.
type Resolver struct {
	predictions PredictionStore
	publisher   Publisher
}

// NewResolver creates a resolver. publisher may be nil.
func NewResolver(predictions PredictionStore, publisher Publisher) *Resolver {
	return &Resolver{
		predictions: predictions,
		publisher:   publisher,
	}
}

// ResolvePendingForGame settles every unresolved prediction for a game
// against the actual stat lines, keyed player identity ID -> stat type ->
// value. Predictions whose player has no stat line are left unresolved.
// Already-settled predictions are never touched, so re-running after a
// partial failure or a duplicate trigger is a no-op for the settled rows.
func (r *Resolver) ResolvePendingForGame(ctx context.Context, gameIdentityID string, actuals map[string]map[string]float64) ([]Resolution, error) {
	pending, err := r.predictions.GetUnresolvedByGame(ctx, gameIdentityID)
	if err != nil {
		return nil, fmt.Errorf("loading unresolved predictions for game %s: %w", gameIdentityID, err)
	}

	var settled []Resolution
	for _, p := range pending {
		playerStats, ok := actuals[p.PlayerIdentityID]
		if !ok {
			log.Printf("[predictions] no stats for player %s in game %s, leaving unresolved", p.PlayerIdentityID, gameIdentityID)
			continue
		}
		actual, ok := playerStats[p.StatType]
		if !ok {
			log.Printf("[predictions] no %s stat for player %s, leaving unresolved", p.StatType, p.PlayerIdentityID)
			continue
		}

		outcome := Settle(p.Call, p.Line, actual)

		updated, err := r.predictions.MarkOutcome(ctx, p.ID, outcome)
		if err != nil {
			return settled, fmt.Errorf("settling prediction %d: %w", p.ID, err)
		}
		if !updated {
			// Another sweep got there first.
			continue
		}

		p.Outcome = outcome
		res := Resolution{
			PredictionID: p.ID,
			StatType:     p.StatType,
			Call:         p.Call,
			Line:         p.Line,
			Actual:       actual,
			Outcome:      outcome,
		}
		settled = append(settled, res)

		if r.publisher != nil {
			if err := r.publisher.PublishResolution(ctx, p); err != nil {
				log.Printf("[predictions] publish failed for prediction %d: %v", p.ID, err)
			}
		}
	}
	return settled, nil
}

// Settle grades one call against the actual value. A push (actual exactly
// on the line) grades incorrect for both sides: the book refunds pushes,
// but the model still failed to beat the line.
func Settle(call string, line, actual float64) string {
	switch call {
	case store.CallOver:
		if actual > line {
			return store.OutcomeCorrect
		}
	case store.CallUnder:
		if actual < line {
			return store.OutcomeCorrect
		}
	}
	return store.OutcomeIncorrect
}

// AccuracyStats summarizes resolved predictions over a window.
type AccuracyStats struct {
	WindowDays int                 `json:"window_days"`
	Total      int                 `json:"total"`
	Correct    int                 `json:"correct"`
	Accuracy   float64             `json:"accuracy"`
	ByStatType map[string]Accuracy `json:"by_stat_type"`
	ByCall     map[string]Accuracy `json:"by_call"`
	ComputedAt time.Time           `json:"computed_at"`
}

// Accuracy is one bucket of the accuracy breakdown.
type Accuracy struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// ComputeAccuracy aggregates resolved predictions from the last windowDays
// days. An empty window yields 0.0 accuracy, not NaN.
func (r *Resolver) ComputeAccuracy(ctx context.Context, windowDays int) (*AccuracyStats, error) {
	resolved, err := r.predictions.GetResolvedInWindow(ctx, windowDays)
	if err != nil {
		return nil, fmt.Errorf("loading resolved predictions: %w", err)
	}

	stats := &AccuracyStats{
		WindowDays: windowDays,
		ByStatType: make(map[string]Accuracy),
		ByCall:     make(map[string]Accuracy),
		ComputedAt: time.Now().UTC(),
	}

	for _, p := range resolved {
		correct := p.Outcome == store.OutcomeCorrect
		stats.Total++
		if correct {
			stats.Correct++
		}
		bump(stats.ByStatType, p.StatType, correct)
		bump(stats.ByCall, p.Call, correct)
	}

	stats.Accuracy = ratio(stats.Correct, stats.Total)
	for k, v := range stats.ByStatType {
		v.Accuracy = ratio(v.Correct, v.Total)
		stats.ByStatType[k] = v
	}
	for k, v := range stats.ByCall {
		v.Accuracy = ratio(v.Correct, v.Total)
		stats.ByCall[k] = v
	}
	return stats, nil
}

func bump(m map[string]Accuracy, key string, correct bool) {
	a := m[key]
	a.Total++
	if correct {
		a.Correct++
	}
	m[key] = a
}

func ratio(correct, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(correct) / float64(total)
}
