package sync

import (
	"math"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/providers"
	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// MarketScorer derives a call from the bookmaker's own pricing: it takes
// the side the book has juiced (the more negative American price) as the
// market's lean. It does no modelling of its own, so it is a placeholder
// until a real scoring service is plugged in behind the Scorer interface.
type MarketScorer struct{}

// Score picks the shorter-priced side of a prop line.
func (MarketScorer) Score(line providers.PropLine) (float64, string, float64, bool) {
	if line.OverPrice == 0 || line.UnderPrice == 0 {
		return 0, "", 0, false
	}

	overProb := impliedProbability(float64(line.OverPrice))
	underProb := impliedProbability(float64(line.UnderPrice))
	if overProb == underProb {
		// Dead-even pricing carries no signal.
		return 0, "", 0, false
	}

	call := store.CallOver
	edge := overProb - underProb
	predicted := line.Line + 0.5
	if underProb > overProb {
		call = store.CallUnder
		edge = underProb - overProb
		predicted = line.Line - 0.5
	}

	// Edge over a coin flip, clamped so confidence stays in (0, 1].
	confidence := math.Min(0.5+edge, 1.0)
	return predicted, call, confidence, true
}

// impliedProbability converts an American price to its implied win rate,
// vig included.
func impliedProbability(price float64) float64 {
	if price < 0 {
		return -price / (-price + 100)
	}
	return 100 / (price + 100)
}
