package predictions

import (
	"context"
	"testing"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

type memPredictions struct {
	rows map[int64]*store.Prediction
}

func newMemPredictions(rows ...*store.Prediction) *memPredictions {
	m := &memPredictions{rows: make(map[int64]*store.Prediction)}
	for _, p := range rows {
		m.rows[p.ID] = p
	}
	return m
}

func (m *memPredictions) GetUnresolvedByGame(ctx context.Context, gameIdentityID string) ([]*store.Prediction, error) {
	var out []*store.Prediction
	for _, p := range m.rows {
		if p.GameIdentityID == gameIdentityID && p.Outcome == store.OutcomeUnresolved {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPredictions) GetResolvedInWindow(ctx context.Context, windowDays int) ([]*store.Prediction, error) {
	var out []*store.Prediction
	for _, p := range m.rows {
		if p.Outcome != store.OutcomeUnresolved {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPredictions) MarkOutcome(ctx context.Context, predictionID int64, outcome string) (bool, error) {
	p, ok := m.rows[predictionID]
	if !ok || p.Outcome != store.OutcomeUnresolved {
		return false, nil
	}
	p.Outcome = outcome
	p.ResolvedAt.Valid = true
	p.ResolvedAt.Time = time.Now()
	return true, nil
}

type recordingPublisher struct {
	published []int64
}

func (r *recordingPublisher) PublishResolution(ctx context.Context, p *store.Prediction) error {
	r.published = append(r.published, p.ID)
	return nil
}

func pred(id int64, player, game, stat, call string, line float64) *store.Prediction {
	return &store.Prediction{
		ID:               id,
		PlayerIdentityID: player,
		GameIdentityID:   game,
		StatType:         stat,
		Line:             line,
		Call:             call,
		Outcome:          store.OutcomeUnresolved,
	}
}

func TestResolvePendingForGame(t *testing.T) {
	mem := newMemPredictions(
		pred(1, "p-tatum", "g-1", store.StatPoints, store.CallOver, 25.5),
		pred(2, "p-brown", "g-1", store.StatRebounds, store.CallUnder, 7.5),
		pred(3, "p-white", "g-1", store.StatAssists, store.CallOver, 5.5),
	)
	pub := &recordingPublisher{}
	r := NewResolver(mem, pub)

	actuals := map[string]map[string]float64{
		"p-tatum": {store.StatPoints: 30},
		"p-brown": {store.StatRebounds: 9},
		"p-white": {store.StatAssists: 4},
	}

	settled, err := r.ResolvePendingForGame(context.Background(), "g-1", actuals)
	if err != nil {
		t.Fatalf("ResolvePendingForGame: %v", err)
	}
	if len(settled) != 3 {
		t.Fatalf("expected 3 settlements, got %d", len(settled))
	}

	outcomes := map[int64]string{}
	for _, s := range settled {
		outcomes[s.PredictionID] = s.Outcome
	}
	if outcomes[1] != store.OutcomeCorrect {
		t.Errorf("over 25.5 with 30 actual should be correct, got %q", outcomes[1])
	}
	if outcomes[2] != store.OutcomeIncorrect {
		t.Errorf("under 7.5 with 9 actual should be incorrect, got %q", outcomes[2])
	}
	if outcomes[3] != store.OutcomeIncorrect {
		t.Errorf("over 5.5 with 4 actual should be incorrect, got %q", outcomes[3])
	}
	if len(pub.published) != 3 {
		t.Errorf("expected 3 published resolutions, got %d", len(pub.published))
	}
}

func TestResolvePendingIsIdempotent(t *testing.T) {
	mem := newMemPredictions(
		pred(1, "p-tatum", "g-1", store.StatPoints, store.CallOver, 25.5),
	)
	r := NewResolver(mem, nil)

	actuals := map[string]map[string]float64{
		"p-tatum": {store.StatPoints: 30},
	}

	first, err := r.ResolvePendingForGame(context.Background(), "g-1", actuals)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(first))
	}

	second, err := r.ResolvePendingForGame(context.Background(), "g-1", actuals)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second pass should settle nothing, got %d", len(second))
	}
	if mem.rows[1].Outcome != store.OutcomeCorrect {
		t.Errorf("outcome changed on re-run: %q", mem.rows[1].Outcome)
	}
}

func TestResolveLeavesMissingStatsUnresolved(t *testing.T) {
	mem := newMemPredictions(
		pred(1, "p-tatum", "g-1", store.StatPoints, store.CallOver, 25.5),
		pred(2, "p-dnp", "g-1", store.StatPoints, store.CallOver, 10.5),
	)
	r := NewResolver(mem, nil)

	actuals := map[string]map[string]float64{
		"p-tatum": {store.StatPoints: 30},
	}

	settled, err := r.ResolvePendingForGame(context.Background(), "g-1", actuals)
	if err != nil {
		t.Fatalf("ResolvePendingForGame: %v", err)
	}
	if len(settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(settled))
	}
	if mem.rows[2].Outcome != store.OutcomeUnresolved {
		t.Errorf("prediction without stats should stay unresolved, got %q", mem.rows[2].Outcome)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name    string
		call    string
		line    float64
		actual  float64
		outcome string
	}{
		{"over hit", store.CallOver, 25.5, 30, store.OutcomeCorrect},
		{"over miss", store.CallOver, 25.5, 20, store.OutcomeIncorrect},
		{"under hit", store.CallUnder, 7.5, 5, store.OutcomeCorrect},
		{"under miss", store.CallUnder, 7.5, 10, store.OutcomeIncorrect},
		{"push grades incorrect for over", store.CallOver, 25, 25, store.OutcomeIncorrect},
		{"push grades incorrect for under", store.CallUnder, 25, 25, store.OutcomeIncorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Settle(tt.call, tt.line, tt.actual); got != tt.outcome {
				t.Errorf("Settle(%q, %v, %v) = %q, want %q", tt.call, tt.line, tt.actual, got, tt.outcome)
			}
		})
	}
}

func TestComputeAccuracy(t *testing.T) {
	rows := []*store.Prediction{
		pred(1, "a", "g", store.StatPoints, store.CallOver, 20),
		pred(2, "b", "g", store.StatPoints, store.CallOver, 20),
		pred(3, "c", "g", store.StatRebounds, store.CallUnder, 8),
		pred(4, "d", "g", store.StatAssists, store.CallUnder, 5),
	}
	rows[0].Outcome = store.OutcomeCorrect
	rows[1].Outcome = store.OutcomeIncorrect
	rows[2].Outcome = store.OutcomeCorrect
	rows[3].Outcome = store.OutcomeCorrect
	mem := newMemPredictions(rows...)
	r := NewResolver(mem, nil)

	stats, err := r.ComputeAccuracy(context.Background(), 30)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if stats.Total != 4 || stats.Correct != 3 {
		t.Fatalf("expected 3/4, got %d/%d", stats.Correct, stats.Total)
	}
	if stats.Accuracy != 0.75 {
		t.Errorf("expected 0.75, got %v", stats.Accuracy)
	}

	pts := stats.ByStatType[store.StatPoints]
	if pts.Total != 2 || pts.Correct != 1 || pts.Accuracy != 0.5 {
		t.Errorf("points bucket wrong: %+v", pts)
	}
	under := stats.ByCall[store.CallUnder]
	if under.Total != 2 || under.Correct != 2 || under.Accuracy != 1.0 {
		t.Errorf("under bucket wrong: %+v", under)
	}
}

func TestComputeAccuracyEmptyWindow(t *testing.T) {
	r := NewResolver(newMemPredictions(), nil)

	stats, err := r.ComputeAccuracy(context.Background(), 30)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected empty window, got %d", stats.Total)
	}
	if stats.Accuracy != 0.0 {
		t.Errorf("empty window accuracy should be 0.0, got %v", stats.Accuracy)
	}
	if len(stats.ByStatType) != 0 || len(stats.ByCall) != 0 {
		t.Error("empty window should have empty breakdowns")
	}
}
