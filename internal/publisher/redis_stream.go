package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/store"
)

// Stream names consumed by downstream workers.
const (
	StreamPredictionsResolved = "predictions.resolved"
	StreamGamesFinal          = "games.final.basketball_nba"
)

// RedisStreamPublisher publishes settlement events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
}

// NewRedisStreamPublisher creates a publisher from an existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
	}
}

// PublishResolution publishes one settled prediction to the stream
func (rsp *RedisStreamPublisher) PublishResolution(ctx context.Context, p *store.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamPredictionsResolved,
		Values: map[string]interface{}{
			"prediction_id": p.ID,
			"game_id":       p.GameIdentityID,
			"outcome":       p.Outcome,
			"data":          string(data),
			"timestamp":     time.Now().Unix(),
		},
	}).Err()
}

// PublishGameFinal publishes a game-final event so consumers can trigger
// their own settlement-dependent work.
func (rsp *RedisStreamPublisher) PublishGameFinal(ctx context.Context, g *store.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamGamesFinal,
		Values: map[string]interface{}{
			"game_id":   g.IdentityID,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
