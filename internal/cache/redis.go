package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds last-good payload snapshots that survive process restarts.
// The in-memory cache is authoritative for TTL semantics; Redis is the
// fallback tier sync jobs read when a cold process has no stale entry to
// serve during a provider outage.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a new Redis snapshot cache connection.
func NewRedis(redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Close closes the Redis connection.
func (rc *Redis) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client.
func (rc *Redis) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection.
func (rc *Redis) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetSnapshot stores a JSON snapshot of the last good payload for key.
// Snapshots are kept well past the in-memory TTL; staleness is the point.
func (rc *Redis) SetSnapshot(ctx context.Context, key string, payload interface{}, retention time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, "snapshot:"+key, data, retention).Err()
}

// GetSnapshot loads the last stored snapshot for key into out.
// Returns false with no error when no snapshot exists.
func (rc *Redis) GetSnapshot(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, "snapshot:"+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}
