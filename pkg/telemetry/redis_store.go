package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/redis"
)

// RedisStore keeps snapshots in Redis under "scale:{name}" so every API node
// sees the same latest reading. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func snapshotKey(scale string) string {
	return fmt.Sprintf("scale:%s", scale)
}

func (s *RedisStore) Put(ctx context.Context, scale string, snapshot models.TelemetrySnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot for scale %s: %w", scale, err)
	}

	if err := s.client.Set(ctx, snapshotKey(scale), data, ttl); err != nil {
		return fmt.Errorf("failed to store snapshot for scale %s: %w", scale, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, scale string) (*models.TelemetrySnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(scale))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot for scale %s: %w", scale, err)
	}

	var snapshot models.TelemetrySnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse stored snapshot for scale %s: %w", scale, err)
	}
	return &snapshot, nil
}
