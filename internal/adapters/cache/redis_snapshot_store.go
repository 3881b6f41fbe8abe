package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// ErrNoSnapshot is returned when an entity has no live plan.
var ErrNoSnapshot = fmt.Errorf("plan snapshot: %w", ports.ErrNotFound)

// RedisSnapshotStore holds the hot copy of each entity's current plan for
// downstream broadcast. Snapshots are overwritten on every publish and carry
// no TTL: the latest plan stays valid until superseded.
type RedisSnapshotStore struct {
	client *redis.Client
}

func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func snapshotKey(entityID string) string { return "plan:current:" + entityID }

func (s *RedisSnapshotStore) SaveSnapshot(
	ctx context.Context,
	entityID string,
	plan *domain.SolutionResult,
) error {
	if s.client == nil {
		return errors.New("snapshot store: redis client is nil")
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("save snapshot: marshal plan: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(entityID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: set: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Snapshot(
	ctx context.Context,
	entityID string,
) (*domain.SolutionResult, error) {
	if s.client == nil {
		return nil, errors.New("snapshot store: redis client is nil")
	}

	raw, err := s.client.Get(ctx, snapshotKey(entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var plan domain.SolutionResult
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("get snapshot: unmarshal plan: %w", err)
	}
	return &plan, nil
}
