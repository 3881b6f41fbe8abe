package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldops-routing-service/internal/ports"
)

// RedisMatrixCache shares matrix cells across service instances. Expiry is
// delegated to Redis TTLs, tiered per profile the same way as the in-memory
// cache. Keys are derived from the already-rounded cell coordinates, so all
// call sites agree on entry identity.
type RedisMatrixCache struct {
	client *redis.Client
	ttls   map[ports.Profile]time.Duration
}

func NewRedisMatrixCache(client *redis.Client) *RedisMatrixCache {
	return &RedisMatrixCache{
		client: client,
		ttls: map[ports.Profile]time.Duration{
			ports.ProfileRoadNetwork: RoadNetworkTTL,
			ports.ProfileLiveGPS:     LiveGPSTTL,
		},
	}
}

func redisKey(k ports.CellKey) string {
	return fmt.Sprintf("matrix:%s:%s,%s|%s,%s", k.Profile, k.OriginLat, k.OriginLon, k.DestLat, k.DestLon)
}

func (c *RedisMatrixCache) GetMany(
	ctx context.Context,
	keys []ports.CellKey,
) (map[ports.CellKey]ports.CellValue, error) {
	if c.client == nil {
		return nil, errors.New("matrix cache: redis client is nil")
	}
	if len(keys) == 0 {
		return map[ports.CellKey]ports.CellValue{}, nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = redisKey(k)
	}

	values, err := c.client.MGet(ctx, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("get matrix cache: mget: %w", err)
	}

	out := make(map[ports.CellKey]ports.CellValue, len(keys))
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var cell ports.CellValue
		if _, err := fmt.Sscanf(s, "%d|%d", &cell.DistanceMeters, &cell.DurationSeconds); err != nil {
			// A corrupt entry is treated as a miss; it will be overwritten.
			continue
		}
		out[keys[i]] = cell
	}
	return out, nil
}

func (c *RedisMatrixCache) PutMany(
	ctx context.Context,
	cells map[ports.CellKey]ports.CellValue,
) error {
	if c.client == nil {
		return errors.New("matrix cache: redis client is nil")
	}
	if len(cells) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for k, v := range cells {
		ttl, ok := c.ttls[k.Profile]
		if !ok {
			return fmt.Errorf("insert matrix cache: unknown profile %q", k.Profile)
		}
		pipe.Set(ctx, redisKey(k), fmt.Sprintf("%d|%d", v.DistanceMeters, v.DurationSeconds), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert matrix cache: pipeline exec: %w", err)
	}
	return nil
}
