package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"fieldops-routing-service/internal/ports"
)

const (
	// The road network changes on the timescale of construction works.
	RoadNetworkTTL = 24 * time.Hour
	// Anything derived from a live GPS position goes stale in seconds.
	LiveGPSTTL = 90 * time.Second

	defaultTierSize = 65536
)

// MemoryMatrixCache keeps matrix cells in per-profile expirable LRU tiers.
// The LRU evicts entries past their tier TTL, so an expired cell is never
// observable by a caller. Safe for concurrent use.
type MemoryMatrixCache struct {
	tiers map[ports.Profile]*expirable.LRU[ports.CellKey, ports.CellValue]
}

func NewMemoryMatrixCache() *MemoryMatrixCache {
	return NewMemoryMatrixCacheWithTTL(RoadNetworkTTL, LiveGPSTTL)
}

// NewMemoryMatrixCacheWithTTL exists so tests can shrink the tier TTLs.
func NewMemoryMatrixCacheWithTTL(roadTTL, liveTTL time.Duration) *MemoryMatrixCache {
	return &MemoryMatrixCache{
		tiers: map[ports.Profile]*expirable.LRU[ports.CellKey, ports.CellValue]{
			ports.ProfileRoadNetwork: expirable.NewLRU[ports.CellKey, ports.CellValue](defaultTierSize, nil, roadTTL),
			ports.ProfileLiveGPS:     expirable.NewLRU[ports.CellKey, ports.CellValue](defaultTierSize, nil, liveTTL),
		},
	}
}

func (c *MemoryMatrixCache) GetMany(
	ctx context.Context,
	keys []ports.CellKey,
) (map[ports.CellKey]ports.CellValue, error) {
	out := make(map[ports.CellKey]ports.CellValue, len(keys))
	for _, k := range keys {
		tier, ok := c.tiers[k.Profile]
		if !ok {
			continue
		}
		if v, ok := tier.Get(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *MemoryMatrixCache) PutMany(
	ctx context.Context,
	cells map[ports.CellKey]ports.CellValue,
) error {
	for k, v := range cells {
		if tier, ok := c.tiers[k.Profile]; ok {
			tier.Add(k, v)
		}
	}
	return nil
}
