package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisMatrixCacheRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewRedisMatrixCache(client)
	ctx := context.Background()

	key := ports.Key(
		domain.LatLng{Lat: 48.8566, Lon: 2.3522},
		domain.LatLng{Lat: 48.8606, Lon: 2.3376},
		ports.ProfileRoadNetwork,
	)
	want := ports.CellValue{DistanceMeters: 1750, DurationSeconds: 420}

	require.NoError(t, c.PutMany(ctx, map[ports.CellKey]ports.CellValue{key: want}))

	got, err := c.GetMany(ctx, []ports.CellKey{key})
	require.NoError(t, err)
	require.Equal(t, want, got[key])
}

func TestRedisMatrixCacheExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisMatrixCache(client)
	ctx := context.Background()

	key := ports.Key(domain.LatLng{Lat: 1}, domain.LatLng{Lat: 2}, ports.ProfileLiveGPS)
	cells := map[ports.CellKey]ports.CellValue{key: {DistanceMeters: 10, DurationSeconds: 5}}
	require.NoError(t, c.PutMany(ctx, cells))

	// Live-GPS tier entries disappear once past their TTL.
	mr.FastForward(LiveGPSTTL + time.Second)

	got, err := c.GetMany(ctx, []ports.CellKey{key})
	require.NoError(t, err)
	require.NotContains(t, got, key)
}

func TestRedisMatrixCacheMissIsNotError(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewRedisMatrixCache(client)

	key := ports.Key(domain.LatLng{Lat: 3}, domain.LatLng{Lat: 4}, ports.ProfileRoadNetwork)
	got, err := c.GetMany(context.Background(), []ports.CellKey{key})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryMatrixCacheRoundTrip(t *testing.T) {
	c := NewMemoryMatrixCache()
	ctx := context.Background()

	key := ports.Key(domain.LatLng{Lat: 52.52, Lon: 13.405}, domain.LatLng{Lat: 52.5, Lon: 13.39}, ports.ProfileRoadNetwork)
	want := ports.CellValue{DistanceMeters: 2500, DurationSeconds: 380}

	require.NoError(t, c.PutMany(ctx, map[ports.CellKey]ports.CellValue{key: want}))

	got, err := c.GetMany(ctx, []ports.CellKey{key})
	require.NoError(t, err)
	require.Equal(t, want, got[key])
}

func TestMemoryMatrixCacheExpiry(t *testing.T) {
	c := NewMemoryMatrixCacheWithTTL(time.Hour, 20*time.Millisecond)
	ctx := context.Background()

	key := ports.Key(domain.LatLng{Lat: 5}, domain.LatLng{Lat: 6}, ports.ProfileLiveGPS)
	require.NoError(t, c.PutMany(ctx, map[ports.CellKey]ports.CellValue{key: {DistanceMeters: 1, DurationSeconds: 1}}))

	time.Sleep(60 * time.Millisecond)

	got, err := c.GetMany(ctx, []ports.CellKey{key})
	require.NoError(t, err)
	require.NotContains(t, got, key)
}

func TestCellKeyRoundingIsDeterministic(t *testing.T) {
	// Coordinates that differ below the rounding precision share an entry.
	a := ports.Key(domain.LatLng{Lat: 48.856601, Lon: 2.352201}, domain.LatLng{Lat: 48.8606, Lon: 2.3376}, ports.ProfileRoadNetwork)
	b := ports.Key(domain.LatLng{Lat: 48.856599, Lon: 2.352199}, domain.LatLng{Lat: 48.8606, Lon: 2.3376}, ports.ProfileRoadNetwork)
	require.Equal(t, a, b)

	// Profile is part of the key: tiers never alias.
	c := ports.Key(domain.LatLng{Lat: 48.856601, Lon: 2.352201}, domain.LatLng{Lat: 48.8606, Lon: 2.3376}, ports.ProfileLiveGPS)
	require.NotEqual(t, a, c)
}
