package cache

import (
	"context"
	"testing"
	"time"

	"dispatch-sim/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisLegCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLegCache(client, ttl), mr
}

func TestRedisLegCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t, 0)

	legs := map[string]ports.LegEstimate{
		"25.28000,51.52000|25.30000,51.50000": {DistanceKm: 3.0, DurationMins: 6.0},
		"25.30000,51.50000|25.32000,51.48000": {DistanceKm: 4.0, DurationMins: 8.0},
	}
	require.NoError(t, c.PutMany(ctx, legs))

	got, err := c.GetMany(ctx, []string{
		"25.28000,51.52000|25.30000,51.50000",
		"25.30000,51.50000|25.32000,51.48000",
		"0.00000,0.00000|1.00000,1.00000",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 3.0, got["25.28000,51.52000|25.30000,51.50000"].DistanceKm, 1e-9)
	assert.InDelta(t, 8.0, got["25.30000,51.50000|25.32000,51.48000"].DurationMins, 1e-9)
}

func TestRedisLegCacheHonorsTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, time.Minute)

	key := "1.00000,1.00000|2.00000,2.00000"
	require.NoError(t, c.PutMany(ctx, map[string]ports.LegEstimate{
		key: {DistanceKm: 5, DurationMins: 9},
	}))

	got, err := c.GetMany(ctx, []string{key})
	require.NoError(t, err)
	require.Len(t, got, 1)

	mr.FastForward(2 * time.Minute)

	got, err = c.GetMany(ctx, []string{key})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisLegCacheRejectsCorruptValues(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 0)

	require.NoError(t, mr.Set(legKeyPrefix+"bad", "not json"))

	_, err := c.GetMany(ctx, []string{"bad"})
	assert.Error(t, err)
}

func TestRedisLegCacheEdgeInputs(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t, 0)

	got, err := c.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.PutMany(ctx, nil))

	nilCache := NewRedisLegCache(nil, 0)
	_, err = nilCache.GetMany(ctx, []string{"a"})
	assert.Error(t, err)
	assert.Error(t, nilCache.PutMany(ctx, map[string]ports.LegEstimate{"a": {}}))
}
