package cache

import (
	"context"
	"database/sql"
	"testing"

	"dispatch-sim/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// In-memory databases are per connection; keep the pool on one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitLegSchema(db))
	return db
}

func TestSqliteLegCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewSqliteLegCache(openTestDB(t))

	legs := map[string]ports.LegEstimate{
		"25.28000,51.52000|25.30000,51.50000": {DistanceKm: 3.0, DurationMins: 6.0},
		"25.30000,51.50000|25.28000,51.52000": {DistanceKm: 3.1, DurationMins: 6.2},
	}
	require.NoError(t, c.PutMany(ctx, legs))

	got, err := c.GetMany(ctx, []string{
		"25.28000,51.52000|25.30000,51.50000",
		"25.30000,51.50000|25.28000,51.52000",
		"99.00000,99.00000|98.00000,98.00000", // never cached
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 3.0, got["25.28000,51.52000|25.30000,51.50000"].DistanceKm, 1e-9)
	assert.InDelta(t, 6.2, got["25.30000,51.50000|25.28000,51.52000"].DurationMins, 1e-9)
}

func TestSqliteLegCacheReplacesStaleRows(t *testing.T) {
	ctx := context.Background()
	c := NewSqliteLegCache(openTestDB(t))

	key := "1.00000,1.00000|2.00000,2.00000"
	require.NoError(t, c.PutMany(ctx, map[string]ports.LegEstimate{
		key: {DistanceKm: 10, DurationMins: 20},
	}))
	require.NoError(t, c.PutMany(ctx, map[string]ports.LegEstimate{
		key: {DistanceKm: 11, DurationMins: 21},
	}))

	got, err := c.GetMany(ctx, []string{key, key})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 11.0, got[key].DistanceKm, 1e-9)
	assert.InDelta(t, 21.0, got[key].DurationMins, 1e-9)
}

func TestSqliteLegCacheEdgeInputs(t *testing.T) {
	ctx := context.Background()
	c := NewSqliteLegCache(openTestDB(t))

	got, err := c.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.GetMany(ctx, []string{"", "   "})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.PutMany(ctx, nil))

	err = c.PutMany(ctx, map[string]ports.LegEstimate{"": {DistanceKm: 1}})
	assert.Error(t, err)

	nilCache := NewSqliteLegCache(nil)
	_, err = nilCache.GetMany(ctx, []string{"a"})
	assert.Error(t, err)
}
