package config

import (
	"testing"

	"dispatch-sim/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuning(t *testing.T) {
	c := Default()

	assert.Equal(t, 1020.0, c.StartTime)
	assert.Equal(t, 1320.0, c.EndTime)
	assert.Equal(t, 2, c.MaxBundleSize)
	assert.Equal(t, 52.0, c.MaxDeliveryTimeMins)
	assert.Equal(t, 35.0, c.AvgSpeedKmh)
	assert.False(t, c.UseRoadDistance)
}

func TestVehiclePenalty(t *testing.T) {
	c := Default()

	assert.Equal(t, 1.0, c.VehiclePenalty(domain.VehicleMotorbike))
	assert.Equal(t, 1.2, c.VehiclePenalty(domain.VehicleBike))
	assert.Equal(t, 1.4, c.VehiclePenalty(domain.VehicleCar))
	assert.Equal(t, 1.0, c.VehiclePenalty(domain.VehicleType("rickshaw")))
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SIM_START_TIME", "16:30:00")
	t.Setenv("MAX_BUNDLE_SIZE", "3")
	t.Setenv("USE_ROAD_DISTANCE", "true")
	t.Setenv("W_DELAY", "2.5")

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 990.0, c.StartTime)
	assert.Equal(t, 3, c.MaxBundleSize)
	assert.True(t, c.UseRoadDistance)
	assert.Equal(t, 2.5, c.WDelay)
	// Untouched values keep their defaults.
	assert.Equal(t, 1320.0, c.EndTime)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("AVG_SPEED_KMH", "fast")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AVG_SPEED_KMH")
}
