package services

import (
	"math"
	"os"
	"testing"

	"dispatch-sim/internal/adapters/distance"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/logger"

	"go.uber.org/zap/zapcore"
)

// The engine logs every assignment; keep test output readable.
func TestMain(m *testing.M) {
	logger.SetLevel(zapcore.ErrorLevel)
	os.Exit(m.Run())
}

// Test geometry lives on the equator, where haversine distance is linear
// in longitude: one degree is about 111.19 km.
func lineCoord(lng float64) domain.Coordinate {
	return domain.Coordinate{Lat: 0, Lng: lng}
}

func lineKm(fromLng, toLng float64) float64 {
	return distance.Haversine(lineCoord(fromLng), lineCoord(toLng))
}

func testOrder(id string, pickupLng, dropoffLng, createdAt, estimatedMins float64) *domain.Order {
	return domain.NewOrder(id, lineCoord(pickupLng), lineCoord(dropoffLng),
		createdAt, createdAt+estimatedMins, estimatedMins)
}

func testDriver(id string, lng float64, capacity int) *domain.Driver {
	return domain.NewDriver(id, lineCoord(lng), domain.VehicleMotorbike, capacity, 0)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}
