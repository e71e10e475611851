package distance

import (
	"math"

	"dispatch-sim/internal/domain"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(from, to domain.Coordinate) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// TravelMins converts a distance to travel minutes at an average speed.
func TravelMins(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return math.Inf(1)
	}
	return distanceKm / speedKmh * 60
}

// HaversineOracle estimates every leg with great-circle distance at a fixed
// average speed. This is the default oracle when road routing is disabled.
type HaversineOracle struct {
	speedKmh float64
}

func NewHaversineOracle(speedKmh float64) *HaversineOracle {
	if speedKmh <= 0 {
		speedKmh = 35
	}
	return &HaversineOracle{speedKmh: speedKmh}
}

func (h *HaversineOracle) DistanceKm(from, to domain.Coordinate) float64 {
	return Haversine(from, to)
}

func (h *HaversineOracle) TravelTimeMins(from, to domain.Coordinate) float64 {
	return TravelMins(Haversine(from, to), h.speedKmh)
}
