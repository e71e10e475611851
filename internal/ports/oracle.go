package ports

import (
	"context"

	"dispatch-sim/internal/domain"
)

// Contract for answering point-to-point distance and travel time queries.
// Implementations must be pure and safe for concurrent use once constructed:
// the simulation hot loop calls these without contexts or error paths.
type DistanceOracle interface {
	// Distance in kilometers between two coordinates.
	DistanceKm(from, to domain.Coordinate) float64
	// Estimated travel time in minutes between two coordinates.
	TravelTimeMins(from, to domain.Coordinate) float64
}

// Optional extension of DistanceOracle for backends that precompute pairwise
// estimates for a known coordinate set before a run starts.
type MatrixBuilder interface {
	DistanceOracle
	// Warm the oracle for every ordered pair of the given points.
	BuildMatrix(ctx context.Context, points []domain.Coordinate) error
}
