package ports

import (
	"context"
	"fmt"

	"dispatch-sim/internal/domain"
)

// Road distance and duration for one directed leg.
type LegEstimate struct {
	DistanceKm   float64
	DurationMins float64
}

// Port: persistent storage for road leg estimates, so repeated runs over the
// same datasets skip the routing backend.
type LegCache interface {
	// Fetch cached estimates for the given leg keys. Missing keys are
	// simply absent from the result.
	GetMany(ctx context.Context, keys []string) (map[string]LegEstimate, error)
	// Store estimates keyed by leg key.
	PutMany(ctx context.Context, legs map[string]LegEstimate) error
}

// LegKey returns the canonical cache key for a directed leg. Coordinates are
// rounded to five decimal places (about one meter) so float jitter does not
// split cache entries.
func LegKey(from, to domain.Coordinate) string {
	return fmt.Sprintf("%.5f,%.5f|%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
}
