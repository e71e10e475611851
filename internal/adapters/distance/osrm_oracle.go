package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/platform/obs"
	"dispatch-sim/internal/ports"

	"go.uber.org/zap"
)

const (
	// OSRM's public table endpoint rejects requests beyond this many locations.
	maxTableLocations = 100
	// Upper bound on per-pair route repairs after a table response with holes.
	maxRouteRepairs = 16
)

// OSRMOracle answers distance queries from a road matrix precomputed against
// an OSRM server. BuildMatrix warms the matrix once per run: the persistent
// leg cache is consulted first, misses are fetched in one table call, and
// fresh legs are written back. Reads never touch the network; a leg absent
// from the matrix falls back to inflated haversine.
//
// The oracle is safe for concurrent use.
type OSRMOracle struct {
	session            *http.Client
	baseURL            string
	timeout            time.Duration
	speedKmh           float64
	fallbackMultiplier float64
	cache              ports.LegCache

	mu   sync.RWMutex
	legs map[string]ports.LegEstimate

	fallbacks atomic.Int64
}

type OSRMOptions struct {
	BaseURL            string
	Timeout            time.Duration
	SpeedKmh           float64
	FallbackMultiplier float64
	// Optional persistent cache; nil disables caching.
	Cache ports.LegCache
}

func NewOSRMOracle(opts OSRMOptions) (*OSRMOracle, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("OSRM base URL is empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.SpeedKmh <= 0 {
		opts.SpeedKmh = 35
	}
	if opts.FallbackMultiplier <= 0 {
		opts.FallbackMultiplier = 1.4
	}

	return &OSRMOracle{
		// Table calls cover many legs at once; give them more room than
		// the per-request timeout.
		session:            &http.Client{Timeout: 3 * opts.Timeout},
		baseURL:            opts.BaseURL,
		timeout:            opts.Timeout,
		speedKmh:           opts.SpeedKmh,
		fallbackMultiplier: opts.FallbackMultiplier,
		cache:              opts.Cache,
		legs:               make(map[string]ports.LegEstimate),
	}, nil
}

func (o *OSRMOracle) DistanceKm(from, to domain.Coordinate) float64 {
	if leg, ok := o.lookup(from, to); ok {
		return leg.DistanceKm
	}
	return Haversine(from, to) * o.fallbackMultiplier
}

func (o *OSRMOracle) TravelTimeMins(from, to domain.Coordinate) float64 {
	if leg, ok := o.lookup(from, to); ok {
		return leg.DurationMins
	}
	return TravelMins(Haversine(from, to)*o.fallbackMultiplier, o.speedKmh)
}

// FallbackCount reports how many lookups were served by the haversine
// fallback instead of the road matrix.
func (o *OSRMOracle) FallbackCount() int64 { return o.fallbacks.Load() }

func (o *OSRMOracle) lookup(from, to domain.Coordinate) (ports.LegEstimate, bool) {
	key := ports.LegKey(from, to)

	o.mu.RLock()
	leg, ok := o.legs[key]
	o.mu.RUnlock()

	if !ok {
		o.fallbacks.Add(1)
	}
	return leg, ok
}

// BuildMatrix warms the oracle for every ordered pair of the given points.
// Backend failures degrade to the haversine fallback and are not fatal; only
// context cancellation aborts.
func (o *OSRMOracle) BuildMatrix(ctx context.Context, points []domain.Coordinate) (err error) {
	defer obs.Time(ctx, "osrm.BuildMatrix")(&err)

	uniq := dedupePoints(points)
	if len(uniq) < 2 {
		return nil
	}

	keys := make([]string, 0, len(uniq)*(len(uniq)-1))
	for i, from := range uniq {
		for j, to := range uniq {
			if i != j {
				keys = append(keys, ports.LegKey(from, to))
			}
		}
	}

	cached := map[string]ports.LegEstimate{}
	if o.cache != nil {
		var cacheErr error
		cached, cacheErr = o.cache.GetMany(ctx, keys)
		if cacheErr != nil {
			logger.Warn("leg cache read failed", zap.Error(cacheErr))
			cached = map[string]ports.LegEstimate{}
		}
	}

	o.mu.Lock()
	for k, v := range cached {
		o.legs[k] = v
	}
	o.mu.Unlock()

	if len(cached) == len(keys) {
		logger.Debug("road matrix served entirely from cache", zap.Int("legs", len(keys)))
		return nil
	}

	if len(uniq) > maxTableLocations {
		logger.Warn("too many locations for a table request; uncached legs fall back to haversine",
			zap.Int("locations", len(uniq)),
			zap.Int("limit", maxTableLocations),
		)
		return nil
	}

	fetched, fetchErr := o.fetchTable(ctx, uniq)
	if fetchErr != nil {
		if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
			return fetchErr
		}
		logger.Warn("road matrix fetch failed; falling back to haversine estimates", zap.Error(fetchErr))
		return nil
	}

	// The table endpoint returns null for legs it cannot route. Repair a
	// bounded number of holes through the route endpoint.
	missing := make([][2]domain.Coordinate, 0)
	for i, from := range uniq {
		for j, to := range uniq {
			if i == j {
				continue
			}
			key := ports.LegKey(from, to)
			if _, ok := cached[key]; ok {
				continue
			}
			if _, ok := fetched[key]; ok {
				continue
			}
			missing = append(missing, [2]domain.Coordinate{from, to})
		}
	}
	if n := len(missing); n > 0 && n <= maxRouteRepairs {
		for _, pair := range missing {
			leg, repairErr := o.fetchRoute(ctx, pair[0], pair[1])
			if repairErr != nil {
				logger.Debug("route repair failed", zap.String("leg", ports.LegKey(pair[0], pair[1])), zap.Error(repairErr))
				continue
			}
			fetched[ports.LegKey(pair[0], pair[1])] = leg
		}
	}

	o.mu.Lock()
	for k, v := range fetched {
		o.legs[k] = v
	}
	o.mu.Unlock()

	if o.cache != nil && len(fetched) > 0 {
		if putErr := o.cache.PutMany(ctx, fetched); putErr != nil {
			logger.Warn("leg cache write failed", zap.Error(putErr))
		}
	}

	logger.Info("road matrix ready",
		zap.Int("locations", len(uniq)),
		zap.Int("cached_legs", len(cached)),
		zap.Int("fetched_legs", len(fetched)),
	)
	return nil
}

// dedupePoints collapses coordinates that round to the same cache precision.
func dedupePoints(points []domain.Coordinate) []domain.Coordinate {
	seen := make(map[string]struct{}, len(points))
	uniq := make([]domain.Coordinate, 0, len(points))
	for _, p := range points {
		k := fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, p)
	}
	return uniq
}
