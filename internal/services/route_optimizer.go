package services

import (
	"math"

	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

// Find the shortest stop sequence serving the given orders from a start
// position.
//
// Every order contributes a pickup and a dropoff stop, except orders
// already picked up, which contribute only the dropoff. The search
// enumerates stop permutations exhaustively and keeps the shortest
// sequence that never visits a dropoff before its pickup. Bundles stay
// small (capacity-bounded), so the factorial search is cheap and exact;
// no VRP heuristics are attempted.
//
// Ties resolve to the earliest permutation in generation order, which is
// deterministic for a fixed input order. An empty order set returns
// (nil, +Inf) so callers can treat "nothing to route" as an unusable bid.
func FindOptimalRoute(
	oracle ports.DistanceOracle,
	start domain.Coordinate,
	orders []*domain.Order,
) ([]domain.Stop, float64) {
	if len(orders) == 0 {
		return nil, math.Inf(1)
	}

	onBoard := make(map[string]bool, len(orders))
	stops := make([]domain.Stop, 0, 2*len(orders))
	for _, o := range orders {
		if o.Status == domain.OrderPickedUp {
			onBoard[o.ID] = true
		} else {
			stops = append(stops, domain.Stop{Coord: o.Pickup, Kind: domain.StopPickup, OrderID: o.ID})
		}
		stops = append(stops, domain.Stop{Coord: o.Dropoff, Kind: domain.StopDropoff, OrderID: o.ID})
	}

	var (
		best     []domain.Stop
		bestDist = math.Inf(1)
		current  = make([]domain.Stop, 0, len(stops))
		used     = make([]bool, len(stops))
	)

	var permute func()
	permute = func() {
		if len(current) == len(stops) {
			if !precedenceValid(current, onBoard) {
				return
			}
			if dist := routeLength(oracle, start, current); dist < bestDist {
				bestDist = dist
				best = append([]domain.Stop(nil), current...)
			}
			return
		}

		for i := range stops {
			if used[i] {
				continue
			}
			used[i] = true
			current = append(current, stops[i])
			permute()
			current = current[:len(current)-1]
			used[i] = false
		}
	}
	permute()

	return best, bestDist
}

// precedenceValid reports whether every dropoff in the sequence comes
// after its pickup, treating orders in onBoard as already collected.
func precedenceValid(stops []domain.Stop, onBoard map[string]bool) bool {
	carried := make(map[string]bool, len(onBoard))
	for id := range onBoard {
		carried[id] = true
	}

	for _, s := range stops {
		switch s.Kind {
		case domain.StopPickup:
			carried[s.OrderID] = true
		case domain.StopDropoff:
			if !carried[s.OrderID] {
				return false
			}
		}
	}
	return true
}

// routeLength sums oracle distances from start through every stop in order.
func routeLength(oracle ports.DistanceOracle, start domain.Coordinate, stops []domain.Stop) float64 {
	total := 0.0
	at := start
	for _, s := range stops {
		total += oracle.DistanceKm(at, s.Coord)
		at = s.Coord
	}
	return total
}
