package services

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"

	"go.uber.org/zap"
)

// Dispatch policy deciding how pending orders are auctioned each tick.
type Strategy string

const (
	StrategyBaseline      Strategy = "baseline"
	StrategySequential    Strategy = "sequential"
	StrategyCombinatorial Strategy = "combinatorial"
	StrategyAdaptive      Strategy = "adaptive"
)

// ParseStrategy normalizes and validates a raw strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch v := Strategy(strings.ToLower(strings.TrimSpace(s))); v {
	case StrategyBaseline, StrategySequential, StrategyCombinatorial, StrategyAdaptive:
		return v, nil
	default:
		return "", fmt.Errorf("unknown dispatch strategy %q", s)
	}
}

// AllStrategies lists every policy in comparison-report order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyBaseline, StrategySequential, StrategyCombinatorial, StrategyAdaptive}
}

// DispatchEngine runs one auction round per tick, mutating driver routes
// and order statuses for every assignment it makes. It holds no state of
// its own between rounds.
type DispatchEngine struct {
	oracle ports.DistanceOracle
	cfg    config.Simulation
}

func NewDispatchEngine(oracle ports.DistanceOracle, cfg config.Simulation) *DispatchEngine {
	return &DispatchEngine{oracle: oracle, cfg: cfg}
}

// DispatchResult summarizes one auction round: which orders were placed,
// the summed marginal route distance of the winning bids, and how many
// placements needed the better-late-than-never fallback.
type DispatchResult struct {
	Assigned   []*domain.Order
	MarginalKm float64
	Fallbacks  int
}

// Dispatch auctions the pending orders under the given policy. The
// adaptive policy must be resolved with ModeForRate before calling.
func (e *DispatchEngine) Dispatch(
	strategy Strategy,
	pending []*domain.Order,
	drivers []*domain.Driver,
	now float64,
) DispatchResult {
	switch strategy {
	case StrategyBaseline:
		return e.runBaseline(pending, drivers, now)
	case StrategySequential:
		return e.runSequential(pending, drivers, now)
	case StrategyCombinatorial:
		return e.runCombinatorial(pending, drivers, now)
	default:
		return DispatchResult{}
	}
}

// ModeForRate resolves the adaptive policy for the current arrival rate:
// combinatorial under high load, sequential otherwise.
func (e *DispatchEngine) ModeForRate(rate float64) Strategy {
	if rate >= e.cfg.HighLoadThreshold {
		return StrategyCombinatorial
	}
	return StrategySequential
}

// A driver able to take more work, paired with the length of the route
// it already owes. Bids are priced against that existing commitment.
type bidder struct {
	driver     *domain.Driver
	existingKm float64
}

// eligibleBidders selects drivers that may accept orders right now: idle
// drivers whose shift has started, and accruing drivers with spare
// capacity. Delivering drivers have frozen routes and never bid.
func (e *DispatchEngine) eligibleBidders(drivers []*domain.Driver, now float64) []bidder {
	var out []bidder
	for _, d := range drivers {
		switch d.Status {
		case domain.DriverIdle:
			if d.AvailableFrom <= now {
				out = append(out, bidder{driver: d})
			}
		case domain.DriverAccruing:
			if !d.HasCapacity() {
				continue
			}
			b := bidder{driver: d}
			if len(d.AssignedOrders) > 0 {
				_, b.existingKm = FindOptimalRoute(e.oracle, d.Position, d.AssignedOrders)
			}
			out = append(out, b)
		}
	}
	return out
}

// candidateBundle routes the driver's current orders plus the new group
// from the driver's position and prices the resulting bid.
func (e *DispatchEngine) candidateBundle(b bidder, newOrders []*domain.Order, now float64) (domain.Bundle, float64) {
	all := make([]*domain.Order, 0, len(b.driver.AssignedOrders)+len(newOrders))
	all = append(all, b.driver.AssignedOrders...)
	all = append(all, newOrders...)

	if len(all) > b.driver.Capacity {
		return domain.Bundle{}, math.Inf(1)
	}

	stops, km := FindOptimalRoute(e.oracle, b.driver.Position, all)
	bundle := domain.Bundle{Orders: all, Stops: stops, DistanceKm: km}
	return bundle, TripCost(e.oracle, e.cfg, b.driver, bundle, now, b.existingKm)
}

// assignBundle commits a winning bid. The driver adopts the bundle's full
// order set and route, and newly added orders become ASSIGNED. The route
// restarts from the driver's current position, so the first stop's ETA
// includes travel plus service time like every later stop.
func (e *DispatchEngine) assignBundle(d *domain.Driver, bundle domain.Bundle, newOrders []*domain.Order, now float64) {
	d.AssignedOrders = bundle.Orders
	d.Route = bundle.Stops
	d.NextStopIndex = 0
	d.Status = domain.DriverAccruing
	if len(bundle.Stops) > 0 {
		d.NextStopETA = now + e.oracle.TravelTimeMins(d.Position, bundle.Stops[0].Coord) + e.cfg.ServiceTimeMins
	}

	ids := make([]string, 0, len(newOrders))
	for _, o := range newOrders {
		o.Status = domain.OrderAssigned
		ids = append(ids, o.ID)
	}

	logger.Debug("orders assigned",
		zap.String("driver_id", d.ID),
		zap.Strings("order_ids", ids),
		zap.Float64("route_km", bundle.DistanceKm),
		zap.String("clock", domain.FormatClock(now)),
	)
}

// fallbackAssign places an order with the nearest driver in the pool
// that still has spare capacity, ignoring the hard time bound: a late
// delivery beats an undelivered one.
func (e *DispatchEngine) fallbackAssign(o *domain.Order, pool []bidder, now float64) (float64, bool) {
	bestIdx := -1
	bestKm := math.Inf(1)
	for i := range pool {
		d := pool[i].driver
		if !d.HasCapacity() {
			continue
		}
		if km := e.oracle.DistanceKm(d.Position, o.Pickup); km < bestKm {
			bestKm = km
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return 0, false
	}

	b := pool[bestIdx]
	all := make([]*domain.Order, 0, len(b.driver.AssignedOrders)+1)
	all = append(all, b.driver.AssignedOrders...)
	all = append(all, o)

	stops, km := FindOptimalRoute(e.oracle, b.driver.Position, all)
	logger.Debug("fallback assignment",
		zap.String("driver_id", b.driver.ID),
		zap.String("order_id", o.ID),
		zap.Float64("pickup_km", bestKm),
	)
	e.assignBundle(b.driver, domain.Bundle{Orders: all, Stops: stops, DistanceKm: km}, []*domain.Order{o}, now)
	return km - b.existingKm, true
}

// Baseline: each pending order goes to the nearest idle driver, one order
// per driver, no bundling, no cost model. This is the control policy the
// auction strategies are measured against.
func (e *DispatchEngine) runBaseline(pending []*domain.Order, drivers []*domain.Driver, now float64) DispatchResult {
	var res DispatchResult

	for _, o := range pending {
		var best *domain.Driver
		bestKm := math.Inf(1)
		for _, d := range drivers {
			if d.Status != domain.DriverIdle || d.AvailableFrom > now {
				continue
			}
			if km := e.oracle.DistanceKm(d.Position, o.Pickup); km < bestKm {
				bestKm = km
				best = d
			}
		}
		if best == nil {
			continue
		}

		stops := []domain.Stop{
			{Coord: o.Pickup, Kind: domain.StopPickup, OrderID: o.ID},
			{Coord: o.Dropoff, Kind: domain.StopDropoff, OrderID: o.ID},
		}
		km := bestKm + e.oracle.DistanceKm(o.Pickup, o.Dropoff)
		bundle := domain.Bundle{Orders: []*domain.Order{o}, Stops: stops, DistanceKm: km}

		e.assignBundle(best, bundle, bundle.Orders, now)
		res.Assigned = append(res.Assigned, o)
		res.MarginalKm += km
	}

	return res
}

// Sequential: auction each pending order on its own, in arrival order.
// Every eligible driver bids its marginal cost for taking the order; the
// cheapest finite bid wins. When every bid is infinite the fallback
// places the order anyway.
func (e *DispatchEngine) runSequential(pending []*domain.Order, drivers []*domain.Driver, now float64) DispatchResult {
	var res DispatchResult

	for _, o := range pending {
		bidders := e.eligibleBidders(drivers, now)
		if len(bidders) == 0 {
			continue
		}

		winIdx := -1
		var winBundle domain.Bundle
		winCost := math.Inf(1)
		for i, b := range bidders {
			bundle, cost := e.candidateBundle(b, []*domain.Order{o}, now)
			// Strict improvement keeps ties on the earliest driver in fleet order.
			if cost < winCost {
				winIdx, winBundle, winCost = i, bundle, cost
			}
		}

		if winIdx == -1 {
			if km, ok := e.fallbackAssign(o, bidders, now); ok {
				res.Assigned = append(res.Assigned, o)
				res.MarginalKm += km
				res.Fallbacks++
			}
			continue
		}

		b := bidders[winIdx]
		e.assignBundle(b.driver, winBundle, []*domain.Order{o}, now)
		res.Assigned = append(res.Assigned, o)
		res.MarginalKm += winBundle.DistanceKm - b.existingKm
	}

	return res
}

// A priced (driver, group) pair from a combinatorial sweep.
type bidResult struct {
	bidderIdx int
	groupIdx  int
	bundle    domain.Bundle
	cost      float64
}

// Combinatorial: repeatedly auction bundles of pending orders across all
// eligible drivers and commit the single best (driver, bundle) pair,
// until either pool runs dry. Bundling lets one driver absorb several
// orders per round, which is what compresses fleet size under load.
func (e *DispatchEngine) runCombinatorial(pending []*domain.Order, drivers []*domain.Driver, now float64) DispatchResult {
	var res DispatchResult

	remaining := append([]*domain.Order(nil), pending...)

	for len(remaining) > 0 {
		bidders := e.eligibleBidders(drivers, now)
		if len(bidders) == 0 {
			break
		}

		groups := GenerateSpatialBundles(e.oracle, remaining, e.cfg)
		best, ok := e.sweepBids(bidders, groups, now)
		if !ok {
			// No driver can take any group within the hard bound:
			// place everything nearest-first and stop auctioning.
			for _, o := range remaining {
				pool := e.eligibleBidders(drivers, now)
				if km, placed := e.fallbackAssign(o, pool, now); placed {
					res.Assigned = append(res.Assigned, o)
					res.MarginalKm += km
					res.Fallbacks++
				}
			}
			break
		}

		b := bidders[best.bidderIdx]
		group := groups[best.groupIdx]
		e.assignBundle(b.driver, best.bundle, group, now)
		res.Assigned = append(res.Assigned, group...)
		res.MarginalKm += best.bundle.DistanceKm - b.existingKm

		assigned := make(map[string]struct{}, len(group))
		for _, o := range group {
			assigned[o.ID] = struct{}{}
		}
		next := remaining[:0]
		for _, o := range remaining {
			if _, taken := assigned[o.ID]; !taken {
				next = append(next, o)
			}
		}
		remaining = next
	}

	return res
}

// sweepBids prices every (driver, group) pair and returns the winning
// bid, or ok=false when every pair is rejected. Pricing fans out across
// a bounded worker pool; the reduction applies a total order over
// (cost, group size, driver ID, group key), so the winner is identical
// to a serial sweep regardless of scheduling.
func (e *DispatchEngine) sweepBids(bidders []bidder, groups [][]*domain.Order, now float64) (bidResult, bool) {
	tasks := make([]bidResult, 0, len(bidders)*len(groups))
	for bi := range bidders {
		for gi := range groups {
			tasks = append(tasks, bidResult{bidderIdx: bi, groupIdx: gi})
		}
	}
	if len(tasks) == 0 {
		return bidResult{}, false
	}

	price := func(t *bidResult) {
		t.bundle, t.cost = e.candidateBundle(bidders[t.bidderIdx], groups[t.groupIdx], now)
	}

	if workers := e.cfg.MaxParallelBids; workers > 1 && len(tasks) > 1 {
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i := range tasks {
			wg.Add(1)
			go func(t *bidResult) {
				sem <- struct{}{}
				defer wg.Done()
				defer func() { <-sem }()
				price(t)
			}(&tasks[i])
		}
		wg.Wait()
	} else {
		for i := range tasks {
			price(&tasks[i])
		}
	}

	bestIdx := -1
	for i := range tasks {
		if math.IsInf(tasks[i].cost, 1) {
			continue
		}
		if bestIdx == -1 || e.betterBid(tasks[i], tasks[bestIdx], bidders, groups) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return bidResult{}, false
	}
	return tasks[bestIdx], true
}

// betterBid reports whether a beats b: lower cost, then larger group,
// then smaller driver ID, then smaller group key.
func (e *DispatchEngine) betterBid(a, b bidResult, bidders []bidder, groups [][]*domain.Order) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if ga, gb := len(groups[a.groupIdx]), len(groups[b.groupIdx]); ga != gb {
		return ga > gb
	}
	if da, db := bidders[a.bidderIdx].driver.ID, bidders[b.bidderIdx].driver.ID; da != db {
		return da < db
	}
	return domain.OrderSetKey(groups[a.groupIdx]) < domain.OrderSetKey(groups[b.groupIdx])
}
