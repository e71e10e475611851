package services

import (
	"math"

	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

// Price a driver's bid for serving a bundle from its current position.
//
// The bid is the marginal cost of taking the work: extra kilometers over
// the driver's existing commitment plus weighted projected lateness,
// scaled by the vehicle class and discounted per extra bundled order.
// +Inf marks a hard rejection: the bundle exceeds capacity, or some
// delivery in it would breach the hard time bound.
//
// bundle carries the full candidate order set (existing work included
// when extending an active route); existingKm is the length of the route
// the driver would run without the new work, so the distance term prices
// only the increment.
func TripCost(
	oracle ports.DistanceOracle,
	cfg config.Simulation,
	driver *domain.Driver,
	bundle domain.Bundle,
	now float64,
	existingKm float64,
) float64 {
	if len(bundle.Orders) == 0 || len(bundle.Orders) > driver.Capacity {
		return math.Inf(1)
	}

	byID := make(map[string]*domain.Order, len(bundle.Orders))
	for _, o := range bundle.Orders {
		byID[o.ID] = o
	}

	// Walk the route the way the simulator will: each stop's arrival
	// includes the travel to it plus the service time spent there.
	t := now
	at := driver.Position
	totalDelay := 0.0
	for _, s := range bundle.Stops {
		t += oracle.TravelTimeMins(at, s.Coord) + cfg.ServiceTimeMins
		at = s.Coord

		if s.Kind != domain.StopDropoff {
			continue
		}
		o, ok := byID[s.OrderID]
		if !ok {
			return math.Inf(1)
		}

		elapsed := t - o.CreatedAt
		if elapsed > cfg.MaxDeliveryTimeMins {
			return math.Inf(1)
		}
		if delay := elapsed - o.EstimatedMins; delay > 0 {
			totalDelay += math.Min(delay, cfg.DelayCapMins)
		}
	}

	marginalKm := bundle.DistanceKm - existingKm
	cost := (cfg.WDistance*marginalKm + cfg.WDelay*totalDelay) * cfg.VehiclePenalty(driver.Vehicle)
	cost /= float64(len(bundle.Orders))

	if n := len(bundle.Orders); n > 1 {
		discount := 1.0 - cfg.BundleDiscountPerOrder*float64(n-1)
		if discount < 0 {
			discount = 0
		}
		cost *= discount
	}

	return cost
}
