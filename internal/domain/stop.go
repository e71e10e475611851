package domain

import (
	"sort"
	"strings"
)

// Kind of visit a route stop represents.
type StopKind string

const (
	StopPickup  StopKind = "PICKUP"
	StopDropoff StopKind = "DROPOFF"
)

// A single visit in a driver's route: where, what kind, and for which order.
type Stop struct {
	Coord   Coordinate
	Kind    StopKind
	OrderID string
}

// A bid candidate: a set of orders together with a concrete stop sequence
// serving them and that sequence's total length. Orders may include work the
// driver already carries when the bundle extends an active route.
type Bundle struct {
	Orders     []*Order
	Stops      []Stop
	DistanceKm float64
}

// Key returns the canonical identity of the bundle's order set, independent
// of order: sorted order IDs joined with commas.
func (b Bundle) Key() string {
	ids := make([]string, len(b.Orders))
	for i, o := range b.Orders {
		ids[i] = o.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// OrderSetKey is Key over a bare order slice, used to deduplicate candidate
// groups before bundles are routed.
func OrderSetKey(orders []*Order) string {
	return Bundle{Orders: orders}.Key()
}
