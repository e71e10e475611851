package services

import (
	"math"
	"testing"

	"dispatch-sim/internal/adapters/distance"
	"dispatch-sim/internal/domain"
)

type stopSpec struct {
	kind    domain.StopKind
	orderID string
}

func assertStopSequence(t *testing.T, got []domain.Stop, want []stopSpec) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d stops, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Kind != w.kind || got[i].OrderID != w.orderID {
			t.Fatalf("stop %d = %s %s, want %s %s",
				i, got[i].Kind, got[i].OrderID, w.kind, w.orderID)
		}
	}
}

func TestFindOptimalRouteEmptyOrders(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)

	stops, dist := FindOptimalRoute(oracle, lineCoord(0), nil)
	if stops != nil {
		t.Fatalf("expected no route, got %d stops", len(stops))
	}
	if !math.IsInf(dist, 1) {
		t.Fatalf("expected +Inf distance, got %v", dist)
	}
}

func TestFindOptimalRouteSingleOrder(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	o := testOrder("o1", 0.01, 0.02, 1020, 30)

	stops, dist := FindOptimalRoute(oracle, lineCoord(0), []*domain.Order{o})

	assertStopSequence(t, stops, []stopSpec{
		{domain.StopPickup, "o1"},
		{domain.StopDropoff, "o1"},
	})

	want := lineKm(0, 0.01) + lineKm(0.01, 0.02)
	if !almostEqual(dist, want) {
		t.Fatalf("distance = %v, want %v", dist, want)
	}
}

func TestFindOptimalRouteTwoOrdersOnALine(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)

	// Points sit on one line east of the start: the only monotone walk
	// respecting pickup-before-dropoff is P1 P2 D2 D1, and any other
	// valid sequence backtracks.
	o1 := testOrder("o1", 0.01, 0.04, 1020, 30)
	o2 := testOrder("o2", 0.02, 0.03, 1020, 30)

	stops, dist := FindOptimalRoute(oracle, lineCoord(0), []*domain.Order{o1, o2})

	assertStopSequence(t, stops, []stopSpec{
		{domain.StopPickup, "o1"},
		{domain.StopPickup, "o2"},
		{domain.StopDropoff, "o2"},
		{domain.StopDropoff, "o1"},
	})

	want := lineKm(0, 0.01) + lineKm(0.01, 0.02) + lineKm(0.02, 0.03) + lineKm(0.03, 0.04)
	if !almostEqual(dist, want) {
		t.Fatalf("distance = %v, want %v", dist, want)
	}
}

func TestFindOptimalRoutePickedUpOrderGetsDropoffOnly(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)

	o := testOrder("o1", 0.01, 0.02, 1020, 30)
	o.Status = domain.OrderPickedUp

	stops, dist := FindOptimalRoute(oracle, lineCoord(0), []*domain.Order{o})

	assertStopSequence(t, stops, []stopSpec{
		{domain.StopDropoff, "o1"},
	})
	if want := lineKm(0, 0.02); !almostEqual(dist, want) {
		t.Fatalf("distance = %v, want %v", dist, want)
	}
}

func TestFindOptimalRouteMixedCarriedAndNewOrders(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)

	carried := testOrder("carried", 0.005, 0.03, 1020, 30)
	carried.Status = domain.OrderPickedUp
	fresh := testOrder("fresh", 0.01, 0.02, 1020, 30)

	stops, dist := FindOptimalRoute(oracle, lineCoord(0), []*domain.Order{carried, fresh})

	// The carried order contributes no pickup, so the shortest walk
	// serves the fresh order on the way out to the carried dropoff.
	assertStopSequence(t, stops, []stopSpec{
		{domain.StopPickup, "fresh"},
		{domain.StopDropoff, "fresh"},
		{domain.StopDropoff, "carried"},
	})

	want := lineKm(0, 0.01) + lineKm(0.01, 0.02) + lineKm(0.02, 0.03)
	if !almostEqual(dist, want) {
		t.Fatalf("distance = %v, want %v", dist, want)
	}
}

func TestFindOptimalRouteTiesKeepFirstPermutation(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)

	// Identical pickup and dropoff locations make several sequences
	// equally short; the search must settle on the same one every time.
	o1 := testOrder("o1", 0.01, 0.02, 1020, 30)
	o2 := testOrder("o2", 0.01, 0.02, 1020, 30)

	for run := 0; run < 5; run++ {
		stops, _ := FindOptimalRoute(oracle, lineCoord(0), []*domain.Order{o1, o2})
		assertStopSequence(t, stops, []stopSpec{
			{domain.StopPickup, "o1"},
			{domain.StopPickup, "o2"},
			{domain.StopDropoff, "o1"},
			{domain.StopDropoff, "o2"},
		})
	}
}
