package services

import (
	"testing"

	"dispatch-sim/internal/adapters/distance"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
)

func groupKeys(groups [][]*domain.Order) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = domain.OrderSetKey(g)
	}
	return keys
}

func assertUniqueKeys(t *testing.T, groups [][]*domain.Order) {
	t.Helper()
	seen := map[string]struct{}{}
	for _, k := range groupKeys(groups) {
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate group %q", k)
		}
		seen[k] = struct{}{}
	}
}

func assertCoversEveryOrder(t *testing.T, groups [][]*domain.Order, orders []*domain.Order) {
	t.Helper()
	covered := map[string]bool{}
	for _, g := range groups {
		for _, o := range g {
			covered[o.ID] = true
		}
	}
	for _, o := range orders {
		if !covered[o.ID] {
			t.Fatalf("order %s appears in no group", o.ID)
		}
	}
}

func TestGenerateSpatialBundlesEmpty(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	if groups := GenerateSpatialBundles(oracle, nil, config.Default()); groups != nil {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestGenerateSpatialBundlesSingleOrder(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	o := testOrder("o1", 0.01, 0.02, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{o}, config.Default())
	if len(groups) != 1 || len(groups[0]) != 1 || groups[0][0].ID != "o1" {
		t.Fatalf("expected the single order as its own group, got %v", groupKeys(groups))
	}
}

func TestGenerateSpatialBundlesPairAndSingles(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	// Pickups about 1.1 km apart, well inside the 5 km pairing radius.
	o1 := testOrder("o1", 0.01, 0.05, 1020, 30)
	o2 := testOrder("o2", 0.02, 0.06, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{o1, o2}, config.Default())

	if len(groups) != 3 {
		t.Fatalf("expected pair plus two singles, got %v", groupKeys(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected the pair first, got %v", groupKeys(groups))
	}
	assertUniqueKeys(t, groups)
	assertCoversEveryOrder(t, groups, []*domain.Order{o1, o2})
}

func TestGenerateSpatialBundlesWholeSetIgnoresPairRadius(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	// Pickups about 8.9 km apart: the proximity pass skips them, but a
	// set already inside the size bound is still offered whole. Whether
	// such a bundle is usable is the cost function's call, not the
	// generator's.
	o1 := testOrder("o1", 0.0, 0.01, 1020, 30)
	o2 := testOrder("o2", 0.08, 0.09, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{o1, o2}, config.Default())

	if len(groups) != 3 {
		t.Fatalf("expected pair plus two singles, got %v", groupKeys(groups))
	}
	if key := domain.OrderSetKey(groups[0]); key != "o1,o2" {
		t.Fatalf("expected the whole set first, got %q", key)
	}
}

func TestGenerateSpatialBundlesProximityPairs(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	// a and b pick up close together; c is 20+ km away from both.
	a := testOrder("a", 0.01, 0.05, 1020, 30)
	b := testOrder("b", 0.02, 0.06, 1020, 30)
	c := testOrder("c", 0.20, 0.25, 1020, 30)
	orders := []*domain.Order{a, b, c}

	groups := GenerateSpatialBundles(oracle, orders, config.Default())

	want := map[string]bool{"a,b": true, "a": true, "b": true, "c": true}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %v", len(want), groupKeys(groups))
	}
	for _, k := range groupKeys(groups) {
		if !want[k] {
			t.Fatalf("unexpected group %q in %v", k, groupKeys(groups))
		}
	}
	assertCoversEveryOrder(t, groups, orders)
}

func TestGenerateSpatialBundlesRespectsSizeBound(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	a := testOrder("a", 0.01, 0.05, 1020, 30)
	b := testOrder("b", 0.02, 0.06, 1020, 30)
	c := testOrder("c", 0.03, 0.07, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{a, b, c}, config.Default())
	for _, g := range groups {
		if len(g) > 2 {
			t.Fatalf("group %q exceeds the size bound", domain.OrderSetKey(g))
		}
	}
}

func TestGenerateSpatialBundlesDeduplicatesColocatedPair(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	// Identical pickups make the split pass and the proximity pass emit
	// the same pair; it must come out once.
	o1 := testOrder("o1", 0.01, 0.05, 1020, 30)
	o2 := testOrder("o2", 0.01, 0.06, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{o1, o2}, config.Default())
	if len(groups) != 3 {
		t.Fatalf("expected 3 unique groups, got %v", groupKeys(groups))
	}
	assertUniqueKeys(t, groups)
}

func TestGenerateSpatialBundlesMaxSizeOneYieldsSingles(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	cfg := config.Default()
	cfg.MaxBundleSize = 1

	o1 := testOrder("o1", 0.01, 0.05, 1020, 30)
	o2 := testOrder("o2", 0.02, 0.06, 1020, 30)

	groups := GenerateSpatialBundles(oracle, []*domain.Order{o1, o2}, cfg)
	if len(groups) != 2 {
		t.Fatalf("expected two singles, got %v", groupKeys(groups))
	}
	for _, g := range groups {
		if len(g) != 1 {
			t.Fatalf("expected only singles, got %v", groupKeys(groups))
		}
	}
}

func TestGenerateSpatialBundlesFarOrdersStaySingles(t *testing.T) {
	oracle := distance.NewHaversineOracle(35)
	var orders []*domain.Order
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		orders = append(orders, testOrder(id, float64(i)*0.2, float64(i)*0.2+0.01, 1020, 30))
	}

	groups := GenerateSpatialBundles(oracle, orders, config.Default())
	if len(groups) != 5 {
		t.Fatalf("expected 5 singles, got %v", groupKeys(groups))
	}
	for _, g := range groups {
		if len(g) != 1 {
			t.Fatalf("expected only singles, got %v", groupKeys(groups))
		}
	}
	assertCoversEveryOrder(t, groups, orders)
}
