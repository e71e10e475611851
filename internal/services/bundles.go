package services

import (
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

// maxSplitDepth bounds the recursive cut so co-located pickups cannot
// loop forever.
const maxSplitDepth = 5

// Group pending orders into candidate bundles by pickup proximity.
//
// The generator runs three passes over a pairwise pickup-distance matrix
// computed once per call:
//
//  1. A recursive greedy cut partitions the order set; groups no larger
//     than MAX_BUNDLE_SIZE are emitted, larger ones split again.
//  2. Every pair of pickups within MAX_PICKUP_DISTANCE_KM is emitted,
//     recovering nearby pairs the cut may have separated.
//  3. Every singleton is emitted, so each order appears in at least one
//     group even when no bundle partner exists.
//
// Duplicates (same unordered order set) are dropped keeping the first
// occurrence, so output order is deterministic for a given input order.
func GenerateSpatialBundles(
	oracle ports.DistanceOracle,
	pending []*domain.Order,
	cfg config.Simulation,
) [][]*domain.Order {
	if len(pending) == 0 {
		return nil
	}

	maxSize := cfg.MaxBundleSize
	if maxSize < 1 {
		maxSize = 1
	}

	n := len(pending)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			dist[i][j] = oracle.DistanceKm(pending[i].Pickup, pending[j].Pickup)
		}
	}

	var groups [][]int

	var split func(group []int, depth int)
	split = func(group []int, depth int) {
		if len(group) == 1 {
			groups = append(groups, group)
			return
		}
		if len(group) <= maxSize {
			groups = append(groups, group)
		}

		left, right := greedyMaxCut(group, dist)

		for _, half := range [][]int{left, right} {
			switch {
			case len(half) > 1 && len(half) <= maxSize:
				groups = append(groups, half)
			case len(half) > maxSize && depth < maxSplitDepth:
				split(half, depth+1)
			}
		}
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	split(all, 0)

	// Nearby pickups pair up even when the cut separated them.
	if maxSize >= 2 {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if dist[i][j] <= cfg.MaxPickupDistanceKm {
					groups = append(groups, []int{i, j})
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		groups = append(groups, []int{i})
	}

	seen := make(map[string]struct{}, len(groups))
	out := make([][]*domain.Order, 0, len(groups))
	for _, g := range groups {
		orders := make([]*domain.Order, len(g))
		for k, idx := range g {
			orders[k] = pending[idx]
		}

		key := domain.OrderSetKey(orders)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, orders)
	}

	return out
}

// greedyMaxCut partitions a group into two spatially separated halves.
// Orders are walked in input order; each joins the side whose members sit
// farther from it in total. The first order and ties go left, which keeps
// the cut deterministic.
func greedyMaxCut(group []int, dist [][]float64) (left, right []int) {
	for _, i := range group {
		sumL, sumR := 0.0, 0.0
		for _, j := range left {
			sumL += dist[i][j]
		}
		for _, j := range right {
			sumR += dist[i][j]
		}

		if sumL >= sumR {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
