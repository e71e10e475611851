package services

import (
	"math"
	"testing"

	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
)

func TestMedian(t *testing.T) {
	cases := []struct {
		sorted []float64
		want   float64
	}{
		{[]float64{5}, 5},
		{[]float64{1, 2, 3}, 2},
		{[]float64{1, 2, 3, 4}, 2.5},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := median(tc.sorted); !almostEqual(got, tc.want) {
			t.Fatalf("median(%v) = %v, want %v", tc.sorted, got, tc.want)
		}
	}
}

func TestSampleStdDev(t *testing.T) {
	if got := sampleStdDev([]float64{7}, 7); got != 0 {
		t.Fatalf("stddev of one sample = %v, want 0", got)
	}

	vals := []float64{1, 2, 3, 4}
	want := math.Sqrt(5.0 / 3.0)
	if got := sampleStdDev(vals, mean(vals)); !almostEqual(got, want) {
		t.Fatalf("stddev(%v) = %v, want %v", vals, got, want)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	cases := []struct {
		q    float64
		want float64
	}{
		{0.50, 60},
		{0.90, 100},
		{0.99, 100},
	}
	for _, tc := range cases {
		if got := percentile(sorted, tc.q); got != tc.want {
			t.Fatalf("percentile(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}

	if got := percentile([]float64{42}, 0.99); got != 42 {
		t.Fatalf("percentile of one sample = %v, want 42", got)
	}
}

// A hand-built run: three of four orders delivered by one of two drivers,
// with durations 5, 20 and 50 minutes.
func completedSimulation() *Simulation {
	orders := []*domain.Order{
		testOrder("o1", 0.01, 0.02, 1020, 30),
		testOrder("o2", 0.03, 0.04, 1020, 30),
		testOrder("o3", 0.05, 0.06, 1020, 30),
		testOrder("o4", 0.07, 0.08, 1020, 30),
	}
	drivers := []*domain.Driver{testDriver("d1", 0, 2), testDriver("d2", 0.1, 2)}

	return &Simulation{
		cfg:      config.Default(),
		strategy: StrategyCombinatorial,
		dataset:  "synthetic",
		orders:   orders,
		drivers:  drivers,

		delivered: 3,
		completions: []CompletionRecord{
			{OrderID: "o1", DriverID: "d1", CreatedAt: 1020, DeliveredAt: 1025},
			{OrderID: "o2", DriverID: "d1", CreatedAt: 1020, DeliveredAt: 1040},
			{OrderID: "o3", DriverID: "d1", CreatedAt: 1020, DeliveredAt: 1070},
		},
		activated:  map[string]struct{}{"d1": {}},
		busyTicks:  30,
		tickSlots:  100,
		odometerKm: 25,
		assignedKm: 20,
		fallbacks:  1,
		assignment: map[string]string{"o1": "d1", "o2": "d1", "o3": "d1"},
		positions:  map[string][]domain.Coordinate{"d1": {lineCoord(0)}},
	}
}

func TestBuildResultsComputesKPIs(t *testing.T) {
	res := completedSimulation().buildResults()

	if res.RunID == "" {
		t.Fatalf("missing run id")
	}
	if res.Strategy != StrategyCombinatorial || res.Dataset != "synthetic" {
		t.Fatalf("identity fields wrong: %s %s", res.Strategy, res.Dataset)
	}

	if res.OrdersDelivered != 3 || res.TotalOrders != 4 {
		t.Fatalf("delivered %d/%d, want 3/4", res.OrdersDelivered, res.TotalOrders)
	}
	if !almostEqual(res.SuccessRatePct, 75) {
		t.Fatalf("success rate = %v, want 75", res.SuccessRatePct)
	}
	if res.DriversUsed != 1 || res.DriversIdle != 1 {
		t.Fatalf("drivers used %d idle %d, want 1 and 1", res.DriversUsed, res.DriversIdle)
	}
	if !almostEqual(res.DriverUtilizationPct, 50) {
		t.Fatalf("driver utilization = %v, want 50", res.DriverUtilizationPct)
	}
	if !almostEqual(res.FleetUtilizationPct, 30) {
		t.Fatalf("fleet utilization = %v, want 30", res.FleetUtilizationPct)
	}
	if !almostEqual(res.OrdersPerDriver, 3) || !almostEqual(res.ActiveDriverEfficiency, 3) {
		t.Fatalf("orders per driver = %v efficiency = %v, want 3 and 3",
			res.OrdersPerDriver, res.ActiveDriverEfficiency)
	}

	if !almostEqual(res.AvgDeliveryTimeMin, 25) {
		t.Fatalf("avg time = %v, want 25", res.AvgDeliveryTimeMin)
	}
	if !almostEqual(res.MedianDeliveryTimeMin, 20) {
		t.Fatalf("median time = %v, want 20", res.MedianDeliveryTimeMin)
	}
	if res.MinDeliveryTimeMin != 5 || res.MaxDeliveryTimeMin != 50 {
		t.Fatalf("min %v max %v, want 5 and 50", res.MinDeliveryTimeMin, res.MaxDeliveryTimeMin)
	}
	if want := math.Sqrt(525); !almostEqual(res.StdDeliveryTimeMin, want) {
		t.Fatalf("std = %v, want %v", res.StdDeliveryTimeMin, want)
	}
	if res.P90DeliveryTimeMin != 50 || res.P95DeliveryTimeMin != 50 || res.P99DeliveryTimeMin != 50 {
		t.Fatalf("percentiles = %v %v %v, want all 50",
			res.P90DeliveryTimeMin, res.P95DeliveryTimeMin, res.P99DeliveryTimeMin)
	}

	if res.TotalFleetDistanceKm != 25 || res.AssignedDistanceKm != 20 {
		t.Fatalf("fleet km %v assigned km %v, want 25 and 20",
			res.TotalFleetDistanceKm, res.AssignedDistanceKm)
	}
	if !almostEqual(res.AvgDistancePerOrderKm, 25.0/3.0) {
		t.Fatalf("avg km per order = %v, want %v", res.AvgDistancePerOrderKm, 25.0/3.0)
	}
	if !almostEqual(res.DistancePerDriverKm, 25) {
		t.Fatalf("km per driver = %v, want 25", res.DistancePerDriverKm)
	}

	// Durations 5, 20, 50 against a 30 minute on-time threshold.
	if res.OnTimeDeliveries != 2 || res.EarlyDeliveriesUnder15m != 1 {
		t.Fatalf("on time %d early %d, want 2 and 1",
			res.OnTimeDeliveries, res.EarlyDeliveriesUnder15m)
	}
	if res.LateDeliveriesOver30m != 1 || res.LateDeliveriesOver45m != 1 || res.LateDeliveriesOver60m != 0 {
		t.Fatalf("late buckets = %d %d %d, want 1 1 0",
			res.LateDeliveriesOver30m, res.LateDeliveriesOver45m, res.LateDeliveriesOver60m)
	}
	if !almostEqual(res.OnTimeRatePct, 200.0/3.0) {
		t.Fatalf("on time rate = %v, want %v", res.OnTimeRatePct, 200.0/3.0)
	}
	if !almostEqual(res.LateRate45mPct, 100.0/3.0) || res.LateRate60mPct != 0 {
		t.Fatalf("late rates = %v %v", res.LateRate45mPct, res.LateRate60mPct)
	}

	// 25 min per order over 25/3 km per order.
	if !almostEqual(res.TimeEfficiencyRatio, 3) {
		t.Fatalf("time efficiency = %v, want 3", res.TimeEfficiencyRatio)
	}
	if res.FallbackAssignments != 1 {
		t.Fatalf("fallbacks = %d, want 1", res.FallbackAssignments)
	}
}

func TestBuildResultsZeroDeliveries(t *testing.T) {
	s := completedSimulation()
	s.delivered = 0
	s.completions = nil

	res := s.buildResults()

	if res.OrdersDelivered != 0 || res.TotalOrders != 4 {
		t.Fatalf("delivered %d/%d, want 0/4", res.OrdersDelivered, res.TotalOrders)
	}
	if res.DriversIdle != 2 || res.DriversUsed != 0 {
		t.Fatalf("idle %d used %d, want the whole fleet idle", res.DriversIdle, res.DriversUsed)
	}
	if res.AvgDeliveryTimeMin != 0 || res.TotalFleetDistanceKm != 0 {
		t.Fatalf("zero-delivery run carries KPIs: %+v", res)
	}
	if res.AssignmentMap != nil || res.RouteLog != nil || res.CompletionLog != nil {
		t.Fatalf("zero-delivery run carries logs")
	}
}

func TestMetricRowsSchemaAndFormat(t *testing.T) {
	res := completedSimulation().buildResults()
	rows := res.MetricRows()

	wantKeys := []string{
		"orders_delivered",
		"total_orders",
		"delivery_success_rate_pct",
		"drivers_used",
		"total_drivers",
		"drivers_idle",
		"driver_utilization_rate_pct",
		"orders_per_driver",
		"fleet_utilization_pct",
		"avg_delivery_time_min",
		"median_delivery_time_min",
		"min_delivery_time_min",
		"max_delivery_time_min",
		"std_delivery_time_min",
		"p90_delivery_time_min",
		"p95_delivery_time_min",
		"p99_delivery_time_min",
		"total_fleet_distance_km",
		"assigned_distance_km",
		"avg_distance_per_order_km",
		"distance_per_driver_km",
		"on_time_deliveries",
		"on_time_rate_pct",
		"early_deliveries_under_15m",
		"late_deliveries_over_30m",
		"late_deliveries_over_45m",
		"late_deliveries_over_60m",
		"late_rate_45m_pct",
		"late_rate_60m_pct",
		"time_efficiency_ratio",
		"active_driver_efficiency",
		"fallback_assignments",
	}

	if len(rows) != len(wantKeys) {
		t.Fatalf("expected %d metric rows, got %d", len(wantKeys), len(rows))
	}
	for i, want := range wantKeys {
		if rows[i].Key != want {
			t.Fatalf("row %d key = %q, want %q", i, rows[i].Key, want)
		}
	}

	byKey := map[string]string{}
	for _, r := range rows {
		byKey[r.Key] = r.Value
	}
	if byKey["orders_delivered"] != "3" {
		t.Fatalf("orders_delivered = %q, want 3", byKey["orders_delivered"])
	}
	if byKey["avg_delivery_time_min"] != "25.00" {
		t.Fatalf("avg_delivery_time_min = %q, want 25.00", byKey["avg_delivery_time_min"])
	}
	if byKey["delivery_success_rate_pct"] != "75.00" {
		t.Fatalf("delivery_success_rate_pct = %q, want 75.00", byKey["delivery_success_rate_pct"])
	}
	if byKey["time_efficiency_ratio"] != "3.0000" {
		t.Fatalf("time_efficiency_ratio = %q, want 3.0000", byKey["time_efficiency_ratio"])
	}
	if byKey["fallback_assignments"] != "1" {
		t.Fatalf("fallback_assignments = %q, want 1", byKey["fallback_assignments"])
	}
}
