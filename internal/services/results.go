package services

import (
	"fmt"
	"math"
	"sort"

	"dispatch-sim/internal/domain"

	"github.com/google/uuid"
)

// CompletionRecord logs one delivered order for per-order reporting.
type CompletionRecord struct {
	OrderID     string
	DriverID    string
	CreatedAt   float64
	DeliveredAt float64
}

// Results is the KPI snapshot of one finished run.
type Results struct {
	RunID    string
	Strategy Strategy
	Dataset  string

	OrdersDelivered      int
	TotalOrders          int
	SuccessRatePct       float64
	DriversUsed          int
	TotalDrivers         int
	DriversIdle          int
	DriverUtilizationPct float64
	OrdersPerDriver      float64
	FleetUtilizationPct  float64

	AvgDeliveryTimeMin    float64
	MedianDeliveryTimeMin float64
	MinDeliveryTimeMin    float64
	MaxDeliveryTimeMin    float64
	StdDeliveryTimeMin    float64
	P90DeliveryTimeMin    float64
	P95DeliveryTimeMin    float64
	P99DeliveryTimeMin    float64

	TotalFleetDistanceKm  float64
	AssignedDistanceKm    float64
	AvgDistancePerOrderKm float64
	DistancePerDriverKm   float64

	OnTimeDeliveries        int
	OnTimeRatePct           float64
	EarlyDeliveriesUnder15m int
	LateDeliveriesOver30m   int
	LateDeliveriesOver45m   int
	LateDeliveriesOver60m   int
	LateRate45mPct          float64
	LateRate60mPct          float64

	TimeEfficiencyRatio    float64
	ActiveDriverEfficiency float64
	FallbackAssignments    int

	AssignmentMap map[string]string
	RouteLog      map[string][]domain.Coordinate
	CompletionLog []CompletionRecord
}

// buildResults computes the snapshot from the accumulated run state.
// Runs that delivered nothing return a zeroed snapshot carrying only the
// identity fields and pool sizes.
func (s *Simulation) buildResults() *Results {
	r := &Results{
		RunID:        uuid.NewString(),
		Strategy:     s.strategy,
		Dataset:      s.dataset,
		TotalOrders:  len(s.orders),
		TotalDrivers: len(s.drivers),
		DriversIdle:  len(s.drivers),
	}

	if s.delivered == 0 {
		return r
	}

	times := make([]float64, 0, len(s.completions))
	var onTime, early, late30, late45, late60 int
	for _, c := range s.completions {
		dur := c.DeliveredAt - c.CreatedAt
		times = append(times, dur)

		if dur <= s.cfg.OnTimeThresholdMins {
			onTime++
		}
		if dur < 15 {
			early++
		}
		if dur > 30 {
			late30++
		}
		if dur > 45 {
			late45++
		}
		if dur > 60 {
			late60++
		}
	}
	sort.Float64s(times)

	delivered := float64(s.delivered)
	driversUsed := len(s.activated)

	r.OrdersDelivered = s.delivered
	r.SuccessRatePct = delivered / float64(len(s.orders)) * 100
	r.DriversUsed = driversUsed
	r.DriversIdle = len(s.drivers) - driversUsed
	if len(s.drivers) > 0 {
		r.DriverUtilizationPct = float64(driversUsed) / float64(len(s.drivers)) * 100
	}
	if s.tickSlots > 0 {
		r.FleetUtilizationPct = float64(s.busyTicks) / float64(s.tickSlots) * 100
	}

	r.AvgDeliveryTimeMin = mean(times)
	r.MedianDeliveryTimeMin = median(times)
	r.MinDeliveryTimeMin = times[0]
	r.MaxDeliveryTimeMin = times[len(times)-1]
	r.StdDeliveryTimeMin = sampleStdDev(times, r.AvgDeliveryTimeMin)
	r.P90DeliveryTimeMin = percentile(times, 0.90)
	r.P95DeliveryTimeMin = percentile(times, 0.95)
	r.P99DeliveryTimeMin = percentile(times, 0.99)

	r.TotalFleetDistanceKm = s.odometerKm
	r.AssignedDistanceKm = s.assignedKm
	r.AvgDistancePerOrderKm = s.odometerKm / delivered
	if driversUsed > 0 {
		r.OrdersPerDriver = delivered / float64(driversUsed)
		r.DistancePerDriverKm = s.odometerKm / float64(driversUsed)
		r.ActiveDriverEfficiency = delivered / float64(driversUsed)
	}

	r.OnTimeDeliveries = onTime
	r.OnTimeRatePct = float64(onTime) / delivered * 100
	r.EarlyDeliveriesUnder15m = early
	r.LateDeliveriesOver30m = late30
	r.LateDeliveriesOver45m = late45
	r.LateDeliveriesOver60m = late60
	r.LateRate45mPct = float64(late45) / delivered * 100
	r.LateRate60mPct = float64(late60) / delivered * 100

	if r.AvgDistancePerOrderKm > 0 {
		r.TimeEfficiencyRatio = r.AvgDeliveryTimeMin / r.AvgDistancePerOrderKm
	}
	r.FallbackAssignments = s.fallbacks

	r.AssignmentMap = s.assignment
	r.RouteLog = s.positions
	r.CompletionLog = s.completions

	return r
}

// MetricRow is one formatted KPI for tabular and CSV output.
type MetricRow struct {
	Key   string
	Value string
}

// MetricRows lists every KPI in export order. Counts render as integers,
// rates and distances with two decimals, the time efficiency ratio with
// four.
func (r *Results) MetricRows() []MetricRow {
	count := func(v int) string { return fmt.Sprintf("%d", v) }
	f2 := func(v float64) string { return fmt.Sprintf("%.2f", v) }

	return []MetricRow{
		{"orders_delivered", count(r.OrdersDelivered)},
		{"total_orders", count(r.TotalOrders)},
		{"delivery_success_rate_pct", f2(r.SuccessRatePct)},
		{"drivers_used", count(r.DriversUsed)},
		{"total_drivers", count(r.TotalDrivers)},
		{"drivers_idle", count(r.DriversIdle)},
		{"driver_utilization_rate_pct", f2(r.DriverUtilizationPct)},
		{"orders_per_driver", f2(r.OrdersPerDriver)},
		{"fleet_utilization_pct", f2(r.FleetUtilizationPct)},
		{"avg_delivery_time_min", f2(r.AvgDeliveryTimeMin)},
		{"median_delivery_time_min", f2(r.MedianDeliveryTimeMin)},
		{"min_delivery_time_min", f2(r.MinDeliveryTimeMin)},
		{"max_delivery_time_min", f2(r.MaxDeliveryTimeMin)},
		{"std_delivery_time_min", f2(r.StdDeliveryTimeMin)},
		{"p90_delivery_time_min", f2(r.P90DeliveryTimeMin)},
		{"p95_delivery_time_min", f2(r.P95DeliveryTimeMin)},
		{"p99_delivery_time_min", f2(r.P99DeliveryTimeMin)},
		{"total_fleet_distance_km", f2(r.TotalFleetDistanceKm)},
		{"assigned_distance_km", f2(r.AssignedDistanceKm)},
		{"avg_distance_per_order_km", f2(r.AvgDistancePerOrderKm)},
		{"distance_per_driver_km", f2(r.DistancePerDriverKm)},
		{"on_time_deliveries", count(r.OnTimeDeliveries)},
		{"on_time_rate_pct", f2(r.OnTimeRatePct)},
		{"early_deliveries_under_15m", count(r.EarlyDeliveriesUnder15m)},
		{"late_deliveries_over_30m", count(r.LateDeliveriesOver30m)},
		{"late_deliveries_over_45m", count(r.LateDeliveriesOver45m)},
		{"late_deliveries_over_60m", count(r.LateDeliveriesOver60m)},
		{"late_rate_45m_pct", f2(r.LateRate45mPct)},
		{"late_rate_60m_pct", f2(r.LateRate60mPct)},
		{"time_efficiency_ratio", fmt.Sprintf("%.4f", r.TimeEfficiencyRatio)},
		{"active_driver_efficiency", f2(r.ActiveDriverEfficiency)},
		{"fallback_assignments", count(r.FallbackAssignments)},
	}
}

func mean(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sampleStdDev is the n-1 deviation; 0 when fewer than two samples.
func sampleStdDev(sorted []float64, mean float64) float64 {
	n := len(sorted)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(n-1))
}

// percentile indexes the sorted sample at int(n*q), capped at the last
// element.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
