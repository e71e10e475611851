// Package report renders simulation results for humans (stdout comparison
// table) and machines (KPI CSV, per-order completion log).
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/services"
)

const rule = "============================================================"

// WriteHeader prints the CLI banner.
func WriteHeader(w io.Writer) {
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "  Last-Mile Delivery Dispatch Simulator")
	fmt.Fprintln(w, "  Bidding-Based Dispatch Strategy Comparison")
	fmt.Fprint(w, rule+"\n\n")
}

// displayRow is one line of the comparison table. Highlighted rows get the
// combinatorial column wrapped in ** markers.
type displayRow struct {
	label     string
	value     func(r *services.Results) string
	highlight bool
}

func displayRows() []displayRow {
	return []displayRow{
		{label: "Total Deliveries", value: func(r *services.Results) string {
			return strconv.Itoa(r.OrdersDelivered)
		}},
		{label: "Avg Delivery Time", value: func(r *services.Results) string {
			return fmt.Sprintf("%.2f min", r.AvgDeliveryTimeMin)
		}},
		{label: "Total Fleet Distance", value: func(r *services.Results) string {
			return fmt.Sprintf("%.2f km", r.TotalFleetDistanceKm)
		}},
		{label: "Late Deliveries (>60m)", value: func(r *services.Results) string {
			return strconv.Itoa(r.LateDeliveriesOver60m)
		}},
		{label: "Fleet Utilization", value: func(r *services.Results) string {
			return fmt.Sprintf("%.2f%%", r.FleetUtilizationPct)
		}},
		{label: "Drivers Used", value: func(r *services.Results) string {
			return strconv.Itoa(r.DriversUsed)
		}, highlight: true},
		{label: "Active Driver Efficiency", value: func(r *services.Results) string {
			return fmt.Sprintf("%.2f", r.ActiveDriverEfficiency)
		}, highlight: true},
	}
}

// WriteTable prints the strategy comparison table, one column per result in
// the order given, followed by the drivers-saved summary when both the
// baseline and combinatorial runs are present.
func WriteTable(w io.Writer, results []*services.Results) {
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "  FINAL RESULTS COMPARISON")
	fmt.Fprint(w, rule+"\n\n")

	header := fmt.Sprintf("| %-25s |", "Metric")
	for _, r := range results {
		header += fmt.Sprintf(" %s |", center(titleCase(string(r.Strategy)), 15))
	}
	fmt.Fprintln(w, header)

	sep := "|" + strings.Repeat("-", 27) + "|"
	for range results {
		sep += strings.Repeat("-", 17) + "|"
	}
	fmt.Fprintln(w, sep)

	for _, row := range displayRows() {
		line := fmt.Sprintf("| %-25s |", row.label)
		for _, r := range results {
			val := row.value(r)
			if row.highlight && r.Strategy == services.StrategyCombinatorial {
				line += fmt.Sprintf(" **%s** |", center(val, 13))
			} else {
				line += fmt.Sprintf(" %s |", center(val, 15))
			}
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, "\n"+rule)
	writeSavings(w, results)
	fmt.Fprint(w, rule+"\n\n")
}

// writeSavings prints how many drivers the combinatorial run saved against
// the baseline. Skipped unless both runs are present and the baseline
// actually used drivers.
func writeSavings(w io.Writer, results []*services.Results) {
	var base, comb *services.Results
	for _, r := range results {
		switch r.Strategy {
		case services.StrategyBaseline:
			base = r
		case services.StrategyCombinatorial:
			comb = r
		}
	}
	if base == nil || comb == nil || base.DriversUsed == 0 {
		return
	}

	saved := base.DriversUsed - comb.DriversUsed
	pct := float64(saved) / float64(base.DriversUsed) * 100
	fmt.Fprintf(w, "\n  Combinatorial saved %d drivers (%.1f%% reduction)\n", saved, pct)

	gain := 0.0
	if base.ActiveDriverEfficiency > 0 {
		gain = (comb.ActiveDriverEfficiency - base.ActiveDriverEfficiency) / base.ActiveDriverEfficiency * 100
	}
	fmt.Fprintf(w, "  Efficiency gain: %.1f%% more deliveries per driver\n", gain)
}

// WriteCSV exports the full KPI set to path: a header row naming each
// strategy, then one row per metric. Columns line up because every Results
// value emits the same metric keys in the same order.
func WriteCSV(path string, results []*services.Results) error {
	if len(results) == 0 {
		return fmt.Errorf("write kpi csv: no results to export")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write kpi csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	header := make([]string, 0, len(results)+1)
	header = append(header, "kpi")
	for _, r := range results {
		header = append(header, string(r.Strategy))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write kpi csv: %w", err)
	}

	columns := make([][]services.MetricRow, len(results))
	for i, r := range results {
		columns[i] = r.MetricRows()
	}
	for j, row := range columns[0] {
		record := make([]string, 0, len(results)+1)
		record = append(record, row.Key)
		for i := range results {
			record = append(record, columns[i][j].Value)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write kpi csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write kpi csv: %w", err)
	}
	return nil
}

// WriteOrdersLog exports one CSV row per delivered order across all runs,
// for spot-checking individual assignments and delivery times.
func WriteOrdersLog(path string, results []*services.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write orders log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"strategy", "order_id", "driver_id", "created", "delivered", "delivery_mins"}); err != nil {
		return fmt.Errorf("write orders log: %w", err)
	}
	for _, r := range results {
		for _, c := range r.CompletionLog {
			record := []string{
				string(r.Strategy),
				c.OrderID,
				c.DriverID,
				domain.FormatClock(c.CreatedAt),
				domain.FormatClock(c.DeliveredAt),
				fmt.Sprintf("%.1f", c.DeliveredAt-c.CreatedAt),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write orders log: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write orders log: %w", err)
	}
	return nil
}

// center pads s to width with the surplus space on the right, matching the
// table's historical alignment.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
