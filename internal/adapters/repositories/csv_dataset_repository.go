package repositories

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dispatch-sim/internal/domain"
)

const (
	ordersSuffix   = "_orders.csv"
	couriersSuffix = "_couriers.csv"
)

// CSVDatasetRepository discovers datasets as <name>_orders.csv /
// <name>_couriers.csv pairs under a single data directory.
type CSVDatasetRepository struct {
	Dir string
}

func NewCSVDatasetRepository(dir string) *CSVDatasetRepository {
	return &CSVDatasetRepository{Dir: dir}
}

// ListDatasets scans the data directory for complete CSV pairs. Orphan
// halves (an orders file without its couriers file) are skipped.
func (r *CSVDatasetRepository) ListDatasets(ctx context.Context) ([]domain.DatasetInfo, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, &domain.InputError{File: r.Dir, Msg: fmt.Sprintf("read data directory: %v", err)}
	}

	infos := make([]domain.DatasetInfo, 0, len(entries)/2)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ordersSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ordersSuffix)
		ordersPath := filepath.Join(r.Dir, e.Name())
		couriersPath := filepath.Join(r.Dir, name+couriersSuffix)
		if _, err := os.Stat(couriersPath); err != nil {
			continue
		}

		orderCount, err := countDataRows(ordersPath)
		if err != nil {
			return nil, err
		}
		driverCount, err := countDataRows(couriersPath)
		if err != nil {
			return nil, err
		}

		infos = append(infos, domain.DatasetInfo{
			Name:         name,
			OrdersPath:   ordersPath,
			CouriersPath: couriersPath,
			OrderCount:   orderCount,
			DriverCount:  driverCount,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// LoadDataset parses the CSV pair for name into fresh domain state. Orders
// come back sorted by creation time so the simulator can inject them with a
// single cursor.
func (r *CSVDatasetRepository) LoadDataset(ctx context.Context, name string) (*domain.Dataset, error) {
	if strings.ContainsAny(name, `/\`) || name == "" {
		return nil, &domain.InputError{File: name, Msg: "invalid dataset name"}
	}

	ordersPath := filepath.Join(r.Dir, name+ordersSuffix)
	couriersPath := filepath.Join(r.Dir, name+couriersSuffix)
	for _, p := range []string{ordersPath, couriersPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, &domain.InputError{File: p, Msg: fmt.Sprintf("dataset %q not found", name)}
		}
	}

	orders, err := parseOrdersCSV(ordersPath)
	if err != nil {
		return nil, err
	}
	drivers, err := parseCouriersCSV(couriersPath)
	if err != nil {
		return nil, err
	}

	return &domain.Dataset{Name: name, Orders: orders, Drivers: drivers}, nil
}

// headerIndex maps lowercased column names to their position.
type headerIndex map[string]int

func indexHeader(record []string) headerIndex {
	idx := make(headerIndex, len(record))
	for i, name := range record {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

// lookup resolves a column by canonical name first, then by the aliases
// older dataset exports used.
func (h headerIndex) lookup(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func (h headerIndex) require(file string, names ...string) (int, error) {
	i, ok := h.lookup(names...)
	if !ok {
		return 0, &domain.InputError{File: file, Field: names[0], Msg: "missing column"}
	}
	return i, nil
}

func parseOrdersCSV(path string) ([]*domain.Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.InputError{File: path, Msg: fmt.Sprintf("open orders file: %v", err)}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, &domain.InputError{File: path, Msg: "empty or unreadable orders file"}
	}

	cols := indexHeader(header)
	idCol, err := cols.require(path, "order_id")
	if err != nil {
		return nil, err
	}
	pLatCol, err := cols.require(path, "pickup_lat")
	if err != nil {
		return nil, err
	}
	pLngCol, err := cols.require(path, "pickup_lng")
	if err != nil {
		return nil, err
	}
	dLatCol, err := cols.require(path, "dropoff_lat")
	if err != nil {
		return nil, err
	}
	dLngCol, err := cols.require(path, "dropoff_lng")
	if err != nil {
		return nil, err
	}
	createdCol, err := cols.require(path, "created_time")
	if err != nil {
		return nil, err
	}
	estCol, err := cols.require(path, "estimated_delivery_time_min")
	if err != nil {
		return nil, err
	}
	deadlineCol, hasDeadline := cols.lookup("deadline")

	var orders []*domain.Order
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.InputError{File: path, Row: row, Msg: err.Error()}
		}

		id := strings.TrimSpace(record[idCol])
		if id == "" {
			return nil, &domain.InputError{File: path, Row: row, Field: "order_id", Msg: "empty value"}
		}

		pickup, err := parseCoordinate(path, row, record, pLatCol, pLngCol, "pickup_lat", "pickup_lng")
		if err != nil {
			return nil, err
		}
		dropoff, err := parseCoordinate(path, row, record, dLatCol, dLngCol, "dropoff_lat", "dropoff_lng")
		if err != nil {
			return nil, err
		}

		createdAt, err := parseClockField(path, row, "created_time", record[createdCol])
		if err != nil {
			return nil, err
		}

		est, err := strconv.Atoi(strings.TrimSpace(record[estCol]))
		if err != nil {
			return nil, &domain.InputError{File: path, Row: row, Field: "estimated_delivery_time_min", Msg: err.Error()}
		}

		// The deadline column is optional; a blank or absent value derives
		// from the creation time plus the estimate.
		deadline := createdAt + float64(est)
		if hasDeadline && strings.TrimSpace(record[deadlineCol]) != "" {
			deadline, err = parseClockField(path, row, "deadline", record[deadlineCol])
			if err != nil {
				return nil, err
			}
		}

		orders = append(orders, domain.NewOrder(id, pickup, dropoff, createdAt, deadline, float64(est)))
	}

	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt < orders[j].CreatedAt })
	return orders, nil
}

func parseCouriersCSV(path string) ([]*domain.Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.InputError{File: path, Msg: fmt.Sprintf("open couriers file: %v", err)}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, &domain.InputError{File: path, Msg: "empty or unreadable couriers file"}
	}

	cols := indexHeader(header)
	idCol, err := cols.require(path, "driver_id", "courier_id")
	if err != nil {
		return nil, err
	}
	latCol, err := cols.require(path, "start_lat", "courier_lat")
	if err != nil {
		return nil, err
	}
	lngCol, err := cols.require(path, "start_lng", "courier_lng")
	if err != nil {
		return nil, err
	}
	vehicleCol, err := cols.require(path, "vehicle_type")
	if err != nil {
		return nil, err
	}
	capacityCol, hasCapacity := cols.lookup("capacity", "bundle_capacity")
	availableCol, hasAvailable := cols.lookup("available_from")

	var drivers []*domain.Driver
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.InputError{File: path, Row: row, Msg: err.Error()}
		}

		id := strings.TrimSpace(record[idCol])
		if id == "" {
			return nil, &domain.InputError{File: path, Row: row, Field: "driver_id", Msg: "empty value"}
		}

		origin, err := parseCoordinate(path, row, record, latCol, lngCol, "start_lat", "start_lng")
		if err != nil {
			return nil, err
		}

		vehicle, err := domain.ParseVehicleType(record[vehicleCol])
		if err != nil {
			return nil, &domain.InputError{File: path, Row: row, Field: "vehicle_type", Msg: err.Error()}
		}

		// A blank capacity falls through to the domain default.
		capacity := 0
		if hasCapacity && strings.TrimSpace(record[capacityCol]) != "" {
			capacity, err = strconv.Atoi(strings.TrimSpace(record[capacityCol]))
			if err != nil {
				return nil, &domain.InputError{File: path, Row: row, Field: "capacity", Msg: err.Error()}
			}
		}

		availableFrom := 0.0
		if hasAvailable && strings.TrimSpace(record[availableCol]) != "" {
			availableFrom, err = parseClockField(path, row, "available_from", record[availableCol])
			if err != nil {
				return nil, err
			}
		}

		drivers = append(drivers, domain.NewDriver(id, origin, vehicle, capacity, availableFrom))
	}

	return drivers, nil
}

func parseCoordinate(path string, row int, record []string, latCol, lngCol int, latName, lngName string) (domain.Coordinate, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
	if err != nil {
		return domain.Coordinate{}, &domain.InputError{File: path, Row: row, Field: latName, Msg: err.Error()}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(record[lngCol]), 64)
	if err != nil {
		return domain.Coordinate{}, &domain.InputError{File: path, Row: row, Field: lngName, Msg: err.Error()}
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}

func parseClockField(path string, row int, field, raw string) (float64, error) {
	mins, err := domain.ParseMinuteOfDay(raw)
	if err != nil {
		return 0, &domain.InputError{File: path, Row: row, Field: field, Msg: err.Error()}
	}
	return mins, nil
}

// countDataRows returns the number of data records in a CSV file, header
// excluded. Field counts are not enforced here; LoadDataset does the strict
// pass.
func countDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &domain.InputError{File: path, Msg: fmt.Sprintf("open file: %v", err)}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	count := -1
	for {
		if _, err := reader.Read(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return 0, &domain.InputError{File: path, Msg: err.Error()}
		}
		count++
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}
