package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch-sim/internal/domain"
)

// PGDatasetRepository serves datasets previously imported into Postgres by
// the dbtool. Orders and couriers are stored with times already converted
// to minutes of day.
type PGDatasetRepository struct{ DB *sql.DB }

func NewPGDatasetRepository(db *sql.DB) *PGDatasetRepository {
	return &PGDatasetRepository{DB: db}
}

func (r *PGDatasetRepository) ListDatasets(ctx context.Context) ([]domain.DatasetInfo, error) {
	if r.DB == nil {
		return nil, errors.New("pg dataset repository: DB is nil")
	}

	query := `
	SELECT
		d.name,
		(SELECT COUNT(*) FROM orders o WHERE o.dataset = d.name),
		(SELECT COUNT(*) FROM couriers c WHERE c.dataset = d.name)
	FROM datasets d
	ORDER BY d.name;
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list datasets: query datasets table: %w", err)
	}
	defer rows.Close()

	infos := make([]domain.DatasetInfo, 0, 8)
	for rows.Next() {
		var info domain.DatasetInfo
		if err := rows.Scan(&info.Name, &info.OrderCount, &info.DriverCount); err != nil {
			return nil, fmt.Errorf("list datasets: scan row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: row iteration: %w", err)
	}

	return infos, nil
}

func (r *PGDatasetRepository) LoadDataset(ctx context.Context, name string) (*domain.Dataset, error) {
	if r.DB == nil {
		return nil, errors.New("pg dataset repository: DB is nil")
	}

	var found string
	err := r.DB.QueryRowContext(ctx, `SELECT name FROM datasets WHERE name = $1;`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.InputError{File: name, Msg: fmt.Sprintf("dataset %q not found", name)}
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset %q: lookup: %w", name, err)
	}

	orders, err := r.loadOrders(ctx, name)
	if err != nil {
		return nil, err
	}
	drivers, err := r.loadCouriers(ctx, name)
	if err != nil {
		return nil, err
	}

	return &domain.Dataset{Name: name, Orders: orders, Drivers: drivers}, nil
}

func (r *PGDatasetRepository) loadOrders(ctx context.Context, name string) ([]*domain.Order, error) {
	query := `
	SELECT
		order_id,
		pickup_lat, pickup_lng,
		dropoff_lat, dropoff_lng,
		created_min, deadline_min, estimated_min
	FROM orders
	WHERE dataset = $1
	ORDER BY created_min, order_id;
	`
	rows, err := r.DB.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("load dataset %q: query orders: %w", name, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, 64)
	for rows.Next() {
		var (
			id                     string
			pickup, dropoff        domain.Coordinate
			created, deadline, est float64
		)
		err := rows.Scan(&id, &pickup.Lat, &pickup.Lng, &dropoff.Lat, &dropoff.Lng, &created, &deadline, &est)
		if err != nil {
			return nil, fmt.Errorf("load dataset %q: scan order row: %w", name, err)
		}
		orders = append(orders, domain.NewOrder(id, pickup, dropoff, created, deadline, est))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load dataset %q: order iteration: %w", name, err)
	}

	return orders, nil
}

func (r *PGDatasetRepository) loadCouriers(ctx context.Context, name string) ([]*domain.Driver, error) {
	query := `
	SELECT
		driver_id,
		start_lat, start_lng,
		vehicle_type, capacity, available_from_min
	FROM couriers
	WHERE dataset = $1
	ORDER BY driver_id;
	`
	rows, err := r.DB.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("load dataset %q: query couriers: %w", name, err)
	}
	defer rows.Close()

	drivers := make([]*domain.Driver, 0, 32)
	for rows.Next() {
		var (
			id, rawVehicle string
			origin         domain.Coordinate
			capacity       int
			availableFrom  float64
		)
		err := rows.Scan(&id, &origin.Lat, &origin.Lng, &rawVehicle, &capacity, &availableFrom)
		if err != nil {
			return nil, fmt.Errorf("load dataset %q: scan courier row: %w", name, err)
		}
		vehicle, err := domain.ParseVehicleType(rawVehicle)
		if err != nil {
			return nil, &domain.InputError{File: name, Field: "vehicle_type", Msg: err.Error()}
		}
		drivers = append(drivers, domain.NewDriver(id, origin, vehicle, capacity, availableFrom))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load dataset %q: courier iteration: %w", name, err)
	}

	return drivers, nil
}
