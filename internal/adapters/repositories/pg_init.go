package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the Postgres tables the dataset repository reads from.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDatasetsQuery := `
	CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
		order_id TEXT NOT NULL,
		pickup_lat DOUBLE PRECISION NOT NULL,
		pickup_lng DOUBLE PRECISION NOT NULL,
		dropoff_lat DOUBLE PRECISION NOT NULL,
		dropoff_lng DOUBLE PRECISION NOT NULL,
		created_min DOUBLE PRECISION NOT NULL,
		deadline_min DOUBLE PRECISION NOT NULL,
		estimated_min DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (dataset, order_id)
	);
	`

	createCouriersQuery := `
	CREATE TABLE IF NOT EXISTS couriers (
		dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
		driver_id TEXT NOT NULL,
		start_lat DOUBLE PRECISION NOT NULL,
		start_lng DOUBLE PRECISION NOT NULL,
		vehicle_type TEXT NOT NULL,
		capacity INT NOT NULL,
		available_from_min DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (dataset, driver_id)
	);
	`

	createOrdersIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_orders_dataset_created
	ON orders(dataset, created_min);
	`

	statements := []string{
		createDatasetsQuery,
		createOrdersQuery,
		createCouriersQuery,
		createOrdersIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// ImportDataset parses a CSV pair and replaces the named dataset's rows in
// Postgres. Times are stored as minutes of day so LoadDataset never parses
// clocks again.
func ImportDataset(db *sql.DB, name, ordersPath, couriersPath string) error {
	if db == nil {
		return errors.New("import dataset: DB is nil")
	}

	orders, err := parseOrdersCSV(ordersPath)
	if err != nil {
		return err
	}
	drivers, err := parseCouriersCSV(couriersPath)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("import dataset %q: begin tx: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertDataset := `
	INSERT INTO datasets (name) VALUES ($1)
	ON CONFLICT (name) DO UPDATE SET imported_at = now();
	`
	if _, err := tx.Exec(upsertDataset, name); err != nil {
		return fmt.Errorf("import dataset %q: upsert dataset row: %w", name, err)
	}

	// Re-import replaces the dataset wholesale.
	if _, err := tx.Exec(`DELETE FROM orders WHERE dataset = $1;`, name); err != nil {
		return fmt.Errorf("import dataset %q: clear orders: %w", name, err)
	}
	if _, err := tx.Exec(`DELETE FROM couriers WHERE dataset = $1;`, name); err != nil {
		return fmt.Errorf("import dataset %q: clear couriers: %w", name, err)
	}

	insertOrder := `
	INSERT INTO orders (
		dataset, order_id,
		pickup_lat, pickup_lng,
		dropoff_lat, dropoff_lng,
		created_min, deadline_min, estimated_min
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	orderStmt, err := tx.Prepare(insertOrder)
	if err != nil {
		return fmt.Errorf("import dataset %q: prepare order insert: %w", name, err)
	}
	defer orderStmt.Close()

	for _, o := range orders {
		_, err := orderStmt.Exec(
			name, o.ID,
			o.Pickup.Lat, o.Pickup.Lng,
			o.Dropoff.Lat, o.Dropoff.Lng,
			o.CreatedAt, o.Deadline, o.EstimatedMins,
		)
		if err != nil {
			return fmt.Errorf("import dataset %q: insert order %s: %w", name, o.ID, err)
		}
	}

	insertCourier := `
	INSERT INTO couriers (
		dataset, driver_id,
		start_lat, start_lng,
		vehicle_type, capacity, available_from_min
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	courierStmt, err := tx.Prepare(insertCourier)
	if err != nil {
		return fmt.Errorf("import dataset %q: prepare courier insert: %w", name, err)
	}
	defer courierStmt.Close()

	for _, d := range drivers {
		_, err := courierStmt.Exec(
			name, d.ID,
			d.Origin.Lat, d.Origin.Lng,
			string(d.Vehicle), d.Capacity, d.AvailableFrom,
		)
		if err != nil {
			return fmt.Errorf("import dataset %q: insert courier %s: %w", name, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import dataset %q: commit tx: %w", name, err)
	}

	return nil
}
