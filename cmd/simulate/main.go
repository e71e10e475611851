package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"dispatch-sim/internal/adapters/cache"
	"dispatch-sim/internal/adapters/distance"
	"dispatch-sim/internal/adapters/repositories"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/db"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"
	"dispatch-sim/internal/report"
	"dispatch-sim/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

const (
	exitInputError    = 1
	exitBadStrategy   = 2
	exitInternalError = 3
)

// main runs the requested dispatch strategies against one dataset and
// prints the KPI comparison.
func main() {
	var (
		datasetName = flag.String("dataset", "clean_100", "dataset name (<name>_orders.csv / <name>_couriers.csv pair)")
		strategyArg = flag.String("strategy", "all", "dispatch strategy: baseline, sequential, combinatorial, adaptive or all")
		listOnly    = flag.Bool("list-datasets", false, "list available datasets and exit")
		verbose     = flag.Bool("verbose", false, "log per-assignment detail")
		dataDir     = flag.String("data-dir", "", "dataset directory (default $DATA_DIR or data)")
		outPath     = flag.String("out", "", "write the KPI comparison to this CSV file")
		ordersPath  = flag.String("orders-log", "", "write per-order completion rows to this CSV file")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if err := logger.Init(config.Get("APP_ENV", "development")); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if *verbose {
		logger.SetLevel(zapcore.DebugLevel)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		exitWith(fmt.Errorf("load config: %w", err))
	}

	ctx := context.Background()

	repo, closeRepo, err := openRepository(*dataDir)
	if err != nil {
		exitWith(err)
	}
	defer closeRepo()

	if *listOnly {
		listDatasets(ctx, repo)
		return
	}

	strategies, err := selectStrategies(*strategyArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadStrategy)
	}

	report.WriteHeader(os.Stdout)

	// Load once up front to validate the dataset and warm the road matrix;
	// every strategy run reloads for fresh order and driver state.
	warmup, err := repo.LoadDataset(ctx, *datasetName)
	if err != nil {
		exitWith(err)
	}
	fmt.Printf("Loaded %d orders and %d drivers from %q\n", len(warmup.Orders), len(warmup.Drivers), *datasetName)

	oracle, err := buildOracle(ctx, cfg, warmup)
	if err != nil {
		exitWith(err)
	}

	results := make([]*services.Results, 0, len(strategies))
	for _, strategy := range strategies {
		ds, err := repo.LoadDataset(ctx, *datasetName)
		if err != nil {
			exitWith(err)
		}

		res, err := services.NewSimulation(oracle, cfg, ds, strategy).Run()
		if err != nil {
			exitWith(err)
		}
		results = append(results, res)
	}

	report.WriteTable(os.Stdout, results)

	if *outPath != "" {
		if err := report.WriteCSV(*outPath, results); err != nil {
			exitWith(err)
		}
		fmt.Printf("KPI comparison written to %s\n", *outPath)
	}
	if *ordersPath != "" {
		if err := report.WriteOrdersLog(*ordersPath, results); err != nil {
			exitWith(err)
		}
		fmt.Printf("Order completion log written to %s\n", *ordersPath)
	}
}

// exitWith logs the failure and exits with the code its class maps to:
// unreadable input is 1, everything else (state corruption included) is 3.
func exitWith(err error) {
	var inErr *domain.InputError
	if errors.As(err, &inErr) {
		logger.Error("input error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(exitInputError)
	}

	logger.Error("simulation run failed", zap.Error(err))
	_ = logger.Sync()
	os.Exit(exitInternalError)
}

func selectStrategies(arg string) ([]services.Strategy, error) {
	s := strings.ToLower(strings.TrimSpace(arg))
	if s == "" || s == "all" {
		return services.AllStrategies(), nil
	}

	strategy, err := services.ParseStrategy(s)
	if err != nil {
		return nil, err
	}
	return []services.Strategy{strategy}, nil
}

// openRepository picks Postgres when DATABASE_URL is set, the CSV data
// directory otherwise. The flag wins over $DATA_DIR for the CSV case.
func openRepository(dirFlag string) (ports.DatasetRepository, func(), error) {
	if databaseURL := os.Getenv("DATABASE_URL"); strings.TrimSpace(databaseURL) != "" {
		sqlDB, err := db.Open(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewPGDatasetRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
	}

	dir := dirFlag
	if dir == "" {
		dir = config.Get("DATA_DIR", "data")
	}
	return repositories.NewCSVDatasetRepository(dir), func() {}, nil
}

func listDatasets(ctx context.Context, repo ports.DatasetRepository) {
	infos, err := repo.ListDatasets(ctx)
	if err != nil {
		exitWith(err)
	}

	if len(infos) == 0 {
		fmt.Println("No datasets found.")
		return
	}
	fmt.Println("Available datasets:")
	for _, info := range infos {
		fmt.Printf("  %-24s %5d orders  %4d drivers\n", info.Name, info.OrderCount, info.DriverCount)
	}
}

// buildOracle returns the configured distance oracle, warmed for every
// coordinate in the dataset when road distances are enabled.
func buildOracle(ctx context.Context, cfg config.Simulation, ds *domain.Dataset) (ports.DistanceOracle, error) {
	if !cfg.UseRoadDistance {
		return distance.NewHaversineOracle(cfg.AvgSpeedKmh), nil
	}

	legCache, err := openLegCache()
	if err != nil {
		return nil, err
	}

	oracle, err := distance.NewOSRMOracle(distance.OSRMOptions{
		BaseURL:            cfg.OSRMServerURL,
		Timeout:            cfg.OSRMTimeout,
		SpeedKmh:           cfg.AvgSpeedKmh,
		FallbackMultiplier: cfg.HaversineFallbackMultiplier,
		Cache:              legCache,
	})
	if err != nil {
		return nil, err
	}

	if err := oracle.BuildMatrix(ctx, datasetPoints(ds)); err != nil {
		return nil, err
	}
	return oracle, nil
}

// openLegCache selects the persistent road-leg cache from $LEG_CACHE:
// "sqlite", "redis" or "none".
func openLegCache() (ports.LegCache, error) {
	switch backend := strings.ToLower(config.Get("LEG_CACHE", "none")); backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		path := config.Get("LEG_CACHE_PATH", "data/legs.db")
		sqlDB, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open leg cache %q: %w", path, err)
		}
		if err := cache.InitLegSchema(sqlDB); err != nil {
			return nil, err
		}
		return cache.NewSqliteLegCache(sqlDB), nil
	case "redis":
		client, err := cache.DialRedis(config.Get("REDIS_ADDR", "localhost:6379"))
		if err != nil {
			return nil, err
		}
		return cache.NewRedisLegCache(client, 0), nil
	default:
		return nil, fmt.Errorf("unknown LEG_CACHE backend %q", backend)
	}
}

func datasetPoints(ds *domain.Dataset) []domain.Coordinate {
	points := make([]domain.Coordinate, 0, len(ds.Orders)*2+len(ds.Drivers))
	for _, o := range ds.Orders {
		points = append(points, o.Pickup, o.Dropoff)
	}
	for _, d := range ds.Drivers {
		points = append(points, d.Origin)
	}
	return points
}
