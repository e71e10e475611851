package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"dispatch-sim/internal/adapters/cache"
	"dispatch-sim/internal/adapters/distance"
	"dispatch-sim/internal/adapters/repositories"
	"dispatch-sim/internal/api"
	"dispatch-sim/internal/api/handlers"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/db"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// main is the application composition root.
// It wires concrete adapters (Postgres or CSV datasets, haversine or OSRM
// distances) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if err := logger.Init(config.Get("APP_ENV", "development")); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	port := config.Get("PORT", "8080")

	repo, closeRepo, err := openRepository()
	if err != nil {
		logger.Fatal("open dataset repository failed", zap.Error(err))
	}
	defer closeRepo()

	factory, err := newOracleFactory()
	if err != nil {
		logger.Fatal("open leg cache failed", zap.Error(err))
	}

	router := api.NewRouter(repo, factory, cfg)

	// Write timeout covers a full synchronous simulation run.
	logger.Info("server listening", zap.String("addr", ":"+port))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Fatal("server stopped", zap.Error(srv.ListenAndServe()))
}

// openRepository picks Postgres when DATABASE_URL is set, otherwise the
// CSV data directory.
func openRepository() (ports.DatasetRepository, func(), error) {
	if databaseURL := os.Getenv("DATABASE_URL"); strings.TrimSpace(databaseURL) != "" {
		sqlDB, err := db.Open(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewPGDatasetRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
	}

	dataDir := config.Get("DATA_DIR", "data")
	return repositories.NewCSVDatasetRepository(dataDir), func() {}, nil
}

// newOracleFactory opens the road-leg cache once and returns the builder
// the simulation handler calls per request. Haversine runs need no warm-up;
// road runs get a fresh OSRM oracle with its matrix precomputed for the
// dataset's coordinates.
func newOracleFactory() (handlers.OracleFactory, error) {
	legCache, err := openLegCache()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, cfg config.Simulation, ds *domain.Dataset) (ports.DistanceOracle, error) {
		if !cfg.UseRoadDistance {
			return distance.NewHaversineOracle(cfg.AvgSpeedKmh), nil
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
	}, nil
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
