package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"dispatch-sim/internal/adapters/repositories"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/platform/db"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	var (
		initFlag   = flag.Bool("init", false, "create the dispatch schema")
		importName = flag.String("import", "", "import dataset <name> from the data directory")
		listFlag   = flag.Bool("list", false, "list datasets stored in the database")
		dataDir    = flag.String("data-dir", "", "dataset directory (default $DATA_DIR or data)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer sqlDB.Close()

	switch {
	case *initFlag:
		log.Println("Initializing database schema...")
		if err := repositories.InitSchema(sqlDB); err != nil {
			log.Fatalf("schema initialization failed: %v", err)
		}
		log.Println("Schema ready.")

	case *importName != "":
		dir := *dataDir
		if dir == "" {
			dir = config.Get("DATA_DIR", "data")
		}
		ordersPath := filepath.Join(dir, *importName+"_orders.csv")
		couriersPath := filepath.Join(dir, *importName+"_couriers.csv")

		log.Printf("Importing dataset %q...", *importName)
		if err := repositories.ImportDataset(sqlDB, *importName, ordersPath, couriersPath); err != nil {
			log.Fatalf("import failed: %v", err)
		}
		log.Println("Import complete.")

	case *listFlag:
		repo := repositories.NewPGDatasetRepository(sqlDB)
		infos, err := repo.ListDatasets(context.Background())
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		if len(infos) == 0 {
			log.Println("No datasets imported yet.")
			return
		}
		for _, info := range infos {
			fmt.Printf("%-24s %5d orders  %4d drivers\n", info.Name, info.OrderCount, info.DriverCount)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
