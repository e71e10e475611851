package api

import (
	"net/http"

	"dispatch-sim/internal/api/handlers"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/ports"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(repo ports.DatasetRepository, oracles handlers.OracleFactory, cfg config.Simulation) http.Handler {
	mux := http.NewServeMux()

	datasetHandler := &handlers.DatasetHandler{Repo: repo}
	simulationHandler := &handlers.SimulationHandler{
		Repo:    repo,
		Oracles: oracles,
		Cfg:     cfg,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/datasets", datasetHandler.List)
	mux.HandleFunc("/simulations", simulationHandler.Run)

	return loggingMiddleware(mux)
}
