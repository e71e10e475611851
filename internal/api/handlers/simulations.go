package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"dispatch-sim/internal/api/dto"
	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"
	"dispatch-sim/internal/services"

	"go.uber.org/zap"
)

// OracleFactory builds the distance oracle for one run, warmed for the
// dataset's coordinates when the backend supports precomputation.
type OracleFactory func(ctx context.Context, cfg config.Simulation, ds *domain.Dataset) (ports.DistanceOracle, error)

// SimulationHandler runs a dispatch simulation synchronously and returns
// the KPI snapshot.
type SimulationHandler struct {
	Repo    ports.DatasetRepository
	Oracles OracleFactory
	Cfg     config.Simulation
}

func (h *SimulationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.SimulationRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	strategy, err := services.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.Dataset) == "" {
		writeError(w, r, http.StatusBadRequest, "dataset is required")
		return
	}

	cfg := h.Cfg
	if req.UseRoadDistance != nil {
		cfg.UseRoadDistance = *req.UseRoadDistance
	}
	if req.MaxBundleSize != nil {
		if *req.MaxBundleSize < 1 {
			writeError(w, r, http.StatusBadRequest, "max_bundle_size must be at least 1")
			return
		}
		cfg.MaxBundleSize = *req.MaxBundleSize
	}
	if req.BatchWindowMins != nil {
		if *req.BatchWindowMins < 0 {
			writeError(w, r, http.StatusBadRequest, "batch_window_mins must not be negative")
			return
		}
		cfg.BatchWindowMins = *req.BatchWindowMins
	}

	ds, err := h.Repo.LoadDataset(r.Context(), req.Dataset)
	if err != nil {
		var inErr *domain.InputError
		if errors.As(err, &inErr) {
			writeError(w, r, http.StatusBadRequest, inErr.Error())
			return
		}
		logger.WithContext(r.Context()).Error("load dataset failed",
			zap.String("dataset", req.Dataset), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	oracle, err := h.Oracles(r.Context(), cfg, ds)
	if err != nil {
		logger.WithContext(r.Context()).Error("build oracle failed",
			zap.String("dataset", req.Dataset), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	sim := services.NewSimulation(oracle, cfg, ds, strategy)
	res, err := sim.Run()
	if err != nil {
		logger.WithContext(r.Context()).Error("simulation failed",
			zap.String("dataset", req.Dataset),
			zap.String("strategy", string(strategy)),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	kpis := make([]dto.KpiResponse, 0, 32)
	for _, row := range res.MetricRows() {
		kpis = append(kpis, dto.KpiResponse{Key: row.Key, Value: row.Value})
	}

	writeJSON(w, r, http.StatusOK, dto.SimulationResponse{
		RunID:          res.RunID,
		Dataset:        res.Dataset,
		Strategy:       string(res.Strategy),
		OrdersAssigned: len(res.AssignmentMap),
		Kpis:           kpis,
		Assignments:    res.AssignmentMap,
	})
}
