package handlers

import (
	"net/http"

	"dispatch-sim/internal/api/dto"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"

	"go.uber.org/zap"
)

// DatasetHandler exposes read-only dataset discovery endpoints.
type DatasetHandler struct {
	Repo ports.DatasetRepository
}

func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	infos, err := h.Repo.ListDatasets(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Error("list datasets failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListDatasetsResponse{
		Datasets: make([]dto.DatasetResponse, 0, len(infos)),
	}
	for _, info := range infos {
		res.Datasets = append(res.Datasets, dto.DatasetResponse{
			Name:        info.Name,
			OrderCount:  info.OrderCount,
			DriverCount: info.DriverCount,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
