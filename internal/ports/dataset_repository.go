package ports

import (
	"context"

	"dispatch-sim/internal/domain"
)

// Port: a boundary for discovering and loading simulation datasets.
type DatasetRepository interface {
	// List every dataset the source knows about.
	ListDatasets(ctx context.Context) ([]domain.DatasetInfo, error)
	// Load one dataset by name with fresh order and driver state.
	LoadDataset(ctx context.Context, name string) (*domain.Dataset, error)
}
