package dto

// SimulationRequest selects a dataset and dispatch strategy. The optional
// fields override the server's configured defaults for this run only.
type SimulationRequest struct {
	Dataset         string   `json:"dataset"`
	Strategy        string   `json:"strategy"`
	UseRoadDistance *bool    `json:"use_road_distance"`
	MaxBundleSize   *int     `json:"max_bundle_size"`
	BatchWindowMins *float64 `json:"batch_window_mins"`
}

type KpiResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SimulationResponse struct {
	RunID          string `json:"run_id"`
	Dataset        string `json:"dataset"`
	Strategy       string `json:"strategy"`
	OrdersAssigned int    `json:"orders_assigned"`

	Kpis []KpiResponse `json:"kpis"`
	// Final order-to-driver ownership at the end of the run.
	Assignments map[string]string `json:"assignments"`
}
