package dto

type DatasetResponse struct {
	Name        string `json:"name"`
	OrderCount  int    `json:"order_count"`
	DriverCount int    `json:"driver_count"`
}

type ListDatasetsResponse struct {
	Datasets []DatasetResponse `json:"datasets"`
}
