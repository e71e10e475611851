package domain

// A named scenario: the orders to serve and the fleet serving them.
type Dataset struct {
	Name    string
	Orders  []*Order
	Drivers []*Driver
}

// Summary row for dataset listings.
type DatasetInfo struct {
	Name         string
	OrdersPath   string
	CouriersPath string
	OrderCount   int
	DriverCount  int
}
