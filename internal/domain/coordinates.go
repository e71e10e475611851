package domain

// Immutable geographic coordinates (latitude, longitude).
type Coordinate struct {
	Lat float64
	Lng float64
}

// Return coordinates as [lng, lat] for external routing API compatibility.
func (c Coordinate) LngLat() []float64 { return []float64{c.Lng, c.Lat} }
