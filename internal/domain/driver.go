package domain

import (
	"fmt"
	"strings"
)

// Vehicle class a driver operates. The class feeds the bid cost multiplier.
type VehicleType string

const (
	VehicleMotorbike VehicleType = "motorbike"
	VehicleBike      VehicleType = "bike"
	VehicleCar       VehicleType = "car"
)

// ParseVehicleType normalizes and validates a raw vehicle class value.
func ParseVehicleType(s string) (VehicleType, error) {
	switch v := VehicleType(strings.ToLower(strings.TrimSpace(s))); v {
	case VehicleMotorbike, VehicleBike, VehicleCar:
		return v, nil
	default:
		return "", fmt.Errorf("unknown vehicle type %q", s)
	}
}

// Driver activity state. IDLE drivers wait for work, ACCRUING drivers are
// collecting pickups and may accept more orders, DELIVERING drivers have a
// frozen route with only dropoffs remaining.
type DriverStatus string

const (
	DriverIdle       DriverStatus = "IDLE"
	DriverAccruing   DriverStatus = "ACCRUING"
	DriverDelivering DriverStatus = "DELIVERING"
)

// DefaultDriverCapacity applies when a dataset leaves capacity blank.
const DefaultDriverCapacity = 2

// A fleet member: immutable shift attributes plus the mutable route state
// the simulator advances each tick.
type Driver struct {
	ID            string
	Origin        Coordinate
	Vehicle       VehicleType
	Capacity      int
	AvailableFrom float64

	Position       Coordinate
	Status         DriverStatus
	AssignedOrders []*Order
	Route          []Stop
	NextStopIndex  int
	NextStopETA    float64
}

func NewDriver(id string, origin Coordinate, vehicle VehicleType, capacity int, availableFrom float64) *Driver {
	if capacity <= 0 {
		capacity = DefaultDriverCapacity
	}

	return &Driver{
		ID:            id,
		Origin:        origin,
		Vehicle:       vehicle,
		Capacity:      capacity,
		AvailableFrom: availableFrom,
		Position:      origin,
		Status:        DriverIdle,
		NextStopIndex: -1,
		NextStopETA:   TimeUnset,
	}
}

// HasCapacity reports whether the driver can accept at least one more order.
func (d *Driver) HasCapacity() bool {
	return len(d.AssignedOrders) < d.Capacity
}

// RemainingStops returns the unvisited tail of the current route.
func (d *Driver) RemainingStops() []Stop {
	if d.NextStopIndex < 0 || d.NextStopIndex >= len(d.Route) {
		return nil
	}
	return d.Route[d.NextStopIndex:]
}

// HasPendingPickups reports whether any unvisited stop is a pickup.
func (d *Driver) HasPendingPickups() bool {
	for _, s := range d.RemainingStops() {
		if s.Kind == StopPickup {
			return true
		}
	}
	return false
}

// PickedUpOrders returns the assigned orders already in the vehicle.
func (d *Driver) PickedUpOrders() []*Order {
	var picked []*Order
	for _, o := range d.AssignedOrders {
		if o.Status == OrderPickedUp {
			picked = append(picked, o)
		}
	}
	return picked
}

// DropOrder removes a delivered order from the driver's load, freeing
// one capacity slot.
func (d *Driver) DropOrder(id string) {
	for i, o := range d.AssignedOrders {
		if o.ID == id {
			d.AssignedOrders = append(d.AssignedOrders[:i], d.AssignedOrders[i+1:]...)
			return
		}
	}
}

// ClearRoute resets the driver to idle after the last stop is served.
func (d *Driver) ClearRoute() {
	d.Status = DriverIdle
	d.Route = nil
	d.NextStopIndex = -1
	d.NextStopETA = TimeUnset
	d.AssignedOrders = nil
}
