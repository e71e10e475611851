package domain

// Lifecycle status of an order. Transitions are strictly monotone:
// PENDING -> ASSIGNED -> PICKED_UP -> DELIVERED.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderAssigned  OrderStatus = "ASSIGNED"
	OrderPickedUp  OrderStatus = "PICKED_UP"
	OrderDelivered OrderStatus = "DELIVERED"
)

// A single delivery request: pick up at one location, drop off at another,
// within a service-level window. Times are minutes since midnight.
type Order struct {
	ID            string
	Pickup        Coordinate
	Dropoff       Coordinate
	CreatedAt     float64
	Deadline      float64
	EstimatedMins float64

	Status      OrderStatus
	PickupTime  float64
	DropoffTime float64
}

func NewOrder(id string, pickup, dropoff Coordinate, createdAt, deadline, estimatedMins float64) *Order {
	return &Order{
		ID:            id,
		Pickup:        pickup,
		Dropoff:       dropoff,
		CreatedAt:     createdAt,
		Deadline:      deadline,
		EstimatedMins: estimatedMins,
		Status:        OrderPending,
		PickupTime:    TimeUnset,
		DropoffTime:   TimeUnset,
	}
}
