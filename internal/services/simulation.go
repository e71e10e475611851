package services

import (
	"fmt"
	"sort"
	"strings"

	"dispatch-sim/internal/config"
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/platform/logger"
	"dispatch-sim/internal/ports"

	"go.uber.org/zap"
)

// Simulation owns the world state for one strategy run over one dataset:
// the clock, the fleet, the order book, and the KPI accumulators. It is
// single-threaded; every mutation happens inside Tick in a fixed phase
// order (advance, inject, dispatch, record).
type Simulation struct {
	engine   *DispatchEngine
	oracle   ports.DistanceOracle
	cfg      config.Simulation
	strategy Strategy

	dataset string
	now     float64

	orders    []*domain.Order
	orderByID map[string]*domain.Order
	drivers   []*domain.Driver
	pending   []*domain.Order
	injected  int

	injectionTimes []float64
	delivered      int

	odometerKm  float64
	assignedKm  float64
	fallbacks   int
	busyTicks   int
	tickSlots   int
	activated   map[string]struct{}
	positions   map[string][]domain.Coordinate
	assignment  map[string]string
	completions []CompletionRecord
}

// NewSimulation prepares a run. The simulation takes ownership of the
// dataset's orders and drivers and mutates them; reload the dataset to
// run another strategy against the same input.
func NewSimulation(
	oracle ports.DistanceOracle,
	cfg config.Simulation,
	ds *domain.Dataset,
	strategy Strategy,
) *Simulation {
	orders := append([]*domain.Order(nil), ds.Orders...)
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt < orders[j].CreatedAt })

	byID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	return &Simulation{
		engine:     NewDispatchEngine(oracle, cfg),
		oracle:     oracle,
		cfg:        cfg,
		strategy:   strategy,
		dataset:    ds.Name,
		now:        cfg.StartTime,
		orders:     orders,
		orderByID:  byID,
		drivers:    ds.Drivers,
		activated:  map[string]struct{}{},
		positions:  map[string][]domain.Coordinate{},
		assignment: map[string]string{},
	}
}

// Run ticks the clock until the shift ends or every order is delivered,
// then returns the KPI snapshot.
func (s *Simulation) Run() (*Results, error) {
	logger.Info("simulation started",
		zap.String("dataset", s.dataset),
		zap.String("strategy", string(s.strategy)),
		zap.Int("orders", len(s.orders)),
		zap.Int("drivers", len(s.drivers)),
		zap.String("clock", domain.FormatClock(s.now)),
	)

	for s.now < s.cfg.EndTime && s.delivered < len(s.orders) {
		if err := s.Tick(); err != nil {
			return nil, err
		}
	}

	res := s.buildResults()
	logger.Info("simulation finished",
		zap.String("dataset", s.dataset),
		zap.String("strategy", string(s.strategy)),
		zap.Int("delivered", res.OrdersDelivered),
		zap.Int("total", res.TotalOrders),
		zap.Int("drivers_used", res.DriversUsed),
		zap.Float64("fleet_km", res.TotalFleetDistanceKm),
		zap.String("clock", domain.FormatClock(s.now)),
	)
	return res, nil
}

// Tick advances the world by one time step. A tick with nothing to do
// only moves the clock.
func (s *Simulation) Tick() error {
	s.advanceDrivers()
	s.injectOrders()

	assigned := 0
	if s.shouldDispatch() {
		mode := s.strategy
		if mode == StrategyAdaptive {
			mode = s.engine.ModeForRate(s.arrivalRate())
		}

		res := s.engine.Dispatch(mode, s.pending, s.drivers, s.now)
		assigned = len(res.Assigned)
		s.assignedKm += res.MarginalKm
		s.fallbacks += res.Fallbacks

		next := s.pending[:0]
		for _, o := range s.pending {
			if o.Status == domain.OrderPending {
				next = append(next, o)
			}
		}
		s.pending = next

		if assigned > 0 {
			s.recordAssignments()
			if err := s.validateState(); err != nil {
				return err
			}
		}
	}

	s.recordTick(assigned)
	s.now += s.cfg.TickMins
	return nil
}

// advanceDrivers serves every stop whose ETA has passed. Several stops
// may resolve in a single tick when legs are short.
func (s *Simulation) advanceDrivers() {
	for _, d := range s.drivers {
		if d.Status == domain.DriverIdle {
			continue
		}
		for d.NextStopIndex >= 0 && d.NextStopIndex < len(d.Route) && d.NextStopETA <= s.now {
			s.arriveAtStop(d)
		}
	}
}

// arriveAtStop moves the driver onto its next stop, serves the order
// there, charges the traversed leg to the fleet odometer, and schedules
// the following stop.
func (s *Simulation) arriveAtStop(d *domain.Driver) {
	stop := d.Route[d.NextStopIndex]

	s.odometerKm += s.oracle.DistanceKm(d.Position, stop.Coord)
	d.Position = stop.Coord
	s.recordPosition(d)

	o := s.orderByID[stop.OrderID]
	switch stop.Kind {
	case domain.StopPickup:
		if o != nil {
			o.Status = domain.OrderPickedUp
			o.PickupTime = s.now
		}
	case domain.StopDropoff:
		if o != nil {
			o.Status = domain.OrderDelivered
			o.DropoffTime = s.now
			s.delivered++
			s.completions = append(s.completions, CompletionRecord{
				OrderID:     o.ID,
				DriverID:    d.ID,
				CreatedAt:   o.CreatedAt,
				DeliveredAt: s.now,
			})
		}
		d.DropOrder(stop.OrderID)
	}

	d.NextStopIndex++
	if d.NextStopIndex >= len(d.Route) {
		d.ClearRoute()
		return
	}

	next := d.Route[d.NextStopIndex]
	d.NextStopETA = s.now + s.oracle.TravelTimeMins(d.Position, next.Coord) + s.cfg.ServiceTimeMins
	if d.Status == domain.DriverAccruing && !d.HasPendingPickups() {
		d.Status = domain.DriverDelivering
	}
}

// injectOrders moves orders whose creation time has passed into the
// pending pool and stamps their arrival for the adaptive rate window.
func (s *Simulation) injectOrders() {
	for s.injected < len(s.orders) && s.orders[s.injected].CreatedAt <= s.now {
		s.pending = append(s.pending, s.orders[s.injected])
		s.injectionTimes = append(s.injectionTimes, s.now)
		s.injected++
	}
}

// shouldDispatch applies the batching gate. Baseline dispatches every
// tick it has work; auction policies hold orders until the oldest has
// aged past the batch window or some order is running out of deadline.
func (s *Simulation) shouldDispatch() bool {
	if len(s.pending) == 0 {
		return false
	}
	if s.strategy == StrategyBaseline {
		return true
	}

	for _, o := range s.pending {
		if s.now-o.CreatedAt >= s.cfg.BatchWindowMins {
			return true
		}
		if o.Deadline-s.now <= o.EstimatedMins/3 {
			return true
		}
	}
	return false
}

// arrivalRate estimates orders per minute over the trailing window.
func (s *Simulation) arrivalRate() float64 {
	window := s.cfg.CombinatorialWindowMins
	if window <= 0 {
		return 0
	}

	cutoff := s.now - window
	count := 0
	for _, t := range s.injectionTimes {
		if t > cutoff {
			count++
		}
	}
	return float64(count) / window
}

// recordAssignments pins each order to the driver that first took it.
func (s *Simulation) recordAssignments() {
	for _, d := range s.drivers {
		for _, o := range d.AssignedOrders {
			if _, ok := s.assignment[o.ID]; !ok {
				s.assignment[o.ID] = d.ID
			}
		}
	}
}

// recordPosition appends the driver's position to its route history,
// skipping consecutive duplicates.
func (s *Simulation) recordPosition(d *domain.Driver) {
	hist := s.positions[d.ID]
	if len(hist) > 0 && hist[len(hist)-1] == d.Position {
		return
	}
	s.positions[d.ID] = append(hist, d.Position)
}

// recordTick accumulates per-tick fleet counters and emits a progress
// line on assignments and every ten simulated minutes.
func (s *Simulation) recordTick(assigned int) {
	busy := 0
	for _, d := range s.drivers {
		if d.Status == domain.DriverIdle {
			continue
		}
		busy++
		s.activated[d.ID] = struct{}{}
		s.recordPosition(d)
	}
	s.busyTicks += busy
	s.tickSlots += len(s.drivers)

	if assigned > 0 || int(s.now)%10 == 0 {
		logger.Info("simulation progress",
			zap.String("strategy", string(s.strategy)),
			zap.String("clock", domain.FormatClock(s.now)),
			zap.Int("assigned", assigned),
			zap.Int("pending", len(s.pending)),
			zap.Int("delivered", s.delivered),
			zap.Int("busy_drivers", busy),
		)
	}
}

// validateState checks cross-driver consistency after a dispatch round.
// A violation means assignments corrupted the world; the run stops and
// the error carries a diagnostic dump.
func (s *Simulation) validateState() error {
	owner := make(map[string]string, len(s.orders))
	for _, d := range s.drivers {
		if len(d.AssignedOrders) > d.Capacity {
			return &domain.StateError{
				DriverID: d.ID,
				Detail:   fmt.Sprintf("capacity exceeded: %d orders with capacity %d", len(d.AssignedOrders), d.Capacity),
				Dump:     s.dumpState(),
			}
		}

		for _, o := range d.AssignedOrders {
			if prev, ok := owner[o.ID]; ok {
				return &domain.StateError{
					DriverID: d.ID,
					Detail:   fmt.Sprintf("order %s assigned to both %s and %s", o.ID, prev, d.ID),
					Dump:     s.dumpState(),
				}
			}
			owner[o.ID] = d.ID
		}

		if d.Status != domain.DriverDelivering {
			continue
		}
		for _, st := range d.RemainingStops() {
			if st.Kind == domain.StopPickup {
				return &domain.StateError{
					DriverID: d.ID,
					Detail:   fmt.Sprintf("delivering route still holds a pickup for order %s", st.OrderID),
					Dump:     s.dumpState(),
				}
			}
		}
	}
	return nil
}

// dumpState renders a one-line-per-driver snapshot for corruption reports.
func (s *Simulation) dumpState() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clock=%s pending=%d delivered=%d/%d\n",
		domain.FormatClock(s.now), len(s.pending), s.delivered, len(s.orders))
	for _, d := range s.drivers {
		fmt.Fprintf(&b, "driver %s status=%s pos=%.5f,%.5f orders=%d/%d stops_left=%d\n",
			d.ID, d.Status, d.Position.Lat, d.Position.Lng,
			len(d.AssignedOrders), d.Capacity, len(d.RemainingStops()))
	}
	return b.String()
}
