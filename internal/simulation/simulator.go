package simulation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"mealtrail-backend/internal/geo"
	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/tracking"
)

const (
	// DefaultTripDuration is how long a synthetic trip takes from the
	// restaurant point to the delivery point.
	DefaultTripDuration = 120 * time.Second

	// DefaultTickInterval is the cadence of interpolated position samples.
	DefaultTickInterval = time.Second
)

// ErrBadEndpoints is returned when a simulation is started with missing or
// non-finite coordinates. This is a precondition failure - nothing is
// defaulted silently and no state changes.
var ErrBadEndpoints = errors.New("simulation endpoints must be finite coordinates")

// OrderUpdater is the slice of the order lifecycle the simulator drives:
// dispatching the order when the trip starts and completing it when the trip
// ends. Implemented by the order service.
type OrderUpdater interface {
	// AdvanceToOutForDelivery moves the order to out_for_delivery if it has
	// not been dispatched yet, and returns the order's resulting status.
	AdvanceToOutForDelivery(ctx context.Context, orderID string) (models.OrderStatus, error)
	// MarkDelivered moves the order to its delivered terminal state.
	MarkDelivered(ctx context.Context, orderID string) error
}

type run struct {
	orderID   string
	partnerID string
	fromLat   float64
	fromLng   float64
	toLat     float64
	toLng     float64
	startedAt time.Time
	status    models.OrderStatus

	cancel   chan struct{}
	stopOnce sync.Once
}

func (r *run) stop() {
	r.stopOnce.Do(func() { close(r.cancel) })
}

// Manager runs at most one movement simulation per order. Each simulation is a
// timer-driven task holding its own endpoints, start time and cancel channel;
// cancellation is a first-class operation, not a side effect buried in the
// tick loop.
type Manager struct {
	store    *tracking.Store
	orders   OrderUpdater
	duration time.Duration
	tick     time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

func NewManager(store *tracking.Store, orders OrderUpdater) *Manager {
	return &Manager{
		store:    store,
		orders:   orders,
		duration: DefaultTripDuration,
		tick:     DefaultTickInterval,
		runs:     make(map[string]*run),
	}
}

// NewManagerWithTiming builds a manager with custom trip duration and tick
// interval, used by tests to run sub-second trips.
func NewManagerWithTiming(store *tracking.Store, orders OrderUpdater, duration, tick time.Duration) *Manager {
	m := NewManager(store, orders)
	m.duration = duration
	m.tick = tick
	return m
}

// Start begins a synthetic trip for an order from the restaurant point to the
// delivery point. A simulation already running for the order is cancelled
// first, so at most one stream of ticks exists per order. The device feed
// holding the order's position ownership rejects the start.
func (m *Manager) Start(orderID, partnerID string, fromLat, fromLng, toLat, toLng float64) error {
	if !geo.IsFinite(fromLat) || !geo.IsFinite(fromLng) || !geo.IsFinite(toLat) || !geo.IsFinite(toLng) {
		return ErrBadEndpoints
	}

	m.mu.Lock()
	if prev, ok := m.runs[orderID]; ok {
		prev.stop()
		delete(m.runs, orderID)
	}
	if err := m.store.ClaimSource(orderID, tracking.SourceSimulator); err != nil {
		m.mu.Unlock()
		return err
	}
	r := &run{
		orderID:   orderID,
		partnerID: partnerID,
		fromLat:   fromLat,
		fromLng:   fromLng,
		toLat:     toLat,
		toLng:     toLng,
		startedAt: time.Now(),
		cancel:    make(chan struct{}),
	}
	m.runs[orderID] = r
	m.mu.Unlock()

	status, err := m.orders.AdvanceToOutForDelivery(context.Background(), orderID)
	if err != nil {
		log.Printf("⚠️ Simulation: failed to dispatch order %s: %v", orderID, err)
		status = models.OrderOutForDelivery
	}
	r.status = status

	// Emit the origin immediately so subscribers see the trip begin at t=0.
	m.emit(r, 0)

	go m.loop(r)

	log.Printf("🛵 Simulation started for order %s (partner %s, %.0fs trip)", orderID, partnerID, m.duration.Seconds())
	return nil
}

// Stop cancels the order's running simulation, if any. The order's last
// emitted status is left as is - a transition already made is never rolled
// back. Returns whether a simulation was actually running.
func (m *Manager) Stop(orderID string) bool {
	m.mu.Lock()
	r, ok := m.runs[orderID]
	if ok {
		r.stop()
		delete(m.runs, orderID)
	}
	m.mu.Unlock()

	if ok {
		m.store.ReleaseSource(orderID, tracking.SourceSimulator)
		log.Printf("🛑 Simulation stopped for order %s", orderID)
	}
	return ok
}

// Running reports whether the order currently has an active simulation.
func (m *Manager) Running(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[orderID]
	return ok
}

// StopAll cancels every running simulation, for shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	orderIDs := make([]string, 0, len(m.runs))
	for id := range m.runs {
		orderIDs = append(orderIDs, id)
	}
	m.mu.Unlock()

	for _, id := range orderIDs {
		m.Stop(id)
	}
}

func (m *Manager) loop(r *run) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.cancel:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(r.startedAt)
			if elapsed < m.duration {
				m.emit(r, elapsed)
				continue
			}

			// Trip complete: deliver first, then emit the destination. An
			// order that refuses the transition (cancelled mid-trip) never
			// gets a sample claiming delivered.
			if err := m.orders.MarkDelivered(context.Background(), r.orderID); err != nil {
				log.Printf("⚠️ Simulation: failed to mark order %s delivered: %v", r.orderID, err)
			} else {
				r.status = models.OrderDelivered
				m.emit(r, m.duration)
			}
			m.finish(r)
			return
		}
	}
}

func (m *Manager) emit(r *run, elapsed time.Duration) {
	lat, lng := PositionAt(r.fromLat, r.fromLng, r.toLat, r.toLng, elapsed, m.duration)
	m.store.Publish(r.orderID, models.PositionSample{
		OrderID:         r.orderID,
		Latitude:        lat,
		Longitude:       lng,
		Timestamp:       time.Now().Unix(),
		SourcePartnerID: r.partnerID,
		Status:          r.status,
	})
}

func (m *Manager) finish(r *run) {
	m.mu.Lock()
	current, ok := m.runs[r.orderID]
	if ok && current == r {
		delete(m.runs, r.orderID)
	}
	m.mu.Unlock()

	// Only release ownership if a restarted simulation has not taken over.
	if ok && current == r {
		m.store.ReleaseSource(r.orderID, tracking.SourceSimulator)
	}
}

// PositionAt linearly interpolates the trip position at elapsed time t.
// t is clamped to [0, total], so t=0 is exactly the origin and t>=total is
// exactly the destination.
func PositionAt(fromLat, fromLng, toLat, toLng float64, t, total time.Duration) (lat, lng float64) {
	if total <= 0 {
		return toLat, toLng
	}
	frac := float64(t) / float64(total)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	lat = fromLat + (toLat-fromLat)*frac
	lng = fromLng + (toLng-fromLng)*frac
	return lat, lng
}
