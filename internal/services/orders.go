package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mealtrail-backend/internal/assignment"
	"mealtrail-backend/internal/geo"
	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/registry"
	"mealtrail-backend/internal/tracking"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Last-resort point when neither stored coordinates nor geocoding produce a
// usable location (central Chennai).
const (
	fallbackLat = 13.0827
	fallbackLng = 80.2707
)

var (
	// ErrOrderNotFound means the identifier resolved to nothing, by public
	// code or by internal id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrRestaurantNotFound means the order referenced an unknown restaurant.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrInvalidStatus means the requested status value or transition is not allowed.
	ErrInvalidStatus = errors.New("invalid order status transition")
)

// CreateOrderInput carries the tracking-relevant fields of a new order.
// DeliveryLat/DeliveryLng are optional; when absent the address is geocoded.
type CreateOrderInput struct {
	RestaurantID    string   `json:"restaurant_id"`
	DeliveryAddress string   `json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
}

// TrackingSnapshot is the synchronous read-path view a client fetches before
// attaching to the live stream. Position is nil when nothing has been
// reported yet - distinct from the order itself not being found.
type TrackingSnapshot struct {
	Order      OrderSummary              `json:"order"`
	Restaurant *models.RestaurantSummary `json:"restaurant,omitempty"`
	Partner    *models.PartnerSummary    `json:"partner,omitempty"`
	Position   *models.PositionSample    `json:"position"`
}

// OrderSummary is the tracking-page view of an order.
type OrderSummary struct {
	ID                    string             `json:"id"`
	Code                  string             `json:"code"`
	Status                models.OrderStatus `json:"status"`
	RestaurantLat         float64            `json:"restaurant_lat"`
	RestaurantLng         float64            `json:"restaurant_lng"`
	RestaurantCoordSource models.CoordSource `json:"restaurant_coord_source"`
	DeliveryLat           float64            `json:"delivery_lat"`
	DeliveryLng           float64            `json:"delivery_lng"`
	DeliveryCoordSource   models.CoordSource `json:"delivery_coord_source"`
	CreatedAt             int64              `json:"created_at"`
}

// OrderRows is the read slice of Postgres the tracking facade joins over.
// Lookup ordering and snapshot assembly depend only on this interface, so
// they can be exercised without a live database.
type OrderRows interface {
	OrderByCode(ctx context.Context, code string) (models.Order, error)
	OrderByID(ctx context.Context, id string) (models.Order, error)
	RestaurantByID(ctx context.Context, id string) (models.Restaurant, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type sqlOrderRows struct {
	db *sqlx.DB
}

func (r sqlOrderRows) OrderByCode(ctx context.Context, code string) (models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE code = $1", code)
	return order, err
}

func (r sqlOrderRows) OrderByID(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	return order, err
}

func (r sqlOrderRows) RestaurantByID(ctx context.Context, id string) (models.Restaurant, error) {
	var restaurant models.Restaurant
	err := r.db.GetContext(ctx, &restaurant, "SELECT * FROM restaurants WHERE id = $1", id)
	return restaurant, err
}

func (r sqlOrderRows) UserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	return user, err
}

// SimulationStopper cancels an order's running movement simulation. Implemented
// by the simulator manager; attached after construction because the manager
// itself is built around the order service.
type SimulationStopper interface {
	Stop(orderID string) bool
}

// OrderService owns the order lifecycle glue between Postgres, the partner
// registry, the assignment engine and the live-tracking store.
type OrderService struct {
	db       *sqlx.DB
	rows     OrderRows
	registry *registry.Registry
	store    *tracking.Store
	geocoder *GeocodingService // nil when no API key is configured
	engine   *assignment.Engine
	sims     SimulationStopper // nil until AttachSimulations
}

func NewOrderService(db *sqlx.DB, reg *registry.Registry, store *tracking.Store, geocoder *GeocodingService) *OrderService {
	svc := NewOrderServiceWithRows(sqlOrderRows{db: db}, reg, store, geocoder)
	svc.db = db
	return svc
}

// NewOrderServiceWithRows builds a service over an explicit row source, used
// by tests that run without a database.
func NewOrderServiceWithRows(rows OrderRows, reg *registry.Registry, store *tracking.Store, geocoder *GeocodingService) *OrderService {
	svc := &OrderService{
		rows:     rows,
		registry: reg,
		store:    store,
		geocoder: geocoder,
	}
	svc.engine = assignment.NewEngine(reg, svc)
	return svc
}

// AttachSimulations wires the movement simulator in so terminal status
// transitions can cancel a running trip for the order.
func (s *OrderService) AttachSimulations(sims SimulationStopper) {
	s.sims = sims
}

// RestaurantPoint resolves a restaurant's stored coordinates for the
// assignment engine. An error means "unknown", not a hard failure.
func (s *OrderService) RestaurantPoint(ctx context.Context, restaurantID string) (float64, float64, error) {
	restaurant, err := s.rows.RestaurantByID(ctx, restaurantID)
	if err != nil {
		return 0, 0, ErrRestaurantNotFound
	}
	if restaurant.Latitude == nil || restaurant.Longitude == nil {
		return 0, 0, fmt.Errorf("restaurant %s has no stored coordinates", restaurantID)
	}
	return *restaurant.Latitude, *restaurant.Longitude, nil
}

// CreateOrder persists a new order with resolved coordinates, announces it on
// the live channels and attempts an immediate partner assignment. Failure to
// assign leaves the order pending - the retry job picks it up later.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, input CreateOrderInput) (*models.Order, error) {
	restaurant, err := s.rows.RestaurantByID(ctx, input.RestaurantID)
	if err != nil {
		return nil, ErrRestaurantNotFound
	}

	restLat, restLng, restSource := s.resolvePoint(restaurant.Latitude, restaurant.Longitude, restaurant.Address)
	deliveryLat, deliveryLng, deliverySource := s.resolvePoint(input.DeliveryLat, input.DeliveryLng, input.DeliveryAddress)

	now := time.Now().Unix()
	order := &models.Order{
		ID:                    uuid.New().String(),
		Code:                  newOrderCode(),
		CustomerID:            customerID,
		RestaurantID:          restaurant.ID,
		Status:                models.OrderPending,
		RestaurantLat:         restLat,
		RestaurantLng:         restLng,
		RestaurantCoordSource: restSource,
		DeliveryLat:           deliveryLat,
		DeliveryLng:           deliveryLng,
		DeliveryCoordSource:   deliverySource,
		DeliveryAddress:       input.DeliveryAddress,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	query := `
		INSERT INTO orders (
			id, code, customer_id, restaurant_id, status, assigned_partner_id,
			restaurant_lat, restaurant_lng, restaurant_coord_source,
			delivery_lat, delivery_lng, delivery_coord_source,
			delivery_address, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if _, err := s.db.ExecContext(ctx, query,
		order.ID, order.Code, order.CustomerID, order.RestaurantID, order.Status,
		order.RestaurantLat, order.RestaurantLng, order.RestaurantCoordSource,
		order.DeliveryLat, order.DeliveryLng, order.DeliveryCoordSource,
		order.DeliveryAddress, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	log.Printf("🧾 Order %s created (code %s, restaurant %s)", order.ID, order.Code, order.RestaurantID)

	s.store.PublishLifecycle(models.EventTypeOrderCreated, restaurant.OwnerID, models.OrderLifecyclePayload{
		OrderID:   order.ID,
		Code:      order.Code,
		Status:    order.Status,
		Timestamp: now,
	})

	if err := s.TryAssign(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// TryAssign runs the assignment engine for the order and, when a partner is
// found, binds them to the order, bumps their workload and moves the order to
// confirmed. A missing candidate is not an error: the order stays pending.
func (s *OrderService) TryAssign(ctx context.Context, order *models.Order) error {
	partnerID, err := s.engine.Assign(ctx, order.RestaurantID)
	if errors.Is(err, assignment.ErrNoCandidate) {
		log.Printf("⏳ Order %s left unassigned: no available partner", order.ID)
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET assigned_partner_id = $1, status = $2, updated_at = $3
		WHERE id = $4 AND assigned_partner_id IS NULL
	`, partnerID, models.OrderConfirmed, now, order.ID)
	if err != nil {
		return fmt.Errorf("failed to bind partner to order: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Someone else assigned it between our read and write.
		return nil
	}

	order.AssignedPartnerID = &partnerID
	order.Status = models.OrderConfirmed
	order.UpdatedAt = now
	s.registry.IncrementWorkload(partnerID, 1)

	s.publishStatus(ctx, order)
	return nil
}

// AssignPending retries assignment for every pending unassigned order.
// Called by the retry cron job.
func (s *OrderService) AssignPending(ctx context.Context) error {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 AND assigned_partner_id IS NULL", models.OrderPending)
	if err != nil {
		return err
	}

	for i := range orders {
		if err := s.TryAssign(ctx, &orders[i]); err != nil {
			log.Printf("⚠️ Retry assignment failed for order %s: %v", orders[i].ID, err)
		}
	}
	return nil
}

// UpdateStatus moves an order to a new lifecycle status, decrements the
// assigned partner's workload when the order reaches a terminal state, and
// surfaces the change to live subscribers.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, ErrInvalidStatus
	}
	if order.Status == status {
		return order, nil
	}

	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		status, now, order.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = status
	order.UpdatedAt = now

	if status.IsTerminal() {
		if order.AssignedPartnerID != nil {
			s.registry.IncrementWorkload(*order.AssignedPartnerID, -1)
		}
		// The live feed for this order is over: cancel any running
		// simulation and free the position ownership.
		if s.sims != nil {
			s.sims.Stop(order.ID)
		}
		s.store.ReleaseSource(order.ID, tracking.SourceDevice)
		s.store.ReleaseSource(order.ID, tracking.SourceSimulator)
	}

	s.publishStatus(ctx, order)
	return order, nil
}

// AdvanceToOutForDelivery implements simulation.OrderUpdater. Orders not yet
// dispatched (pending/confirmed/preparing) move to out_for_delivery; orders
// already past that point are left alone.
func (s *OrderService) AdvanceToOutForDelivery(ctx context.Context, orderID string) (models.OrderStatus, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	switch order.Status {
	case models.OrderPending, models.OrderConfirmed, models.OrderPreparing:
		updated, err := s.UpdateStatus(ctx, orderID, models.OrderOutForDelivery)
		if err != nil {
			return "", err
		}
		return updated.Status, nil
	default:
		return order.Status, nil
	}
}

// MarkDelivered implements simulation.OrderUpdater.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) error {
	_, err := s.UpdateStatus(ctx, orderID, models.OrderDelivered)
	return err
}

// GetOrder resolves an order by public code or internal id, in that order.
func (s *OrderService) GetOrder(ctx context.Context, identifier string) (*models.Order, error) {
	order, err := s.rows.OrderByCode(ctx, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		order, err = s.rows.OrderByID(ctx, identifier)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Snapshot assembles the tracking view for an order: order summary,
// restaurant summary, assigned partner summary and the latest position.
func (s *OrderService) Snapshot(ctx context.Context, identifier string) (*TrackingSnapshot, error) {
	order, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, err
	}

	snapshot := &TrackingSnapshot{
		Order: OrderSummary{
			ID:                    order.ID,
			Code:                  order.Code,
			Status:                order.Status,
			RestaurantLat:         order.RestaurantLat,
			RestaurantLng:         order.RestaurantLng,
			RestaurantCoordSource: order.RestaurantCoordSource,
			DeliveryLat:           order.DeliveryLat,
			DeliveryLng:           order.DeliveryLng,
			DeliveryCoordSource:   order.DeliveryCoordSource,
			CreatedAt:             order.CreatedAt,
		},
	}

	if restaurant, err := s.rows.RestaurantByID(ctx, order.RestaurantID); err == nil {
		snapshot.Restaurant = &models.RestaurantSummary{
			ID:        restaurant.ID,
			Name:      restaurant.Name,
			Latitude:  restaurant.Latitude,
			Longitude: restaurant.Longitude,
		}
	}

	if order.AssignedPartnerID != nil {
		if partner, err := s.rows.UserByID(ctx, *order.AssignedPartnerID); err == nil {
			snapshot.Partner = &models.PartnerSummary{
				ID:          partner.ID,
				Name:        partner.Name,
				VehicleType: partner.VehicleType,
				VehicleID:   partner.VehicleID,
			}
		}
	}

	if sample, ok := s.store.Latest(order.ID); ok {
		snapshot.Position = &sample
	}
	return snapshot, nil
}

// OwnerOf returns the owner user id of the order's restaurant, for routing
// lifecycle events to the right owner channel.
func (s *OrderService) OwnerOf(ctx context.Context, restaurantID string) (string, error) {
	restaurant, err := s.rows.RestaurantByID(ctx, restaurantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRestaurantNotFound
	}
	return restaurant.OwnerID, err
}

func (s *OrderService) publishStatus(ctx context.Context, order *models.Order) {
	ownerID, err := s.OwnerOf(ctx, order.RestaurantID)
	if err != nil {
		log.Printf("⚠️ Could not resolve owner for restaurant %s: %v", order.RestaurantID, err)
	}
	s.store.PublishLifecycle(models.EventTypeOrderStatus, ownerID, models.OrderLifecyclePayload{
		OrderID:   order.ID,
		Code:      order.Code,
		Status:    order.Status,
		PartnerID: order.AssignedPartnerID,
		Timestamp: time.Now().Unix(),
	})
}

// resolvePoint picks coordinates with provenance: stored values win, then a
// geocoded address, then the fixed fallback point.
func (s *OrderService) resolvePoint(lat, lng *float64, address string) (float64, float64, models.CoordSource) {
	if lat != nil && lng != nil && geo.IsFinite(*lat) && geo.IsFinite(*lng) {
		return *lat, *lng, models.CoordStoredExact
	}

	if s.geocoder != nil && address != "" {
		if coords, err := s.geocoder.Geocode(address); err == nil {
			return coords.Lat, coords.Lng, models.CoordGeocoded
		} else {
			log.Printf("⚠️ Geocoding failed for %q: %v", address, err)
		}
	}

	return fallbackLat, fallbackLng, models.CoordDefaultFallback
}

// newOrderCode builds the short public code customers use to track an order.
func newOrderCode() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "MT-" + id[:8]
}
