package models

// OrderStatus is the lifecycle state of an order.
// delivered and cancelled are terminal - no further transitions are permitted.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderOutForDelivery, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CoordSource records where an order's coordinates came from:
// supplied by the client, derived via address geocoding, or a last-resort default.
type CoordSource string

const (
	CoordStoredExact     CoordSource = "stored_exact"
	CoordGeocoded        CoordSource = "geocoded"
	CoordDefaultFallback CoordSource = "default_fallback"
)

// Order is the tracking-relevant subset of a customer order.
// Coordinates are denormalized onto the order row together with their
// provenance so the tracking path never needs to re-geocode.
type Order struct {
	ID                    string      `json:"id" db:"id"`
	Code                  string      `json:"code" db:"code"` // public order code shown to customers
	CustomerID            string      `json:"customer_id" db:"customer_id"`
	RestaurantID          string      `json:"restaurant_id" db:"restaurant_id"`
	Status                OrderStatus `json:"status" db:"status"`
	AssignedPartnerID     *string     `json:"assigned_partner_id,omitempty" db:"assigned_partner_id"`
	RestaurantLat         float64     `json:"restaurant_lat" db:"restaurant_lat"`
	RestaurantLng         float64     `json:"restaurant_lng" db:"restaurant_lng"`
	RestaurantCoordSource CoordSource `json:"restaurant_coord_source" db:"restaurant_coord_source"`
	DeliveryLat           float64     `json:"delivery_lat" db:"delivery_lat"`
	DeliveryLng           float64     `json:"delivery_lng" db:"delivery_lng"`
	DeliveryCoordSource   CoordSource `json:"delivery_coord_source" db:"delivery_coord_source"`
	DeliveryAddress       string      `json:"delivery_address" db:"delivery_address"`
	CreatedAt             int64       `json:"created_at" db:"created_at"`
	UpdatedAt             int64       `json:"updated_at" db:"updated_at"`
}
